package csvlog

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/canlabs/canmon/internal/domain"
	"github.com/canlabs/canmon/internal/ports"
	"github.com/canlabs/canmon/pkg/log"
)

// bufCloser wraps a bytes.Buffer as an io.WriteCloser.
type bufCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufCloser) Close() error {
	b.closed = true
	return nil
}

func TestSink_WritesHeaderAndRows(t *testing.T) {
	buf := &bufCloser{}
	sink, err := New(buf, log.NewNoopLogger())
	if err != nil {
		t.Fatal(err)
	}

	ts := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)
	sink.Record(ports.LogEntry{
		Frame: domain.Frame{
			ID:        0x2F0,
			Data:      []byte{0xDE, 0xAD},
			Time:      ts,
			Direction: domain.TX,
			FD:        true,
		},
		Delta:   1500 * time.Microsecond,
		Decoded: "speed: 42",
	})
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}
	if !buf.closed {
		t.Error("Close() did not close the underlying writer")
	}

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header plus one", len(rows))
	}
	if rows[0][0] != "time" || rows[0][1] != "id" {
		t.Errorf("header = %v", rows[0])
	}

	row := rows[1]
	want := []string{
		"2026-03-14T09:26:53.589793",
		"2F0",
		"false",
		"true",
		"TX",
		"2",
		"DE AD",
		"1.500",
		"speed: 42",
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, row[i], want[i])
		}
	}
}

func TestSink_RecordAfterCloseIsNoop(t *testing.T) {
	buf := &bufCloser{}
	sink, err := New(buf, log.NewNoopLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}
	before := buf.Len()

	sink.Record(ports.LogEntry{Frame: domain.Frame{ID: 1, Time: time.Now()}})
	if buf.Len() != before {
		t.Error("Record after Close wrote data")
	}
	if err := sink.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}
