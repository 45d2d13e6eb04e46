package cborlog

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/canlabs/canmon/internal/domain"
	"github.com/canlabs/canmon/internal/ports"
	"github.com/canlabs/canmon/pkg/log"
)

type bufCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufCloser) Close() error {
	b.closed = true
	return nil
}

func TestSink_RoundTrip(t *testing.T) {
	buf := &bufCloser{}
	sink := New(buf, log.NewNoopLogger())

	frames := []ports.LogEntry{
		{
			Frame: domain.Frame{
				ID:        0x123,
				Data:      []byte{0x01, 0x02},
				Time:      time.Now().Truncate(time.Millisecond),
				Direction: domain.RX,
			},
			Delta:   2 * time.Millisecond,
			Decoded: "speed: 10",
		},
		{
			Frame: domain.Frame{
				ID:        0x18DAF110,
				Extended:  true,
				FD:        true,
				Data:      make([]byte, 64),
				Time:      time.Now().Truncate(time.Millisecond),
				Direction: domain.TX,
			},
		},
	}
	for _, e := range frames {
		sink.Record(e)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}
	if !buf.closed {
		t.Error("Close() did not close the underlying stream")
	}

	dec := cbor.NewDecoder(bytes.NewReader(buf.Bytes()))
	var got []record
	for {
		var r record
		if err := dec.Decode(&r); err != nil {
			if err == io.EOF {
				break
			}
			t.Fatal(err)
		}
		got = append(got, r)
	}

	if len(got) != 2 {
		t.Fatalf("decoded %d records, want 2", len(got))
	}
	if got[0].ID != 0x123 || !bytes.Equal(got[0].Data, []byte{0x01, 0x02}) {
		t.Errorf("record 0 = %+v", got[0])
	}
	if got[0].Direction != "RX" || got[0].Decoded != "speed: 10" {
		t.Errorf("record 0 direction/decoded = %q/%q", got[0].Direction, got[0].Decoded)
	}
	if got[0].DeltaUS != 2000 {
		t.Errorf("record 0 delta = %d, want 2000", got[0].DeltaUS)
	}
	if got[1].ID != 0x18DAF110 || !got[1].Extended || !got[1].FD || got[1].Direction != "TX" {
		t.Errorf("record 1 = %+v", got[1])
	}
}

func TestSink_RecordAfterCloseIsNoop(t *testing.T) {
	buf := &bufCloser{}
	sink := New(buf, log.NewNoopLogger())
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
