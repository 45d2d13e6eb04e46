// Package csvlog implements a frame log sink writing one CSV row per
// frame, for offline analysis in spreadsheet tools.
package csvlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/canlabs/canmon/internal/ports"
)

var header = []string{"time", "id", "extended", "fd", "direction", "dlc", "data", "delta_ms", "decoded"}

// Sink writes frames as CSV rows. Safe for use from one recorder
// goroutine with Close racing it.
type Sink struct {
	logger ports.Logger

	mu     sync.Mutex
	wc     io.WriteCloser
	w      *csv.Writer
	closed bool
}

var _ ports.LogSink = (*Sink)(nil)

// Create opens path for writing, truncating any existing file, and writes
// the header row.
func Create(path string, logger ports.Logger) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create csv log: %w", err)
	}
	return New(f, logger)
}

// New writes CSV rows to wc, which is closed with the sink.
func New(wc io.WriteCloser, logger ports.Logger) (*Sink, error) {
	w := csv.NewWriter(wc)
	if err := w.Write(header); err != nil {
		wc.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return &Sink{logger: logger, wc: wc, w: w}, nil
}

// Record appends one row. Write failures are logged and swallowed so a
// full disk never stalls the pipeline.
func (s *Sink) Record(e ports.LogEntry) {
	row := []string{
		e.Frame.Time.Format("2006-01-02T15:04:05.000000"),
		e.Frame.IDString(),
		strconv.FormatBool(e.Frame.Extended),
		strconv.FormatBool(e.Frame.FD),
		e.Frame.Direction.String(),
		strconv.Itoa(len(e.Frame.Data)),
		e.Frame.DataString(),
		strconv.FormatFloat(float64(e.Delta.Microseconds())/1000, 'f', 3, 64),
		e.Decoded,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if err := s.w.Write(row); err != nil {
		s.logger.Warn("csv log write failed", ports.Err(err))
	}
}

// Close flushes buffered rows and closes the underlying file. Idempotent.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.w.Flush()
	err := s.w.Error()
	if cerr := s.wc.Close(); err == nil {
		err = cerr
	}
	return err
}
