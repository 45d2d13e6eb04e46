// Package cborlog implements a frame log sink writing a CBOR sequence,
// one map per frame. The format is compact enough for long captures and
// decodes with any CBOR stream reader.
package cborlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/canlabs/canmon/internal/ports"
)

// record is the on-disk shape of one frame.
type record struct {
	Time      time.Time `cbor:"t"`
	ID        uint32    `cbor:"id"`
	Extended  bool      `cbor:"ext,omitempty"`
	FD        bool      `cbor:"fd,omitempty"`
	Direction string    `cbor:"dir"`
	Data      []byte    `cbor:"d"`
	DeltaUS   int64     `cbor:"dt,omitempty"`
	Decoded   string    `cbor:"dec,omitempty"`
}

// Sink appends CBOR encoded frames to a stream.
type Sink struct {
	logger ports.Logger

	mu     sync.Mutex
	wc     io.WriteCloser
	enc    *cbor.Encoder
	closed bool
}

var _ ports.LogSink = (*Sink)(nil)

// Create opens path for writing, truncating any existing file.
func Create(path string, logger ports.Logger) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create cbor log: %w", err)
	}
	return New(f, logger), nil
}

// New writes the CBOR sequence to wc, which is closed with the sink.
func New(wc io.WriteCloser, logger ports.Logger) *Sink {
	return &Sink{logger: logger, wc: wc, enc: cbor.NewEncoder(wc)}
}

// Record appends one frame. Encode failures are logged and swallowed.
func (s *Sink) Record(e ports.LogEntry) {
	rec := record{
		Time:      e.Frame.Time,
		ID:        e.Frame.ID,
		Extended:  e.Frame.Extended,
		FD:        e.Frame.FD,
		Direction: e.Frame.Direction.String(),
		Data:      e.Frame.Data,
		DeltaUS:   e.Delta.Microseconds(),
		Decoded:   e.Decoded,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if err := s.enc.Encode(rec); err != nil {
		s.logger.Warn("cbor log write failed", ports.Err(err))
	}
}

// Close closes the underlying stream. Idempotent.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.wc.Close()
}
