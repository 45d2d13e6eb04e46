package ports

import (
	"time"

	"github.com/canlabs/canmon/internal/domain"
)

// LogEntry is one processed frame handed to a LogSink.
type LogEntry struct {
	Frame   domain.Frame
	Delta   time.Duration
	Decoded string
}

// LogSink records processed frames. Sinks are best-effort: a failing sink
// must not interrupt the pipeline, so Record returns no error and
// implementations swallow or log their own failures.
type LogSink interface {
	Record(entry LogEntry)

	// Close flushes and releases the sink.
	Close() error
}

// Decoder is the optional signal-decoding capability. Implementations map
// an identifier and payload to named signal values.
type Decoder interface {
	// Decode returns the signal map for the frame, or
	// domain.ErrDecoderUnavailable when no definition covers the
	// identifier. Other errors mark a failed decode of a covered frame.
	Decode(id uint32, payload []byte) (map[string]float64, error)
}

// Display receives one notification per processed frame. The core makes no
// rendering decisions; the snapshot carries everything a table row needs.
// OnUpdate is called from the dispatcher goroutine and must not block.
type Display interface {
	OnUpdate(id uint32, record domain.MessageRecord)
}
