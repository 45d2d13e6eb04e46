package canmon

import (
	"github.com/canlabs/canmon/internal/ports"
	"github.com/canlabs/canmon/pkg/log"
)

// Logger is the interface for structured logging.
type Logger = log.Logger

// LogField represents a structured log field.
type LogField = log.Field

// Transport moves frames to and from a bus or capture.
type Transport = ports.Transport

// LogSink records every frame that passes the pipeline.
type LogSink = ports.LogSink

// LogEntry is one frame handed to a LogSink.
type LogEntry = ports.LogEntry

// Decoder translates raw payloads into named signal values.
type Decoder = ports.Decoder

// Display receives record updates from the pipeline.
type Display = ports.Display

// Option configures optional behavior of a Monitor.
type Option func(*options)

// options holds the optional configuration for a Monitor instance.
type options struct {
	logger       ports.Logger
	sink         ports.LogSink
	decoder      ports.Decoder
	display      ports.Display
	eventHandler EventHandler
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogSink sets a sink that records every frame passing the pipeline.
// The sink is called from the pipeline goroutine; it must not block.
func WithLogSink(sink LogSink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithDecoder sets a payload decoder used for the decoded display mode
// and for log sink entries.
func WithDecoder(d Decoder) Option {
	return func(o *options) {
		o.decoder = d
	}
}

// WithDisplay sets a display notified after each record update.
// Called from the pipeline goroutine; it must not block.
func WithDisplay(d Display) Option {
	return func(o *options) {
		o.display = d
	}
}

// WithEventHandler sets a handler for monitor events.
// State change events are called synchronously from the goroutine driving
// the transition. If not provided, no events are emitted.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}
