package domain

import (
	"errors"
	"fmt"
)

// Domain errors returned by the public API. Check with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a live session.
	ErrAlreadyRunning = errors.New("canmon: already running")

	// ErrNotRunning is returned when an operation requires a live session.
	ErrNotRunning = errors.New("canmon: not running")

	// ErrShutdownTimeout is returned when the receiver does not exit within
	// the stop bound.
	ErrShutdownTimeout = errors.New("canmon: shutdown timeout")

	// ErrInvalidID is returned when an identifier exceeds the current mode's
	// limit (0x7FF standard, 0x1FFFFFFF extended).
	ErrInvalidID = errors.New("canmon: invalid identifier")

	// ErrInvalidPayload is returned when a payload exceeds the current
	// mode's limit (8 bytes classic, 64 bytes FD).
	ErrInvalidPayload = errors.New("canmon: invalid payload")

	// ErrInvalidInterval is returned when a periodic interval is below the
	// 10ms minimum.
	ErrInvalidInterval = errors.New("canmon: invalid interval")

	// ErrUnknownID is returned when an operation names an identifier the
	// store is not tracking.
	ErrUnknownID = errors.New("canmon: unknown identifier")

	// ErrInvalidFilter is returned when a filter expression cannot be parsed.
	ErrInvalidFilter = errors.New("canmon: invalid filter")

	// ErrDecoderUnavailable is returned by Decoder implementations that have
	// no definition for an identifier. Non-fatal; callers fall back to a raw
	// representation.
	ErrDecoderUnavailable = errors.New("canmon: decoder unavailable")
)

// BusError is a transient transport fault. The receiver tolerates these up
// to a threshold before treating the connection as dead; any other error
// from the transport is fatal immediately.
type BusError struct {
	Err error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("canmon: bus error: %v", e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

// NewBusError wraps err as a transient bus fault.
func NewBusError(err error) *BusError {
	return &BusError{Err: err}
}

// IsBusError reports whether err is a transient bus fault.
func IsBusError(err error) bool {
	var be *BusError
	return errors.As(err, &be)
}
