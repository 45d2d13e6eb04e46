package ports

import (
	"time"

	"github.com/canlabs/canmon/internal/domain"
)

// Transport is a connected CAN bus handle. Implementations wrap a hardware
// adapter, a kernel socket, or a replay source. A transport is owned by at
// most one session at a time; Close releases it exactly once.
type Transport interface {
	// Receive blocks for at most timeout waiting for the next frame.
	// It returns (frame, true, nil) on success and (_, false, nil) when the
	// timeout elapses with no traffic. A *domain.BusError marks a transient
	// bus fault the caller may retry; any other error is fatal for the
	// connection.
	Receive(timeout time.Duration) (domain.Frame, bool, error)

	// Send transmits one frame. The frame is validated before this call.
	Send(f domain.Frame) error

	// Close releases the underlying handle. Close is idempotent.
	Close() error
}
