package canmon

import "github.com/canlabs/canmon/internal/app"

// State represents the lifecycle state of a Monitor.
type State int

const (
	// StateStopped means no session is active.
	StateStopped State = iota

	// StateStarting means a session is being established.
	StateStarting

	// StateRunning means frames are being processed.
	StateRunning

	// StateStopping means a graceful shutdown is in progress.
	StateStopping

	// StateCrashed means the session ended on a fatal error.
	StateCrashed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// EventHandler receives monitor events. Implementations must be safe for
// concurrent use and return quickly.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
}

// eventEmitterWrapper adapts EventHandler to the internal listener
// interface.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}
