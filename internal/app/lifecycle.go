package app

import (
	"sync"
	"time"

	"github.com/canlabs/canmon/internal/domain"
	"github.com/canlabs/canmon/internal/ports"
)

// State represents the lifecycle state of a monitor session.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// validNext lists the allowed transitions out of each state.
var validNext = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateStopping, StateCrashed},
	StateRunning:  {StateStopping, StateCrashed},
	StateStopping: {StateStopped, StateCrashed},
	StateCrashed:  {StateStarting},
}

// StateListener is called after every lifecycle state change.
type StateListener interface {
	OnStateChange(previous, current State, reason string)
}

// Lifecycle manages the session state machine and tracks the background
// workers belonging to a connection so shutdown can join them with a bound.
type Lifecycle struct {
	mu       sync.RWMutex
	state    State
	wg       sync.WaitGroup
	logger   ports.Logger
	listener StateListener
}

// NewLifecycle creates a lifecycle manager in StateStopped.
func NewLifecycle(logger ports.Logger, listener StateListener) *Lifecycle {
	return &Lifecycle{
		state:    StateStopped,
		logger:   logger,
		listener: listener,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo attempts to move to newState, returning an error when the
// transition is not allowed from the current state.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	old := l.state
	allowed := false
	for _, s := range validNext[old] {
		if s == newState {
			allowed = true
			break
		}
	}
	if !allowed {
		l.mu.Unlock()
		if old == StateStopped || old == StateCrashed {
			return domain.ErrNotRunning
		}
		return domain.ErrAlreadyRunning
	}
	l.state = newState
	l.mu.Unlock()

	// Notify outside the lock.
	if l.listener != nil {
		l.listener.OnStateChange(old, newState, reason)
	}
	l.logger.Info("state transition",
		ports.String("from", old.String()),
		ports.String("to", newState.String()),
		ports.String("reason", reason),
	)
	return nil
}

// CanStart reports whether a new connection may be started.
func (l *Lifecycle) CanStart() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateStopped || l.state == StateCrashed
}

// CanStop reports whether the session is in a stoppable state.
func (l *Lifecycle) CanStop() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateRunning || l.state == StateStarting
}

// AddWorker registers a background worker for shutdown accounting.
func (l *Lifecycle) AddWorker() {
	l.wg.Add(1)
}

// WorkerDone marks a background worker as exited.
func (l *Lifecycle) WorkerDone() {
	l.wg.Done()
}

// WaitWithTimeout waits for all workers to finish, returning
// ErrShutdownTimeout when the bound expires first.
func (l *Lifecycle) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		l.logger.Warn("shutdown timeout, forcing exit",
			ports.Duration("timeout", timeout),
		)
		return domain.ErrShutdownTimeout
	}
}
