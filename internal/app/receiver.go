package app

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/canlabs/canmon/internal/domain"
	"github.com/canlabs/canmon/internal/ports"
)

// Receiver default tuning.
const (
	// DefaultReceiveTimeout bounds each blocking read so a stop request is
	// observed promptly even on a silent bus.
	DefaultReceiveTimeout = 100 * time.Millisecond

	// DefaultErrorThreshold is the number of consecutive transient bus
	// errors tolerated before the connection is declared dead.
	DefaultErrorThreshold = 10

	// DefaultStopTimeout bounds how long Stop waits for the receive loop to
	// exit before giving up on the join.
	DefaultStopTimeout = 2 * time.Second
)

// Receiver runs one background goroutine per active connection, pulling
// frames from the transport and pushing them to the frame queue. It owns
// nothing beyond its transport handle and the queue's producer endpoint;
// it never touches store state.
type Receiver struct {
	transport ports.Transport
	queue     *FrameQueue
	logger    ports.Logger
	lc        *Lifecycle

	timeout     time.Duration
	threshold   int
	stopTimeout time.Duration

	running atomic.Bool
	started atomic.Bool
}

// NewReceiver creates a receiver for one connection. The loop goroutine is
// registered with the lifecycle's worker accounting so Stop can join it
// with a bound. Zero tuning values fall back to the defaults above.
func NewReceiver(t ports.Transport, q *FrameQueue, logger ports.Logger, lc *Lifecycle, timeout time.Duration, threshold int, stopTimeout time.Duration) *Receiver {
	if timeout <= 0 {
		timeout = DefaultReceiveTimeout
	}
	if threshold <= 0 {
		threshold = DefaultErrorThreshold
	}
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	return &Receiver{
		transport:   t,
		queue:       q,
		logger:      logger,
		lc:          lc,
		timeout:     timeout,
		threshold:   threshold,
		stopTimeout: stopTimeout,
	}
}

// Start launches the receive loop. Starting twice is a no-op.
func (r *Receiver) Start() {
	if r.started.Swap(true) {
		return
	}
	r.running.Store(true)
	r.lc.AddWorker()
	go r.loop()
}

// loop polls the transport until stopped or a fatal error occurs.
// Transient bus errors are counted and forgiven on the next good frame;
// once the consecutive count exceeds the threshold, a single fatal error is
// queued behind any frames already delivered and the loop exits.
func (r *Receiver) loop() {
	defer r.lc.WorkerDone()

	errCount := 0
	for r.running.Load() {
		frame, ok, err := r.transport.Receive(r.timeout)
		if err != nil {
			if domain.IsBusError(err) {
				errCount++
				r.logger.Debug("transient bus error",
					ports.Err(err),
					ports.Int("consecutive", errCount),
				)
				if errCount > r.threshold {
					r.queue.PushErr(fmt.Errorf("excessive bus errors: %w", err))
					return
				}
				continue
			}
			// Non-transient: fatal immediately, unless we are already
			// stopping and the error is just the transport winding down.
			if r.running.Load() {
				r.queue.PushErr(err)
			}
			return
		}
		if !ok {
			// Receive timeout; re-check the running flag.
			continue
		}
		r.queue.PushFrame(frame)
		errCount = 0
	}
}

// Stop clears the running flag and joins the receive loop through the
// lifecycle's worker accounting, bounded by the stop timeout, so the
// transport is safe to release afterwards. Stopping an already-stopped or
// never-started receiver is a no-op.
func (r *Receiver) Stop() error {
	r.running.Store(false)
	if !r.started.Load() {
		return nil
	}
	return r.lc.WaitWithTimeout(r.stopTimeout)
}
