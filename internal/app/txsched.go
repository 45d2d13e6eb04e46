package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/canlabs/canmon/internal/domain"
	"github.com/canlabs/canmon/internal/ports"
)

// MinPeriodicInterval is the tightest cycle a periodic job accepts.
const MinPeriodicInterval = 10 * time.Millisecond

// SendFunc puts one frame on the wire.
type SendFunc func(domain.Frame) error

type periodicJob struct {
	cancel chan struct{}
	done   chan struct{}
}

// TxScheduler validates outbound frames and runs at most one periodic
// transmit job at a time.
type TxScheduler struct {
	send   SendFunc
	logger ports.Logger

	mu  sync.Mutex
	job *periodicJob
}

// NewTxScheduler creates a scheduler that transmits through send.
func NewTxScheduler(send SendFunc, logger ports.Logger) *TxScheduler {
	return &TxScheduler{send: send, logger: logger}
}

// SendOnce validates and transmits a single frame.
func (s *TxScheduler) SendOnce(f domain.Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	return s.send(f)
}

// StartPeriodic validates the frame and starts transmitting it every
// interval. A job already running is stopped first; the new job replaces
// it.
func (s *TxScheduler) StartPeriodic(f domain.Frame, interval time.Duration) error {
	if interval < MinPeriodicInterval {
		return fmt.Errorf("%w: %s below minimum %s", domain.ErrInvalidInterval, interval, MinPeriodicInterval)
	}
	if err := f.Validate(); err != nil {
		return err
	}

	s.StopPeriodic()

	j := &periodicJob{
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.mu.Lock()
	s.job = j
	s.mu.Unlock()

	s.logger.Info("periodic transmit started",
		ports.String("id", f.IDString()),
		ports.Duration("interval", interval),
	)
	go s.runJob(j, f, interval)
	return nil
}

// StopPeriodic cancels the running job, if any, and waits for its
// goroutine to exit. After it returns no further cycle will fire.
// Idempotent.
func (s *TxScheduler) StopPeriodic() {
	s.mu.Lock()
	j := s.job
	s.job = nil
	s.mu.Unlock()
	if j == nil {
		return
	}
	close(j.cancel)
	<-j.done
	s.logger.Info("periodic transmit stopped")
}

// Active reports whether a periodic job is running.
func (s *TxScheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job != nil
}

// runJob transmits until cancelled. The first send happens immediately on
// activation; each following cycle is armed only after the previous send
// succeeded. A send failure cancels the job; it never retries.
func (s *TxScheduler) runJob(j *periodicJob, f domain.Frame, interval time.Duration) {
	defer close(j.done)

	var t *time.Timer
	for {
		if err := s.send(f); err != nil {
			s.logger.Error("periodic send failed, job cancelled",
				ports.String("id", f.IDString()),
				ports.Err(err),
			)
			s.mu.Lock()
			if s.job == j {
				s.job = nil
			}
			s.mu.Unlock()
			return
		}
		if t == nil {
			t = time.NewTimer(interval)
			defer t.Stop()
		} else {
			t.Reset(interval)
		}
		select {
		case <-j.cancel:
			return
		case <-t.C:
		}
	}
}
