// Package canmon provides an embeddable CAN bus monitor core: it ingests
// frames from a transport, tracks the latest payload per identifier,
// derives traffic statistics, and schedules transmissions.
//
// Example usage:
//
//	m, err := canmon.New(canmon.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	t, err := replay.Open("capture.log", 1.0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := m.Start(t); err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Stop()
package canmon

import (
	"sync"
	"time"

	"github.com/canlabs/canmon/internal/app"
	"github.com/canlabs/canmon/internal/domain"
	"github.com/canlabs/canmon/internal/ports"
)

// Re-exported domain types. Users can also import sub-packages directly.
type (
	// Frame is a single CAN or CAN FD frame.
	Frame = domain.Frame

	// Direction marks a frame as received or transmitted.
	Direction = domain.Direction

	// MessageRecord is the tracked state for one identifier.
	MessageRecord = domain.MessageRecord

	// DisplayMode selects how a record's payload is rendered.
	DisplayMode = domain.DisplayMode

	// ByteStats is a per-byte aggregate over recent payload history.
	ByteStats = domain.ByteStats

	// RecordSnapshot pairs an identifier with a copy of its record.
	RecordSnapshot = app.RecordSnapshot

	// GlobalStats is the windowed traffic estimate.
	GlobalStats = app.GlobalStats

	// IdStats holds cumulative per-identifier counters.
	IdStats = app.IdStats

	// Talker is one entry of the top talkers ranking.
	Talker = app.Talker
)

const (
	RX = domain.RX
	TX = domain.TX

	ModeBinary    = domain.ModeBinary
	ModeDecimal8  = domain.ModeDecimal8
	ModeDecimal16 = domain.ModeDecimal16
	ModeDecoded   = domain.ModeDecoded
)

// Sentinel errors, re-exported for errors.Is checks.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidID       = domain.ErrInvalidID
	ErrInvalidPayload  = domain.ErrInvalidPayload
	ErrInvalidInterval = domain.ErrInvalidInterval
	ErrInvalidFilter   = domain.ErrInvalidFilter
	ErrUnknownID       = domain.ErrUnknownID
)

// NewFrame validates and builds a frame, copying the payload.
func NewFrame(id uint32, data []byte, extended, fd bool, dir Direction) (Frame, error) {
	return domain.NewFrame(id, data, extended, fd, dir)
}

// ParseFilter parses a comma separated hexadecimal identifier list.
func ParseFilter(expr string) ([]uint32, error) {
	return domain.ParseFilter(expr)
}

// Monitor is a CAN monitoring session that can be embedded in other
// applications. Use New() to create an instance, then Start() with a
// transport to begin monitoring. The message store and statistics
// persist across connections until Clear() or ResetStats().
type Monitor struct {
	config     Config
	opts       options
	lifecycle  *app.Lifecycle
	dispatcher *app.Dispatcher
	sched      *app.TxScheduler
	logger     ports.Logger

	mu        sync.RWMutex
	transport ports.Transport
	receiver  *app.Receiver
	queue     *app.FrameQueue
}

// New creates a Monitor with the given configuration.
// The instance is created in StateStopped; call Start() to begin.
// Returns an error if configuration is invalid.
func New(cfg Config, opts ...Option) (*Monitor, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	var emitter eventEmitterWrapper
	if o.eventHandler != nil {
		emitter = eventEmitterWrapper{handler: o.eventHandler}
	}

	m := &Monitor{
		config:    cfg,
		opts:      o,
		logger:    o.logger,
		lifecycle: app.NewLifecycle(o.logger, &emitter),
	}
	m.dispatcher = app.NewDispatcher(app.DispatcherConfig{
		DrainInterval: cfg.DrainInterval,
		DrainBatch:    cfg.DrainBatch,
		StatsInterval: cfg.StatsInterval,
		FadeDelay:     cfg.FadeDelay,
		FadeLevels:    cfg.FadeLevels,
		MaxMessages:   cfg.MaxMessages,
		HistoryCap:    cfg.HistoryDepth,
		Bitrate:       cfg.Bitrate,
		FD:            cfg.FD,
		TopTalkersK:   cfg.TopTalkers,
	}, o.logger, o.sink, o.decoder, o.display)
	m.dispatcher.SetFatalHandler(m.crash)
	m.sched = app.NewTxScheduler(m.transmit, o.logger)
	return m, nil
}

// Start begins monitoring frames from the given transport.
// Returns immediately after the pipeline goroutines are up.
// Returns ErrAlreadyRunning if a session is live.
func (m *Monitor) Start(t ports.Transport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}
	if err := m.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	m.transport = t
	m.queue = app.NewFrameQueue()
	m.receiver = app.NewReceiver(t, m.queue, m.logger, m.lifecycle,
		m.config.ReceiveTimeout, m.config.ErrorThreshold, m.config.StopTimeout)

	m.dispatcher.Start(m.queue)
	m.receiver.Start()

	if err := m.lifecycle.TransitionTo(app.StateRunning, "pipeline started"); err != nil {
		return err
	}
	m.logger.Info("monitoring started")
	return nil
}

// Stop shuts the session down: the receiver is joined, the queue consumer
// halted, and the transport closed. Statistics and tracked records
// survive for inspection. Returns ErrNotRunning when no session is live,
// ErrShutdownTimeout if the receiver failed to exit within the bound.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.lifecycle.CanStop() {
		m.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := m.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	err := m.teardown()

	if err != nil {
		_ = m.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = m.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// crash tears the session down after a fatal connection error. Runs on
// its own goroutine, posted by the dispatcher.
func (m *Monitor) crash(cause error) {
	m.mu.Lock()
	if !m.lifecycle.CanStop() {
		// A concurrent Stop() already owns teardown.
		m.mu.Unlock()
		return
	}
	if err := m.lifecycle.TransitionTo(app.StateStopping, "fatal: "+cause.Error()); err != nil {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	_ = m.teardown()
	_ = m.lifecycle.TransitionTo(app.StateCrashed, cause.Error())
}

// teardown stops the pipeline back to front.
func (m *Monitor) teardown() error {
	m.sched.StopPeriodic()

	m.mu.Lock()
	receiver := m.receiver
	transport := m.transport
	m.receiver = nil
	m.transport = nil
	m.mu.Unlock()

	var err error
	if receiver != nil {
		err = receiver.Stop()
	}
	m.dispatcher.Stop()
	if transport != nil {
		if cerr := transport.Close(); cerr != nil {
			m.logger.Warn("transport close failed", ports.Err(cerr))
		}
	}
	return err
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (m *Monitor) Status() State {
	return convertState(m.lifecycle.State())
}

// transmit puts a frame on the wire and, on success, feeds the TX copy
// through the pipeline so it shows up like received traffic.
func (m *Monitor) transmit(f domain.Frame) error {
	m.mu.RLock()
	t := m.transport
	m.mu.RUnlock()
	if t == nil {
		return domain.ErrNotRunning
	}
	if err := t.Send(f); err != nil {
		return err
	}
	f.Direction = domain.TX
	f.Time = time.Now()
	m.dispatcher.Dispatch(f)
	return nil
}

// Send validates and transmits a single frame.
func (m *Monitor) Send(f Frame) error {
	return m.sched.SendOnce(f)
}

// Resend transmits the last seen payload of a tracked identifier.
func (m *Monitor) Resend(id uint32) error {
	rec, ok := m.dispatcher.Record(id)
	if !ok {
		return domain.ErrUnknownID
	}
	f := rec.Latest
	f.Direction = domain.TX
	return m.sched.SendOnce(f)
}

// StartPeriodic transmits f every interval until stopped. At most one
// periodic job runs; starting a new one replaces the old.
func (m *Monitor) StartPeriodic(f Frame, interval time.Duration) error {
	return m.sched.StartPeriodic(f, interval)
}

// StopPeriodic cancels the periodic job, if any. After it returns no
// further cycle will fire.
func (m *Monitor) StopPeriodic() {
	m.sched.StopPeriodic()
}

// PeriodicActive reports whether a periodic job is running.
func (m *Monitor) PeriodicActive() bool {
	return m.sched.Active()
}

// Pause makes the pipeline consume and discard frames until Resume.
// Reception and periodic transmission continue underneath.
func (m *Monitor) Pause() { m.dispatcher.Pause() }

// Resume ends a pause.
func (m *Monitor) Resume() { m.dispatcher.Resume() }

// Paused reports whether the pipeline is discarding frames.
func (m *Monitor) Paused() bool { return m.dispatcher.Paused() }

// SetFilter parses and installs an RX identifier filter expression, a
// comma separated hexadecimal list. Empty admits all traffic. Frames
// already tracked stay tracked.
func (m *Monitor) SetFilter(expr string) error {
	ids, err := domain.ParseFilter(expr)
	if err != nil {
		return err
	}
	m.dispatcher.SetFilter(ids)
	m.logger.Info("filter updated", ports.Int("ids", len(ids)))
	return nil
}

// Filter returns the active filter identifiers.
func (m *Monitor) Filter() []uint32 { return m.dispatcher.Filter() }

// Records returns snapshots of all tracked identifiers in insertion order.
func (m *Monitor) Records() []RecordSnapshot { return m.dispatcher.Records() }

// Record returns a snapshot for one identifier.
func (m *Monitor) Record(id uint32) (MessageRecord, bool) {
	return m.dispatcher.Record(id)
}

// Stats returns the last windowed rate and bus-load estimate.
func (m *Monitor) Stats() GlobalStats { return m.dispatcher.GlobalStats() }

// IDStats returns cumulative counters for one identifier.
func (m *Monitor) IDStats(id uint32) (IdStats, bool) {
	return m.dispatcher.IDStats(id)
}

// Frequency returns the lifetime average rate for one identifier in Hz.
func (m *Monitor) Frequency(id uint32) float64 {
	return m.dispatcher.Frequency(id)
}

// TopTalkers returns the busiest identifiers over the sliding window,
// busiest first.
func (m *Monitor) TopTalkers(n int) []Talker {
	return m.dispatcher.TopTalkers(n)
}

// AnalyzeBytes computes per-byte minimum, maximum, and mean over an
// identifier's recent payload history.
func (m *Monitor) AnalyzeBytes(id uint32, window time.Duration, maxBytes int) []ByteStats {
	return m.dispatcher.AnalyzeBytes(id, window, maxBytes)
}

// Clear empties the store, history buffers, and all derived
// per-identifier state. The session keeps running.
func (m *Monitor) Clear() { m.dispatcher.Clear() }

// ResetStats zeroes the global counters and every per-identifier counter.
// Tracked records and payload history survive.
func (m *Monitor) ResetStats() { m.dispatcher.ResetStats() }

// SetDisplayMode sets how one identifier's payload is rendered.
func (m *Monitor) SetDisplayMode(id uint32, mode DisplayMode) bool {
	return m.dispatcher.SetDisplayMode(id, mode)
}

// CycleDisplayMode advances one identifier's rendering mode and returns
// the new mode.
func (m *Monitor) CycleDisplayMode(id uint32) (DisplayMode, bool) {
	return m.dispatcher.CycleDisplayMode(id)
}
