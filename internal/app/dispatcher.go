package app

import (
	"errors"
	"sync"
	"time"

	"github.com/canlabs/canmon/internal/domain"
	"github.com/canlabs/canmon/internal/ports"
)

// Dispatcher default tuning.
const (
	// DefaultDrainInterval is the ingestion tick.
	DefaultDrainInterval = 50 * time.Millisecond

	// DefaultDrainBatch bounds frames processed per tick. The remainder
	// stays queued for the next tick: under sustained overload the display
	// lags behind arrival instead of blocking ingestion.
	DefaultDrainBatch = 5
)

// DispatcherConfig tunes the consumer loop and the state it owns.
type DispatcherConfig struct {
	DrainInterval time.Duration
	DrainBatch    int
	StatsInterval time.Duration
	FadeDelay     time.Duration
	FadeLevels    int
	MaxMessages   int
	HistoryCap    int
	Bitrate       int
	FD            bool
	TopTalkersK   int
}

// GlobalStats is the windowed traffic estimate.
type GlobalStats struct {
	Rate    float64
	BusLoad float64
}

// RecordSnapshot pairs an identifier with a copy of its record.
type RecordSnapshot struct {
	ID     uint32
	Record domain.MessageRecord
}

// Dispatcher is the single-threaded consumer of the frame queue. It owns
// the message store, the statistics aggregator, and the highlight state
// machine; every mutation of that state happens on its goroutine, driven
// by three tick sources: the ingestion drain, the statistics window, and
// per-identifier fade timers routed back through an internal channel.
//
// The mutex exists only so snapshot queries and control toggles from other
// goroutines see consistent state; it is never contended by the receive
// path, whose sole hand-off is the frame queue.
type Dispatcher struct {
	cfg    DispatcherConfig
	logger ports.Logger

	sink    ports.LogSink
	decoder ports.Decoder
	display ports.Display
	onFatal func(error)

	mu        sync.RWMutex
	store     *MessageStore
	stats     *Aggregator
	highlight *Highlighter
	paused    bool
	filter    map[uint32]struct{}
	lastFrame time.Time

	txCh   chan domain.Frame
	fadeCh chan fadeEvent

	runMu sync.Mutex
	quit  chan struct{}
	done  chan struct{}
}

// NewDispatcher creates a dispatcher and the state it owns. sink, decoder,
// and display may be nil.
func NewDispatcher(cfg DispatcherConfig, logger ports.Logger, sink ports.LogSink, decoder ports.Decoder, display ports.Display) *Dispatcher {
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = DefaultDrainInterval
	}
	if cfg.DrainBatch <= 0 {
		cfg.DrainBatch = DefaultDrainBatch
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = DefaultStatsInterval
	}
	d := &Dispatcher{
		cfg:     cfg,
		logger:  logger,
		sink:    sink,
		decoder: decoder,
		display: display,
		store:   NewMessageStore(cfg.MaxMessages),
		stats:   NewAggregator(cfg.Bitrate, cfg.FD, cfg.HistoryCap, cfg.TopTalkersK),
		filter:  make(map[uint32]struct{}),
		txCh:    make(chan domain.Frame, 64),
		fadeCh:  make(chan fadeEvent, 64),
	}
	d.highlight = NewHighlighter(cfg.FadeDelay, cfg.FadeLevels, d.postFade)
	return d
}

// SetFatalHandler installs the callback invoked (on its own goroutine)
// when a fatal connection error is dequeued.
func (d *Dispatcher) SetFatalHandler(fn func(error)) {
	d.onFatal = fn
}

// Start launches the consumer loop against a connection's queue. Message
// store and statistics survive across connections; only the window state
// is reset.
func (d *Dispatcher) Start(q *FrameQueue) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.mu.Lock()
	d.lastFrame = time.Time{}
	d.stats.ResetWindow(time.Now())
	d.mu.Unlock()

	d.quit = make(chan struct{})
	d.done = make(chan struct{})
	go d.run(q, d.quit, d.done)
}

// Stop halts the consumer loop and waits for it to exit. Idempotent.
func (d *Dispatcher) Stop() {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.quit == nil {
		return
	}
	select {
	case <-d.quit:
	default:
		close(d.quit)
	}
	<-d.done
	d.quit = nil

	// TX frames posted but never consumed must not surface in the next
	// session.
drained:
	for {
		select {
		case <-d.txCh:
		default:
			break drained
		}
	}

	d.mu.Lock()
	d.highlight.Reset()
	d.mu.Unlock()
}

func (d *Dispatcher) run(q *FrameQueue, quit, done chan struct{}) {
	defer close(done)

	drain := time.NewTicker(d.cfg.DrainInterval)
	defer drain.Stop()
	stats := time.NewTicker(d.cfg.StatsInterval)
	defer stats.Stop()

	for {
		select {
		case <-quit:
			return
		case <-drain.C:
			if halted := d.drainBatch(q); halted {
				return
			}
		case <-stats.C:
			d.mu.Lock()
			d.stats.Recompute(time.Now())
			d.mu.Unlock()
		case f := <-d.txCh:
			d.handleFrame(f)
		case ev := <-d.fadeCh:
			d.applyFade(ev)
		}
	}
}

// drainBatch processes up to the batch bound from the queue. Dequeuing a
// fatal error discards the rest of the queue, hands the error to the fatal
// handler, and halts the loop.
func (d *Dispatcher) drainBatch(q *FrameQueue) (halted bool) {
	for i := 0; i < d.cfg.DrainBatch; i++ {
		it, ok := q.TryPop()
		if !ok {
			return false
		}
		if it.Err != nil {
			dropped := q.Drain()
			d.logger.Error("receive failed, halting connection",
				ports.Err(it.Err),
				ports.Int("dropped", dropped),
			)
			if d.onFatal != nil {
				go d.onFatal(it.Err)
			}
			return true
		}
		d.handleFrame(it.Frame)
	}
	return false
}

// handleFrame applies one frame to the owned state in the fixed order
// filter, store, statistics, highlight, then notifies the log sink and
// display, so consumers always observe statistics already reflecting the
// frame.
func (d *Dispatcher) handleFrame(f domain.Frame) {
	d.mu.Lock()
	if d.paused {
		d.mu.Unlock()
		return
	}
	if f.Direction == domain.RX && len(d.filter) > 0 {
		if _, ok := d.filter[f.ID]; !ok {
			d.mu.Unlock()
			return
		}
	}

	var delta time.Duration
	if !d.lastFrame.IsZero() {
		delta = f.Time.Sub(d.lastFrame)
		if delta < 0 {
			// Clock regression never produces a negative delta.
			delta = 0
		}
	}
	d.lastFrame = f.Time

	rec, evicted, didEvict := d.store.Upsert(f, delta)
	if didEvict {
		// Eviction is indivisible: record, counters, and highlight leave
		// together. The payload history ring stays behind for byte analysis.
		d.stats.RemoveID(evicted)
		d.highlight.Cancel(evicted)
	}
	d.stats.Observe(f)
	rec.HighlightLevel = d.highlight.OnFrame(f)
	snap := rec.Snapshot()
	d.mu.Unlock()

	if d.sink != nil {
		d.sink.Record(ports.LogEntry{Frame: f, Delta: delta, Decoded: d.decodeText(f)})
	}
	if d.display != nil {
		d.display.OnUpdate(f.ID, snap)
	}
}

// applyFade advances one identifier's fade level and re-notifies the
// display so the decay is visible without new traffic.
func (d *Dispatcher) applyFade(ev fadeEvent) {
	d.mu.Lock()
	level, ok := d.highlight.Advance(ev)
	if !ok {
		d.mu.Unlock()
		return
	}
	rec := d.store.Get(ev.id)
	if rec == nil {
		d.mu.Unlock()
		return
	}
	rec.HighlightLevel = level
	snap := rec.Snapshot()
	d.mu.Unlock()

	if d.display != nil {
		d.display.OnUpdate(ev.id, snap)
	}
}

// postFade routes a due fade step from its timer goroutine back onto the
// dispatcher loop. A dropped step would freeze the identifier's highlight
// mid-fade, so the post blocks until the loop accepts it or the session
// stops; with no session running the step is discarded.
func (d *Dispatcher) postFade(ev fadeEvent) {
	d.runMu.Lock()
	quit := d.quit
	d.runMu.Unlock()
	if quit == nil {
		return
	}
	select {
	case d.fadeCh <- ev:
	case <-quit:
	}
}

// Dispatch feeds a locally transmitted frame through the consumer loop so
// it lands in statistics and history exactly like received traffic.
func (d *Dispatcher) Dispatch(f domain.Frame) {
	d.runMu.Lock()
	running := d.quit != nil
	d.runMu.Unlock()
	if !running {
		d.logger.Warn("tx feed dropped, no session", ports.Uint32("id", f.ID))
		return
	}
	select {
	case d.txCh <- f:
	default:
		// Loop saturated; drop rather than block the sender.
		d.logger.Warn("tx feed dropped", ports.Uint32("id", f.ID))
	}
}

func (d *Dispatcher) decodeText(f domain.Frame) string {
	if d.decoder == nil {
		return ""
	}
	signals, err := d.decoder.Decode(f.ID, f.Data)
	if err != nil {
		if errors.Is(err, domain.ErrDecoderUnavailable) {
			return ""
		}
		return domain.DecodeErrorText
	}
	return domain.FormatPayload(domain.ModeDecoded, nil, false, signals, false)
}

// Pause makes the dispatcher consume and discard frames until resumed.
func (d *Dispatcher) Pause() {
	d.mu.Lock()
	d.paused = true
	d.mu.Unlock()
}

// Resume ends a pause.
func (d *Dispatcher) Resume() {
	d.mu.Lock()
	d.paused = false
	d.mu.Unlock()
}

// Paused reports whether the dispatcher is discarding frames.
func (d *Dispatcher) Paused() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.paused
}

// SetFilter replaces the RX identifier filter. An empty set admits all
// traffic. TX frames are never filtered.
func (d *Dispatcher) SetFilter(ids []uint32) {
	m := make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	d.mu.Lock()
	d.filter = m
	d.mu.Unlock()
}

// Filter returns the active filter set.
func (d *Dispatcher) Filter() []uint32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]uint32, 0, len(d.filter))
	for id := range d.filter {
		out = append(out, id)
	}
	return out
}

// Clear empties the store, history buffers, and all derived per-identifier
// state. Must not race an in-flight upsert; the shared mutex enforces that.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	d.store.Clear()
	d.stats.RemoveAll()
	d.highlight.Reset()
	d.lastFrame = time.Time{}
	d.mu.Unlock()
}

// ResetStats zeroes the global counters and every per-identifier counter.
func (d *Dispatcher) ResetStats() {
	d.mu.Lock()
	d.stats.Reset(time.Now())
	d.mu.Unlock()
}

// Records returns snapshots of all tracked identifiers in insertion order.
func (d *Dispatcher) Records() []RecordSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := d.store.IDs()
	out := make([]RecordSnapshot, 0, len(ids))
	for _, id := range ids {
		if rec := d.store.Get(id); rec != nil {
			out = append(out, RecordSnapshot{ID: id, Record: rec.Snapshot()})
		}
	}
	return out
}

// Record returns a snapshot for one identifier.
func (d *Dispatcher) Record(id uint32) (domain.MessageRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec := d.store.Get(id)
	if rec == nil {
		return domain.MessageRecord{}, false
	}
	return rec.Snapshot(), true
}

// GlobalStats returns the last windowed rate and bus-load estimate.
func (d *Dispatcher) GlobalStats() GlobalStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return GlobalStats{Rate: d.stats.Rate(), BusLoad: d.stats.BusLoad()}
}

// IDStats returns cumulative counters for one identifier.
func (d *Dispatcher) IDStats(id uint32) (IdStats, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	st := d.stats.Stats(id)
	if st == nil {
		return IdStats{}, false
	}
	return *st, true
}

// Frequency returns the lifetime average rate for one identifier.
func (d *Dispatcher) Frequency(id uint32) float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats.Frequency(id)
}

// TopTalkers returns the busiest identifiers over the sliding window.
func (d *Dispatcher) TopTalkers(n int) []Talker {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats.TopTalkers(n)
}

// AnalyzeBytes computes per-byte aggregates over recent history for one
// identifier.
func (d *Dispatcher) AnalyzeBytes(id uint32, window time.Duration, maxBytes int) []domain.ByteStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h := d.stats.History(id)
	if h == nil {
		return nil
	}
	return h.AnalyzeBytes(window, maxBytes)
}

// SetDisplayMode sets the rendering mode for one identifier.
func (d *Dispatcher) SetDisplayMode(id uint32, mode domain.DisplayMode) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec := d.store.Get(id)
	if rec == nil {
		return false
	}
	rec.Mode = mode
	return true
}

// CycleDisplayMode advances the rendering mode for one identifier and
// returns the new mode.
func (d *Dispatcher) CycleDisplayMode(id uint32) (domain.DisplayMode, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec := d.store.Get(id)
	if rec == nil {
		return domain.ModeBinary, false
	}
	rec.Mode = rec.Mode.Next()
	return rec.Mode, true
}
