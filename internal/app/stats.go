package app

import (
	"strconv"
	"time"

	"github.com/keilerkonzept/topk/sliding"

	"github.com/canlabs/canmon/internal/domain"
)

// DefaultStatsInterval is the windowed recompute period.
const DefaultStatsInterval = time.Second

// DefaultTopTalkersK is how many busiest identifiers the sliding sketch
// tracks.
const DefaultTopTalkersK = 10

// topTalkersWindowTicks is the sliding window length in stats ticks.
const topTalkersWindowTicks = 60

// IdStats are cumulative per-identifier counters. Counts reset only on an
// explicit stats reset; the timestamps span the full observed lifetime of
// the identifier, not the display window.
type IdStats struct {
	Count     uint64
	FirstSeen time.Time
	LastSeen  time.Time
}

// Talker is one entry of the top-talkers ranking.
type Talker struct {
	ID    uint32
	Count uint64
}

// Aggregator maintains per-identifier counters and history plus the
// windowed global rate and bus-load estimate. Mutated only on the
// dispatcher goroutine.
type Aggregator struct {
	ids     map[uint32]*IdStats
	history map[uint32]*domain.HistoryBuffer

	windowCount int
	lastWindow  time.Time
	rate        float64
	busLoad     float64

	bitrate    int
	fd         bool
	historyCap int

	talkers *sliding.Sketch
}

// NewAggregator creates an aggregator for a bus at bitrate bits/s. fd
// selects the CAN FD framing-overhead estimate for bus load. k bounds the
// top-talkers ranking; zero disables the sketch.
func NewAggregator(bitrate int, fd bool, historyCap, k int) *Aggregator {
	a := &Aggregator{
		ids:        make(map[uint32]*IdStats),
		history:    make(map[uint32]*domain.HistoryBuffer),
		lastWindow: time.Now(),
		bitrate:    bitrate,
		fd:         fd,
		historyCap: historyCap,
	}
	if k > 0 {
		a.talkers = sliding.New(k, topTalkersWindowTicks)
	}
	return a
}

// Observe accounts one processed frame: window counter, identifier
// counters, history sample, and the top-talkers sketch.
func (a *Aggregator) Observe(f domain.Frame) {
	a.windowCount++

	st, ok := a.ids[f.ID]
	if !ok {
		st = &IdStats{FirstSeen: f.Time}
		a.ids[f.ID] = st
	}
	st.Count++
	st.LastSeen = f.Time

	h, ok := a.history[f.ID]
	if !ok {
		h = domain.NewHistoryBuffer(a.historyCap)
		a.history[f.ID] = h
	}
	h.Append(f.Time, f.Data)

	if a.talkers != nil {
		a.talkers.Incr(strconv.FormatUint(uint64(f.ID), 10))
	}
}

// Recompute runs the windowed estimate: rate is frames since the previous
// window divided by elapsed seconds; bus load is the rate scaled by the
// per-frame bit estimate against the configured bitrate, clamped to
// [0, 100]. The window counter resets afterwards; per-identifier counts
// are unaffected.
func (a *Aggregator) Recompute(now time.Time) {
	elapsed := now.Sub(a.lastWindow).Seconds()
	if elapsed <= 0 {
		return
	}
	a.rate = float64(a.windowCount) / elapsed

	bits := domain.Frame{FD: a.fd}.WireBits()
	load := 0.0
	if a.bitrate > 0 {
		load = a.rate * float64(bits) / float64(a.bitrate) * 100
	}
	if load > 100 {
		load = 100
	}
	if load < 0 {
		load = 0
	}
	a.busLoad = load

	a.windowCount = 0
	a.lastWindow = now

	if a.talkers != nil {
		a.talkers.Ticks(1)
	}
}

// Rate returns the last windowed frames-per-second estimate.
func (a *Aggregator) Rate() float64 { return a.rate }

// BusLoad returns the last windowed bus-load percentage.
func (a *Aggregator) BusLoad() float64 { return a.busLoad }

// Stats returns the cumulative counters for id, or nil when unseen.
func (a *Aggregator) Stats(id uint32) *IdStats {
	return a.ids[id]
}

// Frequency returns the average frame rate for one identifier over its
// observed lifetime. A single sample, or simultaneous first and last
// timestamps, reports 0 rather than a spurious or infinite frequency.
func (a *Aggregator) Frequency(id uint32) float64 {
	st, ok := a.ids[id]
	if !ok || st.Count < 2 {
		return 0
	}
	dur := st.LastSeen.Sub(st.FirstSeen).Seconds()
	if dur <= 0 {
		return 0
	}
	return float64(st.Count) / dur
}

// History returns the sample ring for id, or nil when unseen.
func (a *Aggregator) History(id uint32) *domain.HistoryBuffer {
	return a.history[id]
}

// TopTalkers returns up to n busiest identifiers over the sliding window,
// busiest first. Returns nil when the sketch is disabled.
func (a *Aggregator) TopTalkers(n int) []Talker {
	if a.talkers == nil {
		return nil
	}
	items := a.talkers.SortedSlice()
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	out := make([]Talker, 0, len(items))
	for _, it := range items {
		id, err := strconv.ParseUint(it.Item, 10, 32)
		if err != nil {
			continue
		}
		out = append(out, Talker{ID: uint32(id), Count: uint64(it.Count)})
	}
	return out
}

// RemoveID drops the counters for one identifier, used when the store
// evicts it. The history ring survives eviction and is only dropped with
// the buffers, on Clear. The sketch is left alone; evicted identifiers
// age out of the sliding window on their own.
func (a *Aggregator) RemoveID(id uint32) {
	delete(a.ids, id)
}

// Reset clears all counters and the windowed estimates. History buffers
// survive; ClearHistory drops those separately on a full reset.
func (a *Aggregator) Reset(now time.Time) {
	a.ids = make(map[uint32]*IdStats)
	a.windowCount = 0
	a.lastWindow = now
	a.rate = 0
	a.busLoad = 0
}

// ClearHistory drops every identifier's sample ring.
func (a *Aggregator) ClearHistory() {
	a.history = make(map[uint32]*domain.HistoryBuffer)
}

// RemoveAll drops every per-identifier counter and sample ring, keeping
// the windowed estimates.
func (a *Aggregator) RemoveAll() {
	a.ids = make(map[uint32]*IdStats)
	a.history = make(map[uint32]*domain.HistoryBuffer)
}

// ResetWindow restarts the rate window, for a fresh connection.
func (a *Aggregator) ResetWindow(now time.Time) {
	a.windowCount = 0
	a.lastWindow = now
	a.rate = 0
	a.busLoad = 0
}
