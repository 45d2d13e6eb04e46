package app

import (
	"bytes"
	"time"

	"github.com/canlabs/canmon/internal/domain"
)

// Highlight fade tuning.
const (
	// DefaultFadeDelay is the dwell time per fade level.
	DefaultFadeDelay = 500 * time.Millisecond

	// DefaultFadeLevels is the number of fade steps before returning to idle.
	DefaultFadeLevels = 8
)

// fadeEvent asks the dispatcher to advance one identifier's fade. gen
// guards against stale timers: a timer that fired before its fade was
// restarted or cancelled carries an outdated generation and is ignored.
type fadeEvent struct {
	id  uint32
	gen uint64
}

// fadeState tracks one identifier mid-fade. Absent from the map means idle.
type fadeState struct {
	level int
	gen   uint64
	timer *time.Timer
}

// Highlighter runs the per-identifier change-decay sequence:
// idle -> 1 -> 2 .. N -> idle, one step per fade delay. A qualifying change
// restarts the sequence at level 1 and cancels the pending step. All
// methods run on the dispatcher goroutine; timers hand control back to it
// through the schedule callback rather than mutating state themselves.
type Highlighter struct {
	fades  map[uint32]*fadeState
	lastRX map[uint32][]byte

	delay    time.Duration
	levels   int
	schedule func(fadeEvent)
	nextGen  uint64
}

// NewHighlighter creates a highlighter. schedule is invoked from timer
// goroutines when a fade step is due and must route the event back to the
// dispatcher loop.
func NewHighlighter(delay time.Duration, levels int, schedule func(fadeEvent)) *Highlighter {
	if delay <= 0 {
		delay = DefaultFadeDelay
	}
	if levels <= 0 {
		levels = DefaultFadeLevels
	}
	return &Highlighter{
		fades:    make(map[uint32]*fadeState),
		lastRX:   make(map[uint32][]byte),
		delay:    delay,
		levels:   levels,
		schedule: schedule,
	}
}

// OnFrame evaluates one processed frame and returns the identifier's
// current fade level (0 when idle). Only an RX frame whose payload differs
// byte-for-byte from the previous RX payload for that identifier triggers a
// new fade; TX frames never do.
func (h *Highlighter) OnFrame(f domain.Frame) int {
	if f.Direction != domain.RX {
		if st, ok := h.fades[f.ID]; ok {
			return st.level
		}
		return 0
	}

	prev, seen := h.lastRX[f.ID]
	changed := seen && !bytes.Equal(prev, f.Data)
	h.lastRX[f.ID] = append([]byte(nil), f.Data...)

	if !changed {
		if st, ok := h.fades[f.ID]; ok {
			return st.level
		}
		return 0
	}

	h.cancelTimer(f.ID)
	h.nextGen++
	st := &fadeState{level: 1, gen: h.nextGen}
	st.timer = h.startTimer(f.ID, st.gen)
	h.fades[f.ID] = st
	return 1
}

// Advance applies one deferred fade step. Returns the new level and true
// when the event was current; stale events report false and change nothing.
func (h *Highlighter) Advance(ev fadeEvent) (int, bool) {
	st, ok := h.fades[ev.id]
	if !ok || st.gen != ev.gen {
		return 0, false
	}
	if st.level >= h.levels {
		delete(h.fades, ev.id)
		return 0, true
	}
	st.level++
	st.timer = h.startTimer(ev.id, st.gen)
	return st.level, true
}

// Level returns the current fade level for id, 0 when idle.
func (h *Highlighter) Level(id uint32) int {
	if st, ok := h.fades[id]; ok {
		return st.level
	}
	return 0
}

// Cancel stops any pending fade for id, e.g. when the store evicts it.
func (h *Highlighter) Cancel(id uint32) {
	h.cancelTimer(id)
	delete(h.fades, id)
	delete(h.lastRX, id)
}

// Reset cancels every pending fade and forgets all previous payloads.
func (h *Highlighter) Reset() {
	for id := range h.fades {
		h.cancelTimer(id)
	}
	h.fades = make(map[uint32]*fadeState)
	h.lastRX = make(map[uint32][]byte)
}

func (h *Highlighter) startTimer(id uint32, gen uint64) *time.Timer {
	return time.AfterFunc(h.delay, func() {
		h.schedule(fadeEvent{id: id, gen: gen})
	})
}

func (h *Highlighter) cancelTimer(id uint32) {
	if st, ok := h.fades[id]; ok && st.timer != nil {
		st.timer.Stop()
	}
}
