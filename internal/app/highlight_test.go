package app

import (
	"testing"
	"time"

	"github.com/canlabs/canmon/internal/domain"
)

func newTestHighlighter(levels int) (*Highlighter, *[]fadeEvent) {
	// Long delay so timers never fire during the test; fades advance
	// only through explicit Advance calls.
	events := &[]fadeEvent{}
	h := NewHighlighter(time.Hour, levels, func(ev fadeEvent) {
		*events = append(*events, ev)
	})
	return h, events
}

func rxFrame(id uint32, data ...byte) domain.Frame {
	return domain.Frame{ID: id, Data: data, Time: time.Now(), Direction: domain.RX}
}

func TestHighlighter_FirstFrameDoesNotTrigger(t *testing.T) {
	h, _ := newTestHighlighter(8)
	if level := h.OnFrame(rxFrame(1, 0xAA)); level != 0 {
		t.Errorf("first frame level = %d, want 0", level)
	}
}

func TestHighlighter_ChangeStartsFade(t *testing.T) {
	h, _ := newTestHighlighter(8)
	h.OnFrame(rxFrame(1, 0xAA))

	if level := h.OnFrame(rxFrame(1, 0xBB)); level != 1 {
		t.Errorf("changed payload level = %d, want 1", level)
	}
	if h.Level(1) != 1 {
		t.Errorf("Level() = %d, want 1", h.Level(1))
	}
}

func TestHighlighter_UnchangedPayloadDoesNotTrigger(t *testing.T) {
	h, _ := newTestHighlighter(8)
	h.OnFrame(rxFrame(1, 0xAA))
	if level := h.OnFrame(rxFrame(1, 0xAA)); level != 0 {
		t.Errorf("identical payload level = %d, want 0", level)
	}
}

func TestHighlighter_TXNeverTriggers(t *testing.T) {
	h, _ := newTestHighlighter(8)
	tx := domain.Frame{ID: 1, Data: []byte{0xAA}, Direction: domain.TX}
	h.OnFrame(tx)
	tx.Data = []byte{0xBB}
	if level := h.OnFrame(tx); level != 0 {
		t.Errorf("TX frame level = %d, want 0", level)
	}
}

func TestHighlighter_AdvanceWalksLevelsThenClears(t *testing.T) {
	h, _ := newTestHighlighter(3)
	h.OnFrame(rxFrame(1, 0xAA))
	h.OnFrame(rxFrame(1, 0xBB))

	gen := h.fades[1].gen

	if level, ok := h.Advance(fadeEvent{id: 1, gen: gen}); !ok || level != 2 {
		t.Fatalf("advance 1 = (%d, %v), want (2, true)", level, ok)
	}
	if level, ok := h.Advance(fadeEvent{id: 1, gen: gen}); !ok || level != 3 {
		t.Fatalf("advance 2 = (%d, %v), want (3, true)", level, ok)
	}
	// At the last level the next step returns to idle.
	if level, ok := h.Advance(fadeEvent{id: 1, gen: gen}); !ok || level != 0 {
		t.Fatalf("final advance = (%d, %v), want (0, true)", level, ok)
	}
	if h.Level(1) != 0 {
		t.Errorf("Level() after fade-out = %d, want 0", h.Level(1))
	}
}

func TestHighlighter_RestartInvalidatesOldChain(t *testing.T) {
	h, _ := newTestHighlighter(8)
	h.OnFrame(rxFrame(1, 0xAA))
	h.OnFrame(rxFrame(1, 0xBB))
	oldGen := h.fades[1].gen

	// New change restarts at level 1 with a fresh generation.
	if level := h.OnFrame(rxFrame(1, 0xCC)); level != 1 {
		t.Fatalf("restart level = %d, want 1", level)
	}

	// A step from the superseded chain must be ignored.
	if _, ok := h.Advance(fadeEvent{id: 1, gen: oldGen}); ok {
		t.Error("stale generation advanced the fade")
	}
	if h.Level(1) != 1 {
		t.Errorf("Level() = %d after stale advance, want 1", h.Level(1))
	}
}

func TestHighlighter_Cancel(t *testing.T) {
	h, _ := newTestHighlighter(8)
	h.OnFrame(rxFrame(1, 0xAA))
	h.OnFrame(rxFrame(1, 0xBB))
	gen := h.fades[1].gen

	h.Cancel(1)
	if h.Level(1) != 0 {
		t.Errorf("Level() after Cancel = %d, want 0", h.Level(1))
	}
	if _, ok := h.Advance(fadeEvent{id: 1, gen: gen}); ok {
		t.Error("cancelled fade advanced")
	}

	// Cancel also forgets the last payload: the next frame is a first
	// sighting again, not a change.
	if level := h.OnFrame(rxFrame(1, 0xDD)); level != 0 {
		t.Errorf("post-Cancel frame level = %d, want 0", level)
	}
}

func TestHighlighter_TimerPostsEvent(t *testing.T) {
	posted := make(chan fadeEvent, 1)
	h := NewHighlighter(10*time.Millisecond, 8, func(ev fadeEvent) {
		posted <- ev
	})
	h.OnFrame(rxFrame(1, 0xAA))
	h.OnFrame(rxFrame(1, 0xBB))

	select {
	case ev := <-posted:
		if ev.id != 1 {
			t.Errorf("event id = %d, want 1", ev.id)
		}
	case <-time.After(time.Second):
		t.Fatal("fade timer never fired")
	}
}
