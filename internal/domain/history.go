package domain

import "time"

// HistoryCap is the maximum number of samples retained per identifier.
// Overflow drops the oldest sample (FIFO, not time-based).
const HistoryCap = 1000

// Sample is one observed payload with its timestamp.
type Sample struct {
	Time    time.Time
	Payload []byte
}

// HistoryBuffer is a capacity-bounded ring of payload samples for one
// identifier, used for trend and per-byte statistics queries.
type HistoryBuffer struct {
	samples []Sample
	head    int
	size    int
	cap     int
}

// NewHistoryBuffer returns a buffer holding at most cap samples. A cap of
// zero or below falls back to HistoryCap.
func NewHistoryBuffer(cap int) *HistoryBuffer {
	if cap <= 0 {
		cap = HistoryCap
	}
	return &HistoryBuffer{
		samples: make([]Sample, cap),
		cap:     cap,
	}
}

// Append records a sample, dropping the oldest entry when full. The payload
// is copied.
func (h *HistoryBuffer) Append(t time.Time, payload []byte) {
	s := Sample{Time: t, Payload: append([]byte(nil), payload...)}
	if h.size < h.cap {
		h.samples[(h.head+h.size)%h.cap] = s
		h.size++
		return
	}
	h.samples[h.head] = s
	h.head = (h.head + 1) % h.cap
}

// Len returns the number of retained samples.
func (h *HistoryBuffer) Len() int { return h.size }

// Samples returns retained samples oldest-first. The slice is freshly
// allocated; sample payloads are shared and must not be mutated.
func (h *HistoryBuffer) Samples() []Sample {
	out := make([]Sample, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.samples[(h.head+i)%h.cap]
	}
	return out
}

// Clear drops all samples.
func (h *HistoryBuffer) Clear() {
	h.head = 0
	h.size = 0
}

// ByteStats holds per-byte aggregates over a window of history.
type ByteStats struct {
	Index int
	Min   byte
	Max   byte
	Mean  float64
	N     int
}

// AnalyzeBytes computes min/max/mean for each payload byte position over
// samples no older than window before the newest sample. Positions with no
// data in the window are omitted.
func (h *HistoryBuffer) AnalyzeBytes(window time.Duration, maxBytes int) []ByteStats {
	if h.size == 0 {
		return nil
	}
	samples := h.Samples()
	latest := samples[len(samples)-1].Time
	type acc struct {
		min, max byte
		sum      int64
		n        int
	}
	accs := make([]acc, maxBytes)
	for _, s := range samples {
		if latest.Sub(s.Time) > window {
			continue
		}
		for i := 0; i < len(s.Payload) && i < maxBytes; i++ {
			b := s.Payload[i]
			a := &accs[i]
			if a.n == 0 || b < a.min {
				a.min = b
			}
			if a.n == 0 || b > a.max {
				a.max = b
			}
			a.sum += int64(b)
			a.n++
		}
	}
	var out []ByteStats
	for i, a := range accs {
		if a.n == 0 {
			continue
		}
		out = append(out, ByteStats{
			Index: i,
			Min:   a.min,
			Max:   a.max,
			Mean:  float64(a.sum) / float64(a.n),
			N:     a.n,
		})
	}
	return out
}
