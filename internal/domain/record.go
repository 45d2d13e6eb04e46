package domain

import "time"

// MessageRecord is the latest known state for one identifier, updated in
// place as frames arrive. One record exists per distinct identifier
// currently tracked by the store.
type MessageRecord struct {
	// Latest is the most recent frame for this identifier.
	Latest Frame

	// FirstSeen is when the identifier was first observed.
	FirstSeen time.Time

	// LastSeen is when the identifier was most recently observed.
	LastSeen time.Time

	// Delta is the gap between the latest frame and the previous frame on
	// the bus (any identifier), clamped to zero on clock regression.
	Delta time.Duration

	// Mode selects how the payload is rendered at the display boundary.
	Mode DisplayMode

	// HighlightLevel is the current fade level, 1..FadeLevels while the
	// identifier is fading, 0 when idle.
	HighlightLevel int

	// Seq is the record's insertion sequence number. Eviction is FIFO by
	// Seq, regardless of how often the record is updated.
	Seq uint64
}

// Snapshot returns a copy safe to hand to external consumers. The payload
// is cloned so display code cannot alias store state.
func (r *MessageRecord) Snapshot() MessageRecord {
	cp := *r
	cp.Latest.Data = append([]byte(nil), r.Latest.Data...)
	return cp
}
