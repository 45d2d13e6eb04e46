package app

import (
	"time"

	"github.com/canlabs/canmon/internal/domain"
)

// DefaultMaxMessages caps how many distinct identifiers the store tracks.
const DefaultMaxMessages = 500

// MessageStore maps identifiers to their latest-frame records, preserving
// insertion order for FIFO eviction. Updating a record in place never
// changes its eviction position; only first insertion does.
//
// The store is not safe for concurrent use; the dispatcher goroutine is its
// sole mutator.
type MessageStore struct {
	records map[uint32]*domain.MessageRecord
	order   []uint32
	max     int
	nextSeq uint64
}

// NewMessageStore returns a store bounded to max records. A max of zero or
// below falls back to DefaultMaxMessages.
func NewMessageStore(max int) *MessageStore {
	if max <= 0 {
		max = DefaultMaxMessages
	}
	return &MessageStore{
		records: make(map[uint32]*domain.MessageRecord),
		max:     max,
	}
}

// Upsert applies a frame to the store. For an unseen identifier at
// capacity, the least-recently-inserted identifier is evicted first and
// returned so the caller can drop its derived state (statistics, history,
// highlight) in the same step. The returned record is the live record for
// the frame's identifier.
func (s *MessageStore) Upsert(f domain.Frame, delta time.Duration) (rec *domain.MessageRecord, evicted uint32, didEvict bool) {
	if rec, ok := s.records[f.ID]; ok {
		rec.Latest = f
		rec.LastSeen = f.Time
		rec.Delta = delta
		return rec, 0, false
	}

	if len(s.records) >= s.max {
		evicted = s.order[0]
		s.order = s.order[1:]
		delete(s.records, evicted)
		didEvict = true
	}

	rec = &domain.MessageRecord{
		Latest:    f,
		FirstSeen: f.Time,
		LastSeen:  f.Time,
		Delta:     delta,
		Seq:       s.nextSeq,
	}
	s.nextSeq++
	s.records[f.ID] = rec
	s.order = append(s.order, f.ID)
	return rec, evicted, didEvict
}

// Get returns the record for id, or nil when untracked.
func (s *MessageStore) Get(id uint32) *domain.MessageRecord {
	return s.records[id]
}

// Len returns the number of tracked identifiers.
func (s *MessageStore) Len() int {
	return len(s.records)
}

// IDs returns tracked identifiers in insertion order.
func (s *MessageStore) IDs() []uint32 {
	return append([]uint32(nil), s.order...)
}

// Remove drops a single identifier, preserving the order of the rest.
func (s *MessageStore) Remove(id uint32) bool {
	if _, ok := s.records[id]; !ok {
		return false
	}
	delete(s.records, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear empties the store. Derived per-identifier state is the caller's
// responsibility to reset alongside.
func (s *MessageStore) Clear() {
	s.records = make(map[uint32]*domain.MessageRecord)
	s.order = nil
}
