package health

import "errors"

// ErrNoSegments is returned when a stack is built from zero segments.
var ErrNoSegments = errors.New("health: stack requires at least one segment")

// Store owns the ordered segments of one stack and their runtime state.
// Engines mutate segments in place through Get, All or Mutate; segments are
// never copied out and written back.
type Store struct {
	segments []Segment
}

// NewStore copies segs into a new Store.
//
// Precondition: len(segs) >= 1.
// Postcondition: Returns a Store that is not yet initialized, or ErrNoSegments.
func NewStore(segs []Segment) (*Store, error) {
	if len(segs) == 0 {
		return nil, ErrNoSegments
	}
	owned := make([]Segment, len(segs))
	copy(owned, segs)
	for i := range owned {
		owned[i].SpecialTags = append([]string(nil), segs[i].SpecialTags...)
	}
	return &Store{segments: owned}, nil
}

// Initialize sets every segment's CurrentHealth to MaxHealth when StartActive
// is set (0 otherwise) and arms every RechargeTimer with RechargeDelay.
func (s *Store) Initialize() {
	for i := range s.segments {
		seg := &s.segments[i]
		if seg.StartActive {
			seg.CurrentHealth = seg.MaxHealth
		} else {
			seg.CurrentHealth = 0
		}
		seg.RechargeTimer = seg.RechargeDelay
		if seg.RechargeTimer < 0 {
			seg.RechargeTimer = 0
		}
	}
}

// Get returns a pointer to the segment at index, or (nil, false) when index
// is out of range.
func (s *Store) Get(index int) (*Segment, bool) {
	if index < 0 || index >= len(s.segments) {
		return nil, false
	}
	return &s.segments[index], true
}

// All returns the backing slice. Writes through it are visible to the store.
func (s *Store) All() []Segment {
	return s.segments
}

// Count returns the number of segments.
func (s *Store) Count() int {
	return len(s.segments)
}

// Mutate applies fn to the segment at index in place.
//
// Postcondition: Returns false without calling fn when index is out of range.
func (s *Store) Mutate(index int, fn func(*Segment)) bool {
	seg, ok := s.Get(index)
	if !ok {
		return false
	}
	fn(seg)
	return true
}

// Snapshot returns a deep copy of every segment.
func (s *Store) Snapshot() []Segment {
	out := make([]Segment, len(s.segments))
	copy(out, s.segments)
	for i := range out {
		out[i].SpecialTags = append([]string(nil), s.segments[i].SpecialTags...)
	}
	return out
}
