package index

import (
	"fmt"
	"iter"
	"slices"

	"songstore/pkg/domain"
)

// EventSet owns a set of events together with their start-tick and end-tick
// indices. Every change goes through apply, so the map and both indices never
// disagree. EventSet is not safe for concurrent mutation.
type EventSet struct {
	events map[domain.ID]domain.Event
	starts *TickIndex
	ends   *TickIndex
}

// NewEventSet returns an empty set.
func NewEventSet() *EventSet {
	return &EventSet{
		events: make(map[domain.ID]domain.Event),
		starts: NewTickIndex(),
		ends:   NewTickIndex(),
	}
}

// mutation removes one event and/or inserts one event as a single step.
type mutation struct {
	remove *domain.Event
	insert *domain.Event
}

func (s *EventSet) apply(m mutation) {
	if m.insert != nil {
		if !m.insert.SpanFits() {
			panic(domain.InvariantViolation{Detail: fmt.Sprintf("event %s: ticks %d + duration overflows", m.insert.ID, m.insert.Ticks)})
		}
		replacing := m.remove != nil && m.remove.ID == m.insert.ID
		if _, exists := s.events[m.insert.ID]; exists && !replacing {
			panic(domain.InvariantViolation{Detail: fmt.Sprintf("event %s inserted twice", m.insert.ID)})
		}
	}
	if r := m.remove; r != nil {
		delete(s.events, r.ID)
		if !s.starts.Remove(r.Ticks, r.ID) {
			panic(domain.InvariantViolation{Detail: fmt.Sprintf("event %s missing from start index at %d", r.ID, r.Ticks)})
		}
		if end, ok := r.EndTicks(); ok && !s.ends.Remove(end, r.ID) {
			panic(domain.InvariantViolation{Detail: fmt.Sprintf("event %s missing from end index at %d", r.ID, end)})
		}
	}
	if e := m.insert; e != nil {
		s.events[e.ID] = *e
		s.starts.Add(e.Ticks, e.ID)
		if end, ok := e.EndTicks(); ok {
			s.ends.Add(end, e.ID)
		}
	}
}

// Insert adds e. Inserting an id that is already present, or an event whose
// end overflows the tick domain, is a caller defect and panics.
func (s *EventSet) Insert(e domain.Event) {
	s.apply(mutation{insert: &e})
}

// Remove deletes the event with the given id and returns it.
func (s *EventSet) Remove(id domain.ID) (domain.Event, bool) {
	old, ok := s.events[id]
	if !ok {
		return domain.Event{}, false
	}
	s.apply(mutation{remove: &old})
	return old, true
}

// Replace swaps the stored event having e.ID for e in one step and returns
// the previous value. It reports false, leaving the set unchanged, if the id
// is absent.
func (s *EventSet) Replace(e domain.Event) (domain.Event, bool) {
	old, ok := s.events[e.ID]
	if !ok {
		return domain.Event{}, false
	}
	s.apply(mutation{remove: &old, insert: &e})
	return old, true
}

// Get returns the event with the given id.
func (s *EventSet) Get(id domain.ID) (domain.Event, bool) {
	e, ok := s.events[id]
	return e, ok
}

// Contains reports whether id is in the set.
func (s *EventSet) Contains(id domain.ID) bool {
	_, ok := s.events[id]
	return ok
}

// Len returns the number of events.
func (s *EventSet) Len() int { return len(s.events) }

func (s *EventSet) resolve(id domain.ID) domain.Event {
	e, ok := s.events[id]
	if !ok {
		panic(domain.InvariantViolation{Detail: fmt.Sprintf("index references missing event %s", id)})
	}
	return e
}

// All yields the events in (ticks, id) order.
func (s *EventSet) All() iter.Seq[domain.Event] {
	return func(yield func(domain.Event) bool) {
		s.starts.Ascend(func(_ domain.Ticks, id domain.ID) bool {
			return yield(s.resolve(id))
		})
	}
}

// Sorted returns every event in (ticks, id) order.
func (s *EventSet) Sorted() []domain.Event {
	out := make([]domain.Event, 0, len(s.events))
	for e := range s.All() {
		out = append(out, e)
	}
	return out
}

// IDs returns the event ids in (ticks, id) order.
func (s *EventSet) IDs() []domain.ID {
	out := make([]domain.ID, 0, len(s.events))
	s.starts.Ascend(func(_ domain.Ticks, id domain.ID) bool {
		out = append(out, id)
		return true
	})
	return out
}

// InRange returns the events starting in [start, end) in (ticks, id) order.
// With withinDuration it also returns events that started before start and
// are still sounding at start, that is whose end tick is strictly greater
// than start. An event ending exactly at start has finished.
func (s *EventSet) InRange(start, end domain.Ticks, withinDuration bool) []domain.Event {
	if end <= start {
		return nil
	}
	var direct []domain.Event
	s.starts.AscendRange(start, end, func(_ domain.Ticks, id domain.ID) bool {
		direct = append(direct, s.resolve(id))
		return true
	})
	if !withinDuration {
		return direct
	}

	var sustaining []domain.Event
	s.ends.AscendAfter(start, func(_ domain.Ticks, id domain.ID) bool {
		if e := s.resolve(id); e.Ticks < start {
			sustaining = append(sustaining, e)
		}
		return true
	})
	if len(sustaining) == 0 {
		return direct
	}
	slices.SortFunc(sustaining, domain.Compare)
	return mergeSorted(sustaining, direct)
}

func mergeSorted(a, b []domain.Event) []domain.Event {
	out := make([]domain.Event, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if domain.Compare(b[j], a[i]) < 0 {
			out = append(out, b[j])
			j++
			continue
		}
		out = append(out, a[i])
		i++
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// Verify checks that the map and both indices agree. It returns a
// descriptive error for the first disagreement found.
func (s *EventSet) Verify() error {
	if s.starts.Len() != len(s.events) {
		return fmt.Errorf("start index has %d entries for %d events", s.starts.Len(), len(s.events))
	}
	durations := 0
	for id, e := range s.events {
		if !s.starts.Contains(e.Ticks, id) {
			return fmt.Errorf("event %s not indexed at start %d", id, e.Ticks)
		}
		if end, ok := e.EndTicks(); ok {
			durations++
			if !s.ends.Contains(end, id) {
				return fmt.Errorf("event %s not indexed at end %d", id, end)
			}
		}
	}
	if s.ends.Len() != durations {
		return fmt.Errorf("end index has %d entries for %d events with a duration", s.ends.Len(), durations)
	}
	return nil
}
