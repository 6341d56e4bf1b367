// Package memory holds the in-memory song model: tracks and songs backed by
// tick indices, snapshot conversion, and an in-memory archive.
package memory

import (
	"fmt"
	"iter"

	"songstore/internal/index"
	"songstore/pkg/domain"
)

// TrackReader is the read-only view of a track handed out by a Song.
// Mutations go through the Song so song-level indices stay in step.
type TrackReader interface {
	ID() domain.ID
	Event(id domain.ID) (domain.Event, bool)
	Len() int
	IDs() []domain.ID
	SortedEvents() []domain.Event
	EventsInRange(start, end domain.Ticks, withinDuration bool) []domain.Event
}

var _ TrackReader = (*Track)(nil)

// Track owns the events whose TrackID is its id.
type Track struct {
	id     domain.ID
	events *index.EventSet
}

// NewTrack returns an empty track with a fresh id.
func NewTrack() *Track {
	return newTrack(domain.NewID())
}

func newTrack(id domain.ID) *Track {
	return &Track{id: id, events: index.NewEventSet()}
}

// ID returns the track id.
func (t *Track) ID() domain.ID { return t.id }

// AddEvent stores a new event built from in. The event always belongs to t,
// whatever in.TrackID says.
func (t *Track) AddEvent(in domain.EventInput) domain.Event {
	in.TrackID = t.id
	e := domain.FromInput(in)
	t.events.Insert(e)
	return e
}

// UpdateEvent replaces the event named by u. A standalone track cannot hand
// an event to another track, so a TrackID override must name t itself.
func (t *Track) UpdateEvent(u domain.EventUpdater) (domain.Event, error) {
	old, ok := t.events.Get(u.ID)
	if !ok {
		return domain.Event{}, domain.ErrNotFound{Entity: domain.EntityEvent, ID: u.ID.String()}
	}
	if u.Kind != old.Kind {
		return domain.Event{}, kindMismatch(old, u)
	}
	if u.TrackID != nil && *u.TrackID != t.id {
		return domain.Event{}, domain.ErrValidation{Field: "trackId", Reason: "a standalone track cannot move events"}
	}
	next := domain.ApplyUpdater(old, u)
	t.events.Replace(next)
	return next, nil
}

// RemoveEvent deletes the event with the given id.
func (t *Track) RemoveEvent(id domain.ID) error {
	if _, ok := t.events.Remove(id); !ok {
		return domain.ErrNotFound{Entity: domain.EntityEvent, ID: id.String()}
	}
	return nil
}

// Event returns the event with the given id.
func (t *Track) Event(id domain.ID) (domain.Event, bool) { return t.events.Get(id) }

// Len returns the number of events on the track.
func (t *Track) Len() int { return t.events.Len() }

// IDs returns the event ids in time order.
func (t *Track) IDs() []domain.ID { return t.events.IDs() }

// SortedEvents returns the events in (ticks, id) order.
func (t *Track) SortedEvents() []domain.Event { return t.events.Sorted() }

// EventsInRange returns the events starting in [start, end), plus those
// still sounding at start when withinDuration is set.
func (t *Track) EventsInRange(start, end domain.Ticks, withinDuration bool) []domain.Event {
	return t.events.InRange(start, end, withinDuration)
}

func (t *Track) all() iter.Seq[domain.Event] { return t.events.All() }

func kindMismatch(e domain.Event, u domain.EventUpdater) error {
	return domain.ErrValidation{Field: "kind", Reason: fmt.Sprintf("updater kind %q does not match event kind %q", u.Kind, e.Kind)}
}
