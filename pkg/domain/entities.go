// Package domain defines the songstore value types: identifiers, ticks, the
// event union and its input/updater forms, song headers, wire records and the
// error taxonomy shared by the store and its adapters.
package domain

import "fmt"

// EntityType identifies the kind of record an error or archive entry refers to.
type EntityType string

const (
	// EntitySong identifies a song (active or archived).
	EntitySong EntityType = "song"
	// EntityTrack identifies a track.
	EntityTrack EntityType = "track"
	// EntityEvent identifies an event.
	EntityEvent EntityType = "event"
)

// EventKind discriminates the variants of Event.
type EventKind string

const (
	// EventKindNote is a sustained note with velocity and note number.
	EventKindNote EventKind = "Note"
)

// ParseEventKind validates a wire discriminator.
func ParseEventKind(s string) (EventKind, error) {
	switch EventKind(s) {
	case EventKindNote:
		return EventKindNote, nil
	default:
		return "", ErrValidation{Field: "kind", Reason: fmt.Sprintf("unknown event kind %q", s)}
	}
}

func unknownKind(k EventKind) InvariantViolation {
	return InvariantViolation{Detail: fmt.Sprintf("unknown event kind %q", k)}
}

// Note is the payload of an EventKindNote event.
type Note struct {
	Duration   Ticks
	Velocity   uint8
	NoteNumber uint8
}

// NoteUpdater carries optional Note overrides.
type NoteUpdater struct {
	Duration   *Ticks
	Velocity   *uint8
	NoteNumber *uint8
}

// Event is a timed record owned by exactly one track. Kind selects which
// payload field is meaningful; consumers switch on Kind.
type Event struct {
	ID      ID
	TrackID ID
	Kind    EventKind
	Ticks   Ticks
	Note    Note
}

// EventInput holds the fields of a new event; the store mints its ID.
type EventInput struct {
	Kind    EventKind
	TrackID ID
	Ticks   Ticks
	Note    Note
}

// EventUpdater names an event and the fields to replace. Nil fields keep
// their previous value.
type EventUpdater struct {
	ID      ID
	Kind    EventKind
	TrackID *ID
	Ticks   *Ticks
	Note    NoteUpdater
}

// FromInput builds a new event with a freshly minted ID.
func FromInput(in EventInput) Event {
	switch in.Kind {
	case EventKindNote:
		return Event{
			ID:      NewID(),
			TrackID: in.TrackID,
			Kind:    EventKindNote,
			Ticks:   in.Ticks,
			Note:    in.Note,
		}
	default:
		panic(unknownKind(in.Kind))
	}
}

// ApplyUpdater returns a copy of e with the fields present in u replaced.
// u must name e.
func ApplyUpdater(e Event, u EventUpdater) Event {
	if u.ID != e.ID {
		panic(InvariantViolation{Detail: fmt.Sprintf("updater %s applied to event %s", u.ID, e.ID)})
	}
	next := e
	if u.TrackID != nil {
		next.TrackID = *u.TrackID
	}
	if u.Ticks != nil {
		next.Ticks = *u.Ticks
	}
	switch e.Kind {
	case EventKindNote:
		if u.Note.Duration != nil {
			next.Note.Duration = *u.Note.Duration
		}
		if u.Note.Velocity != nil {
			next.Note.Velocity = *u.Note.Velocity
		}
		if u.Note.NoteNumber != nil {
			next.Note.NoteNumber = *u.Note.NoteNumber
		}
	default:
		panic(unknownKind(e.Kind))
	}
	return next
}

// Duration returns the sustain of the event, or false for variants without one.
func (e Event) Duration() (Ticks, bool) {
	switch e.Kind {
	case EventKindNote:
		return e.Note.Duration, true
	default:
		panic(unknownKind(e.Kind))
	}
}

// EndTicks returns Ticks+Duration for events that have a duration. It panics
// if the end does not fit in the tick domain.
func (e Event) EndTicks() (Ticks, bool) {
	d, ok := e.Duration()
	if !ok {
		return 0, false
	}
	return e.Ticks.Add(d), true
}

// SpanFits reports whether Ticks+Duration stays inside the tick domain.
func (e Event) SpanFits() bool {
	d, ok := e.Duration()
	if !ok {
		return true
	}
	_, fits := e.Ticks.CheckedAdd(d)
	return fits
}

// Compare orders events by start tick, then by ID.
func Compare(a, b Event) int {
	switch {
	case a.Ticks < b.Ticks:
		return -1
	case a.Ticks > b.Ticks:
		return 1
	}
	return a.ID.Compare(b.ID)
}

// Less reports whether a sorts before b under Compare.
func Less(a, b Event) bool { return Compare(a, b) < 0 }

// SongHeader is the non-structural part of a song.
type SongHeader struct {
	Title     string
	PPQ       uint32
	EndOfSong Ticks
}

// SongUpdater carries optional SongHeader overrides.
type SongUpdater struct {
	Title     *string
	PPQ       *uint32
	EndOfSong *Ticks
}

// Apply returns h with the fields present in u replaced.
func (u SongUpdater) Apply(h SongHeader) SongHeader {
	if u.Title != nil {
		h.Title = *u.Title
	}
	if u.PPQ != nil {
		h.PPQ = *u.PPQ
	}
	if u.EndOfSong != nil {
		h.EndOfSong = *u.EndOfSong
	}
	return h
}

// Ptr returns a pointer to v; handy for building updaters.
func Ptr[T any](v T) *T { return &v }
