package domain

// Wire records exchanged with host bindings, codecs and archives. Identifiers
// travel in their canonical string form.

// EventRecord is the wire shape of an event.
type EventRecord struct {
	ID         string `json:"id" yaml:"id"`
	Kind       string `json:"kind" yaml:"kind"`
	Ticks      uint32 `json:"ticks" yaml:"ticks"`
	Duration   uint32 `json:"duration" yaml:"duration"`
	Velocity   uint8  `json:"velocity" yaml:"velocity"`
	NoteNumber uint8  `json:"noteNumber" yaml:"noteNumber"`
	TrackID    string `json:"trackId" yaml:"trackId"`
}

// TrackRecord is the wire shape of a track with its events in time order.
type TrackRecord struct {
	ID     string        `json:"id" yaml:"id"`
	Events []EventRecord `json:"events" yaml:"events"`
}

// SongRecord is the wire shape of a whole song. It doubles as the snapshot
// format used by archives.
type SongRecord struct {
	Title     string        `json:"title" yaml:"title"`
	PPQ       uint32        `json:"ppq" yaml:"ppq"`
	EndOfSong uint32        `json:"endOfSong" yaml:"endOfSong"`
	Tracks    []TrackRecord `json:"tracks" yaml:"tracks"`
}

// EventInputRecord is the wire shape of an EventInput.
type EventInputRecord struct {
	Kind       string `json:"kind" yaml:"kind"`
	TrackID    string `json:"trackId" yaml:"trackId"`
	Ticks      uint32 `json:"ticks" yaml:"ticks"`
	Duration   uint32 `json:"duration" yaml:"duration"`
	Velocity   uint8  `json:"velocity" yaml:"velocity"`
	NoteNumber uint8  `json:"noteNumber" yaml:"noteNumber"`
}

// EventUpdaterRecord is the wire shape of an EventUpdater; absent fields are nil.
type EventUpdaterRecord struct {
	ID         string  `json:"id" yaml:"id"`
	Kind       string  `json:"kind" yaml:"kind"`
	TrackID    *string `json:"trackId,omitempty" yaml:"trackId,omitempty"`
	Ticks      *uint32 `json:"ticks,omitempty" yaml:"ticks,omitempty"`
	Duration   *uint32 `json:"duration,omitempty" yaml:"duration,omitempty"`
	Velocity   *uint8  `json:"velocity,omitempty" yaml:"velocity,omitempty"`
	NoteNumber *uint8  `json:"noteNumber,omitempty" yaml:"noteNumber,omitempty"`
}

// NewEventRecord converts an event to its wire shape.
func NewEventRecord(e Event) EventRecord {
	rec := EventRecord{
		ID:      e.ID.String(),
		Kind:    string(e.Kind),
		Ticks:   e.Ticks.Uint32(),
		TrackID: e.TrackID.String(),
	}
	switch e.Kind {
	case EventKindNote:
		rec.Duration = e.Note.Duration.Uint32()
		rec.Velocity = e.Note.Velocity
		rec.NoteNumber = e.Note.NoteNumber
	default:
		panic(unknownKind(e.Kind))
	}
	return rec
}

// NewEventRecords converts a slice of events, preserving order.
func NewEventRecords(events []Event) []EventRecord {
	out := make([]EventRecord, 0, len(events))
	for _, e := range events {
		out = append(out, NewEventRecord(e))
	}
	return out
}

// Event parses the record back into an Event.
func (r EventRecord) Event() (Event, error) {
	kind, err := ParseEventKind(r.Kind)
	if err != nil {
		return Event{}, err
	}
	id, err := ParseID(r.ID)
	if err != nil {
		return Event{}, err
	}
	trackID, err := ParseID(r.TrackID)
	if err != nil {
		return Event{}, err
	}
	e := Event{ID: id, TrackID: trackID, Kind: kind, Ticks: Ticks(r.Ticks)}
	switch kind {
	case EventKindNote:
		e.Note = Note{Duration: Ticks(r.Duration), Velocity: r.Velocity, NoteNumber: r.NoteNumber}
	default:
		panic(unknownKind(kind))
	}
	return e, nil
}

// Input parses the record into an EventInput.
func (r EventInputRecord) Input() (EventInput, error) {
	kind, err := ParseEventKind(r.Kind)
	if err != nil {
		return EventInput{}, err
	}
	trackID, err := ParseID(r.TrackID)
	if err != nil {
		return EventInput{}, err
	}
	in := EventInput{Kind: kind, TrackID: trackID, Ticks: Ticks(r.Ticks)}
	switch kind {
	case EventKindNote:
		in.Note = Note{Duration: Ticks(r.Duration), Velocity: r.Velocity, NoteNumber: r.NoteNumber}
	default:
		panic(unknownKind(kind))
	}
	return in, nil
}

// Updater parses the record into an EventUpdater.
func (r EventUpdaterRecord) Updater() (EventUpdater, error) {
	kind, err := ParseEventKind(r.Kind)
	if err != nil {
		return EventUpdater{}, err
	}
	id, err := ParseID(r.ID)
	if err != nil {
		return EventUpdater{}, err
	}
	u := EventUpdater{ID: id, Kind: kind}
	if r.TrackID != nil {
		trackID, err := ParseID(*r.TrackID)
		if err != nil {
			return EventUpdater{}, err
		}
		u.TrackID = &trackID
	}
	if r.Ticks != nil {
		u.Ticks = Ptr(Ticks(*r.Ticks))
	}
	switch kind {
	case EventKindNote:
		if r.Duration != nil {
			u.Note.Duration = Ptr(Ticks(*r.Duration))
		}
		u.Note.Velocity = r.Velocity
		u.Note.NoteNumber = r.NoteNumber
	default:
		panic(unknownKind(kind))
	}
	return u, nil
}

// Header extracts the song header.
func (r SongRecord) Header() SongHeader {
	return SongHeader{Title: r.Title, PPQ: r.PPQ, EndOfSong: Ticks(r.EndOfSong)}
}

// EventCount returns the number of events across all tracks.
func (r SongRecord) EventCount() int {
	n := 0
	for _, t := range r.Tracks {
		n += len(t.Events)
	}
	return n
}

// Clone deep-copies the record.
func (r SongRecord) Clone() SongRecord {
	cp := r
	cp.Tracks = make([]TrackRecord, len(r.Tracks))
	for i, t := range r.Tracks {
		cp.Tracks[i] = TrackRecord{ID: t.ID, Events: append([]EventRecord(nil), t.Events...)}
	}
	return cp
}
