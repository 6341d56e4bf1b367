package memory

import (
	"fmt"
	"iter"
	"slices"

	"songstore/internal/index"
	"songstore/internal/merge"
	"songstore/pkg/domain"
)

// Song is the top-level aggregate. It owns the ordered tracks and a flattened
// event set over all of them whose indices mirror the per-track ones.
// Song does no locking; callers serialize mutations.
type Song struct {
	header domain.SongHeader
	order  []domain.ID
	tracks map[domain.ID]*Track
	events *index.EventSet
}

// NewSong returns an empty song with EndOfSong at zero.
func NewSong(title string, ppq uint32) *Song {
	return &Song{
		header: domain.SongHeader{Title: title, PPQ: ppq},
		tracks: make(map[domain.ID]*Track),
		events: index.NewEventSet(),
	}
}

// Header returns the title, PPQ and end-of-song marker.
func (s *Song) Header() domain.SongHeader { return s.header }

// ApplyHeader replaces the header fields present in u and returns the result.
func (s *Song) ApplyHeader(u domain.SongUpdater) domain.SongHeader {
	s.header = u.Apply(s.header)
	return s.header
}

// Len returns the number of events across all tracks.
func (s *Song) Len() int { return s.events.Len() }

// AddTrack appends an empty track.
func (s *Song) AddTrack() TrackReader {
	t := newTrack(domain.NewID())
	s.attach(t)
	return t
}

func (s *Song) attach(t *Track) {
	s.tracks[t.id] = t
	s.order = append(s.order, t.id)
}

// RemoveTrack removes the track and, through the event-removal path, every
// event it owns.
func (s *Song) RemoveTrack(id domain.ID) error {
	t, ok := s.tracks[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityTrack, ID: id.String()}
	}
	for _, eventID := range t.IDs() {
		s.removeEvent(eventID)
	}
	delete(s.tracks, id)
	s.order = slices.DeleteFunc(s.order, func(v domain.ID) bool { return v == id })
	return nil
}

// Track returns the track with the given id.
func (s *Song) Track(id domain.ID) (TrackReader, bool) {
	t, ok := s.tracks[id]
	if !ok {
		return nil, false
	}
	return t, true
}

// Tracks returns the tracks in the order they were added.
func (s *Song) Tracks() []TrackReader {
	out := make([]TrackReader, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tracks[id])
	}
	return out
}

// AddEvent stores a new event on the track named by in.TrackID.
func (s *Song) AddEvent(in domain.EventInput) (domain.Event, error) {
	t, ok := s.tracks[in.TrackID]
	if !ok {
		return domain.Event{}, domain.ErrNotFound{Entity: domain.EntityTrack, ID: in.TrackID.String()}
	}
	e := domain.FromInput(in)
	s.events.Insert(e)
	t.events.Insert(e)
	return e, nil
}

// UpdateEvent replaces the event named by u across the song and track
// structures. A TrackID override moves the event to another existing track.
func (s *Song) UpdateEvent(u domain.EventUpdater) (domain.Event, error) {
	old, ok := s.events.Get(u.ID)
	if !ok {
		return domain.Event{}, domain.ErrNotFound{Entity: domain.EntityEvent, ID: u.ID.String()}
	}
	if u.Kind != old.Kind {
		return domain.Event{}, kindMismatch(old, u)
	}
	if u.TrackID != nil {
		if _, ok := s.tracks[*u.TrackID]; !ok {
			return domain.Event{}, domain.ErrNotFound{Entity: domain.EntityTrack, ID: u.TrackID.String()}
		}
	}
	next := domain.ApplyUpdater(old, u)
	s.events.Replace(next)
	from := s.owner(old)
	if next.TrackID == old.TrackID {
		from.events.Replace(next)
		return next, nil
	}
	from.events.Remove(old.ID)
	s.tracks[next.TrackID].events.Insert(next)
	return next, nil
}

// RemoveEvent deletes the event with the given id.
func (s *Song) RemoveEvent(id domain.ID) error {
	if !s.events.Contains(id) {
		return domain.ErrNotFound{Entity: domain.EntityEvent, ID: id.String()}
	}
	s.removeEvent(id)
	return nil
}

func (s *Song) removeEvent(id domain.ID) {
	old, ok := s.events.Remove(id)
	if !ok {
		panic(domain.InvariantViolation{Detail: fmt.Sprintf("event %s vanished from song", id)})
	}
	if _, ok := s.owner(old).events.Remove(id); !ok {
		panic(domain.InvariantViolation{Detail: fmt.Sprintf("event %s missing from track %s", id, old.TrackID)})
	}
}

func (s *Song) owner(e domain.Event) *Track {
	t, ok := s.tracks[e.TrackID]
	if !ok {
		panic(domain.InvariantViolation{Detail: fmt.Sprintf("event %s names missing track %s", e.ID, e.TrackID)})
	}
	return t
}

// Event returns the event with the given id.
func (s *Song) Event(id domain.ID) (domain.Event, bool) { return s.events.Get(id) }

// Events returns events in (ticks, id) order. A nil filter reads the
// song-level index; otherwise the named tracks' own sequences are merged.
func (s *Song) Events(filter []domain.ID) ([]domain.Event, error) {
	if filter == nil {
		return s.events.Sorted(), nil
	}
	tracks, err := s.selectTracks(filter)
	if err != nil {
		return nil, err
	}
	streams := make([]iter.Seq[domain.Event], len(tracks))
	total := 0
	for i, t := range tracks {
		streams[i] = t.all()
		total += t.Len()
	}
	out := make([]domain.Event, 0, total)
	for e := range merge.Seq(streams, domain.Less) {
		out = append(out, e)
	}
	return out, nil
}

// EventsInRange runs the range query over the song-level index, or over each
// filtered track and merges the results.
func (s *Song) EventsInRange(start, end domain.Ticks, withinDuration bool, filter []domain.ID) ([]domain.Event, error) {
	if filter == nil {
		return s.events.InRange(start, end, withinDuration), nil
	}
	tracks, err := s.selectTracks(filter)
	if err != nil {
		return nil, err
	}
	lists := make([][]domain.Event, len(tracks))
	for i, t := range tracks {
		lists[i] = t.EventsInRange(start, end, withinDuration)
	}
	return merge.Slices(lists, domain.Less), nil
}

// selectTracks resolves a filter in song order, ignoring repeats.
func (s *Song) selectTracks(filter []domain.ID) ([]*Track, error) {
	want := make(map[domain.ID]struct{}, len(filter))
	for _, id := range filter {
		if _, ok := s.tracks[id]; !ok {
			return nil, domain.ErrNotFound{Entity: domain.EntityTrack, ID: id.String()}
		}
		want[id] = struct{}{}
	}
	out := make([]*Track, 0, len(want))
	for _, id := range s.order {
		if _, ok := want[id]; ok {
			out = append(out, s.tracks[id])
		}
	}
	return out, nil
}

// Verify checks the song-level and track-level structures against each
// other and against their own indices.
func (s *Song) Verify() error {
	if err := s.events.Verify(); err != nil {
		return fmt.Errorf("song index: %w", err)
	}
	if len(s.order) != len(s.tracks) {
		return fmt.Errorf("track order lists %d tracks, map holds %d", len(s.order), len(s.tracks))
	}
	total := 0
	for _, id := range s.order {
		t, ok := s.tracks[id]
		if !ok {
			return fmt.Errorf("track %s ordered but missing", id)
		}
		if err := t.events.Verify(); err != nil {
			return fmt.Errorf("track %s index: %w", id, err)
		}
		for _, e := range t.SortedEvents() {
			if e.TrackID != id {
				return fmt.Errorf("event %s on track %s names track %s", e.ID, id, e.TrackID)
			}
			if got, ok := s.events.Get(e.ID); !ok || got != e {
				return fmt.Errorf("event %s on track %s differs from song copy", e.ID, id)
			}
		}
		total += t.Len()
	}
	if total != s.events.Len() {
		return fmt.Errorf("tracks hold %d events, song holds %d", total, s.events.Len())
	}
	return nil
}
