package memory

import (
	"fmt"

	"songstore/pkg/domain"
)

// Record exports the song as a wire record: tracks in song order, events in
// (ticks, id) order.
func (s *Song) Record() domain.SongRecord {
	rec := domain.SongRecord{
		Title:     s.header.Title,
		PPQ:       s.header.PPQ,
		EndOfSong: s.header.EndOfSong.Uint32(),
		Tracks:    make([]domain.TrackRecord, 0, len(s.order)),
	}
	for _, t := range s.Tracks() {
		rec.Tracks = append(rec.Tracks, TrackRecord(t))
	}
	return rec
}

// TrackRecord exports one track.
func TrackRecord(t TrackReader) domain.TrackRecord {
	return domain.TrackRecord{ID: t.ID().String(), Events: domain.NewEventRecords(t.SortedEvents())}
}

// FromRecord builds a song from a wire record, keeping its ids. Records that
// would break the song's structural rules are rejected rather than repaired.
func FromRecord(rec domain.SongRecord) (*Song, error) {
	rec = migrateRecord(rec)
	if rec.PPQ == 0 {
		return nil, domain.ErrValidation{Field: "ppq", Reason: "must be positive"}
	}
	song := NewSong(rec.Title, rec.PPQ)
	song.header.EndOfSong = domain.Ticks(rec.EndOfSong)
	for _, tr := range rec.Tracks {
		id, err := domain.ParseID(tr.ID)
		if err != nil {
			return nil, fmt.Errorf("track: %w", err)
		}
		if _, dup := song.tracks[id]; dup {
			return nil, domain.ErrValidation{Field: "tracks", Reason: fmt.Sprintf("duplicate track id %s", id)}
		}
		song.attach(newTrack(id))
	}
	for _, tr := range rec.Tracks {
		for _, er := range tr.Events {
			e, err := er.Event()
			if err != nil {
				return nil, fmt.Errorf("event in track %s: %w", tr.ID, err)
			}
			if e.TrackID.String() != tr.ID {
				return nil, domain.ErrValidation{Field: "trackId", Reason: fmt.Sprintf("event %s listed under track %s names track %s", e.ID, tr.ID, e.TrackID)}
			}
			if song.events.Contains(e.ID) {
				return nil, domain.ErrValidation{Field: "events", Reason: fmt.Sprintf("duplicate event id %s", e.ID)}
			}
			if !e.SpanFits() {
				return nil, domain.ErrValidation{Field: "duration", Reason: fmt.Sprintf("event %s ends past the last tick", e.ID)}
			}
			song.events.Insert(e)
			song.tracks[e.TrackID].events.Insert(e)
		}
	}
	return song, nil
}

// migrateRecord normalizes records written by older producers: events nested
// under a track may omit their trackId, and ids may be upper case.
func migrateRecord(rec domain.SongRecord) domain.SongRecord {
	rec = rec.Clone()
	for i := range rec.Tracks {
		tr := &rec.Tracks[i]
		if id, err := domain.ParseID(tr.ID); err == nil {
			tr.ID = id.String()
		}
		for j := range tr.Events {
			if tr.Events[j].TrackID == "" {
				tr.Events[j].TrackID = tr.ID
			}
		}
	}
	return rec
}
