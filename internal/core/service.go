// Package core exposes the song store to callers through a Service that owns
// the active song, serializes access to it and wraps every operation with
// logging, auditing, metrics and tracing.
package core

import (
	"context"
	"fmt"
	"sync"

	"songstore/internal/infra/persistence/memory"
	"songstore/pkg/domain"
)

// Service owns at most one active song. Mutations take the write lock and
// queries the read lock, so queries run concurrently with each other.
type Service struct {
	mu      sync.RWMutex
	song    *memory.Song
	archive domain.Archive

	clock   Clock
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
}

// NewService constructs a service with no active song.
func NewService(opts ...ServiceOption) *Service {
	cfg := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.archive == nil {
		cfg.archive = memory.NewArchive()
	}
	return &Service{
		archive: cfg.archive,
		clock:   cfg.clock,
		logger:  cfg.logger,
		audit:   cfg.audit,
		metrics: cfg.metrics,
		tracer:  cfg.tracer,
	}
}

// Archive returns the archive used for snapshots.
func (s *Service) Archive() domain.Archive { return s.archive }

func (s *Service) run(ctx context.Context, op string, fn func(context.Context) error) error {
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, op)
	err := fn(ctx)
	elapsed := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, elapsed)
	if err != nil {
		s.logger.Error("songstore operation failed", "operation", op, "error", err)
		return err
	}
	s.logger.Debug("songstore operation completed", "operation", op, "duration", elapsed)
	return nil
}

// write runs fn under the write lock and audits the outcome. fn returns the
// id of the entity it touched.
func (s *Service) write(ctx context.Context, op string, entity domain.EntityType, fn func() (string, error)) error {
	return s.run(ctx, op, func(ctx context.Context) error {
		id, err := s.locked(fn)
		entry := AuditEntry{Operation: op, Entity: entity, EntityID: id, Status: AuditStatusSuccess, Timestamp: s.clock.Now()}
		if err != nil {
			entry.Status = AuditStatusError
			entry.Error = err.Error()
		}
		s.audit.Record(ctx, entry)
		return err
	})
}

func (s *Service) locked(fn func() (string, error)) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// read runs fn under the read lock against the active song.
func (s *Service) read(ctx context.Context, op string, fn func(*memory.Song) error) error {
	return s.run(ctx, op, func(context.Context) error {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.song == nil {
			return domain.ErrSongNotSet
		}
		return fn(s.song)
	})
}

func (s *Service) active() (*memory.Song, error) {
	if s.song == nil {
		return nil, domain.ErrSongNotSet
	}
	return s.song, nil
}

// CreateSong replaces the active song with an empty one.
func (s *Service) CreateSong(ctx context.Context, title string, ppq uint32) (domain.SongRecord, error) {
	var out domain.SongRecord
	err := s.write(ctx, "create_song", domain.EntitySong, func() (string, error) {
		if ppq == 0 {
			return title, domain.ErrValidation{Field: "ppq", Reason: "must be positive"}
		}
		s.song = memory.NewSong(title, ppq)
		out = s.song.Record()
		return title, nil
	})
	return out, err
}

// SetSong replaces the active song with one built from rec, keeping its ids.
func (s *Service) SetSong(ctx context.Context, rec domain.SongRecord) (domain.SongRecord, error) {
	var out domain.SongRecord
	err := s.write(ctx, "set_song", domain.EntitySong, func() (string, error) {
		song, err := memory.FromRecord(rec)
		if err != nil {
			return rec.Title, err
		}
		s.song = song
		out = song.Record()
		return rec.Title, nil
	})
	return out, err
}

// ClearSong drops the active song.
func (s *Service) ClearSong(ctx context.Context) error {
	return s.write(ctx, "clear_song", domain.EntitySong, func() (string, error) {
		s.song = nil
		return "", nil
	})
}

// GetSong returns the active song, or false when none is set.
func (s *Service) GetSong(ctx context.Context) (domain.SongRecord, bool) {
	var out domain.SongRecord
	err := s.read(ctx, "get_song", func(song *memory.Song) error {
		out = song.Record()
		return nil
	})
	return out, err == nil
}

// UpdateSong replaces the header fields present in u.
func (s *Service) UpdateSong(ctx context.Context, u domain.SongUpdater) (domain.SongHeader, error) {
	var out domain.SongHeader
	err := s.write(ctx, "update_song", domain.EntitySong, func() (string, error) {
		song, err := s.active()
		if err != nil {
			return "", err
		}
		if u.PPQ != nil && *u.PPQ == 0 {
			return song.Header().Title, domain.ErrValidation{Field: "ppq", Reason: "must be positive"}
		}
		out = song.ApplyHeader(u)
		return out.Title, nil
	})
	return out, err
}

// AddTrack appends an empty track to the active song.
func (s *Service) AddTrack(ctx context.Context) (domain.TrackRecord, error) {
	var out domain.TrackRecord
	err := s.write(ctx, "add_track", domain.EntityTrack, func() (string, error) {
		song, err := s.active()
		if err != nil {
			return "", err
		}
		out = memory.TrackRecord(song.AddTrack())
		return out.ID, nil
	})
	return out, err
}

// RemoveTrack removes a track and all of its events.
func (s *Service) RemoveTrack(ctx context.Context, trackID string) error {
	return s.write(ctx, "remove_track", domain.EntityTrack, func() (string, error) {
		song, err := s.active()
		if err != nil {
			return trackID, err
		}
		id, err := domain.ParseID(trackID)
		if err != nil {
			return trackID, err
		}
		return trackID, song.RemoveTrack(id)
	})
}

// GetTrack returns the track with its events in time order.
func (s *Service) GetTrack(ctx context.Context, trackID string) (domain.TrackRecord, bool, error) {
	var (
		out   domain.TrackRecord
		found bool
	)
	err := s.read(ctx, "get_track", func(song *memory.Song) error {
		id, err := domain.ParseID(trackID)
		if err != nil {
			return err
		}
		t, ok := song.Track(id)
		if ok {
			out, found = memory.TrackRecord(t), true
		}
		return nil
	})
	return out, found, err
}

// GetTracks returns every track in song order.
func (s *Service) GetTracks(ctx context.Context) ([]domain.TrackRecord, error) {
	var out []domain.TrackRecord
	err := s.read(ctx, "get_tracks", func(song *memory.Song) error {
		tracks := song.Tracks()
		out = make([]domain.TrackRecord, 0, len(tracks))
		for _, t := range tracks {
			out = append(out, memory.TrackRecord(t))
		}
		return nil
	})
	return out, err
}

// AddEvent creates an event on the track named by rec.TrackID.
func (s *Service) AddEvent(ctx context.Context, rec domain.EventInputRecord) (domain.EventRecord, error) {
	var out domain.EventRecord
	err := s.write(ctx, "add_event", domain.EntityEvent, func() (string, error) {
		song, err := s.active()
		if err != nil {
			return "", err
		}
		in, err := rec.Input()
		if err != nil {
			return "", err
		}
		if candidate := (domain.Event{Kind: in.Kind, Ticks: in.Ticks, Note: in.Note}); !candidate.SpanFits() {
			return "", domain.ErrValidation{Field: "duration", Reason: "event ends past the last tick"}
		}
		e, err := song.AddEvent(in)
		if err != nil {
			return "", err
		}
		out = domain.NewEventRecord(e)
		return out.ID, nil
	})
	return out, err
}

// UpdateEvent applies the overrides present in rec to an existing event.
func (s *Service) UpdateEvent(ctx context.Context, rec domain.EventUpdaterRecord) (domain.EventRecord, error) {
	var out domain.EventRecord
	err := s.write(ctx, "update_event", domain.EntityEvent, func() (string, error) {
		song, err := s.active()
		if err != nil {
			return rec.ID, err
		}
		u, err := rec.Updater()
		if err != nil {
			return rec.ID, err
		}
		if old, ok := song.Event(u.ID); ok && old.Kind == u.Kind {
			if !domain.ApplyUpdater(old, u).SpanFits() {
				return rec.ID, domain.ErrValidation{Field: "duration", Reason: "event ends past the last tick"}
			}
		}
		e, err := song.UpdateEvent(u)
		if err != nil {
			return rec.ID, err
		}
		out = domain.NewEventRecord(e)
		return out.ID, nil
	})
	return out, err
}

// RemoveEvent deletes an event.
func (s *Service) RemoveEvent(ctx context.Context, eventID string) error {
	return s.write(ctx, "remove_event", domain.EntityEvent, func() (string, error) {
		song, err := s.active()
		if err != nil {
			return eventID, err
		}
		id, err := domain.ParseID(eventID)
		if err != nil {
			return eventID, err
		}
		return eventID, song.RemoveEvent(id)
	})
}

// GetEvent returns a single event.
func (s *Service) GetEvent(ctx context.Context, eventID string) (domain.EventRecord, bool, error) {
	var (
		out   domain.EventRecord
		found bool
	)
	err := s.read(ctx, "get_event", func(song *memory.Song) error {
		id, err := domain.ParseID(eventID)
		if err != nil {
			return err
		}
		if e, ok := song.Event(id); ok {
			out, found = domain.NewEventRecord(e), true
		}
		return nil
	})
	return out, found, err
}

// GetEvents returns events in (ticks, id) order, from every track when filter
// is nil or from the named tracks otherwise.
func (s *Service) GetEvents(ctx context.Context, filter []string) ([]domain.EventRecord, error) {
	var out []domain.EventRecord
	err := s.read(ctx, "get_events", func(song *memory.Song) error {
		ids, err := parseFilter(filter)
		if err != nil {
			return err
		}
		events, err := song.Events(ids)
		if err != nil {
			return err
		}
		out = domain.NewEventRecords(events)
		return nil
	})
	return out, err
}

// GetEventsInRange returns events starting in [start, end) and, when
// withinDuration is set, events still sounding at start.
func (s *Service) GetEventsInRange(ctx context.Context, start, end uint32, withinDuration bool, filter []string) ([]domain.EventRecord, error) {
	var out []domain.EventRecord
	err := s.read(ctx, "get_events_in_range", func(song *memory.Song) error {
		ids, err := parseFilter(filter)
		if err != nil {
			return err
		}
		events, err := song.EventsInRange(domain.Ticks(start), domain.Ticks(end), withinDuration, ids)
		if err != nil {
			return err
		}
		out = domain.NewEventRecords(events)
		return nil
	})
	return out, err
}

func parseFilter(filter []string) ([]domain.ID, error) {
	if filter == nil {
		return nil, nil
	}
	ids := make([]domain.ID, 0, len(filter))
	for _, raw := range filter {
		id, err := domain.ParseID(raw)
		if err != nil {
			return nil, fmt.Errorf("track filter: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
