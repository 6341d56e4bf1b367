package core

import (
	"context"
	"fmt"

	"songstore/internal/infra/persistence/memory"
	"songstore/pkg/domain"
)

// SaveSong snapshots the active song into the archive under name. The
// snapshot is taken under the read lock; the archive write happens outside it.
func (s *Service) SaveSong(ctx context.Context, name string) error {
	return s.run(ctx, "save_song", func(ctx context.Context) error {
		if err := domain.ValidateArchiveName(name); err != nil {
			return err
		}
		s.mu.RLock()
		song := s.song
		var rec domain.SongRecord
		if song != nil {
			rec = song.Record()
		}
		s.mu.RUnlock()
		if song == nil {
			return domain.ErrSongNotSet
		}
		err := s.archive.Save(ctx, name, rec)
		s.recordArchive(ctx, "save_song", name, err)
		if err != nil {
			return fmt.Errorf("save song %s: %w", name, err)
		}
		return nil
	})
}

// LoadSong replaces the active song with the snapshot saved under name.
func (s *Service) LoadSong(ctx context.Context, name string) (domain.SongRecord, error) {
	var out domain.SongRecord
	err := s.run(ctx, "load_song", func(ctx context.Context) error {
		rec, err := s.archive.Load(ctx, name)
		if err != nil {
			s.recordArchive(ctx, "load_song", name, err)
			return err
		}
		song, err := memory.FromRecord(rec)
		if err != nil {
			s.recordArchive(ctx, "load_song", name, err)
			return fmt.Errorf("load song %s: %w", name, err)
		}
		s.mu.Lock()
		s.song = song
		out = song.Record()
		s.mu.Unlock()
		s.recordArchive(ctx, "load_song", name, nil)
		return nil
	})
	return out, err
}

// ListSongs returns the archived names in ascending order.
func (s *Service) ListSongs(ctx context.Context) ([]string, error) {
	var out []string
	err := s.run(ctx, "list_songs", func(ctx context.Context) error {
		var err error
		out, err = s.archive.List(ctx)
		return err
	})
	return out, err
}

// DeleteSong removes an archived snapshot, reporting whether it existed. The
// active song is not affected.
func (s *Service) DeleteSong(ctx context.Context, name string) (bool, error) {
	var existed bool
	err := s.run(ctx, "delete_song", func(ctx context.Context) error {
		var err error
		existed, err = s.archive.Delete(ctx, name)
		s.recordArchive(ctx, "delete_song", name, err)
		return err
	})
	return existed, err
}

func (s *Service) recordArchive(ctx context.Context, op, name string, err error) {
	entry := AuditEntry{Operation: op, Entity: domain.EntitySong, EntityID: name, Status: AuditStatusSuccess, Timestamp: s.clock.Now()}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}
