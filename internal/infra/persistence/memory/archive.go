package memory

import (
	"context"
	"sort"
	"sync"

	"songstore/pkg/domain"
)

var _ domain.Archive = (*Archive)(nil)

// Archive keeps song snapshots in process memory.
type Archive struct {
	mu    sync.RWMutex
	songs map[string]domain.SongRecord
}

// NewArchive returns an empty archive.
func NewArchive() *Archive {
	return &Archive{songs: make(map[string]domain.SongRecord)}
}

// Save stores a deep copy of rec under name.
func (a *Archive) Save(_ context.Context, name string, rec domain.SongRecord) error {
	if err := domain.ValidateArchiveName(name); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.songs[name] = rec.Clone()
	return nil
}

// Load returns a deep copy of the snapshot under name.
func (a *Archive) Load(_ context.Context, name string) (domain.SongRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.songs[name]
	if !ok {
		return domain.SongRecord{}, domain.ErrNotFound{Entity: domain.EntitySong, ID: name}
	}
	return rec.Clone(), nil
}

// List returns the stored names in ascending order.
func (a *Archive) List(_ context.Context) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.songs))
	for name := range a.songs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes name and reports whether it existed.
func (a *Archive) Delete(_ context.Context, name string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.songs[name]; !ok {
		return false, nil
	}
	delete(a.songs, name)
	return true, nil
}
