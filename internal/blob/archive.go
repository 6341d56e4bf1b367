package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"songstore/internal/codec"
	"songstore/pkg/domain"
)

const archivePrefix = "songs/"

// Archive stores song snapshots as YAML documents in a blob Store under
// songs/<name>.yaml.
type Archive struct {
	store Store
}

// NewArchive wraps store as a domain.Archive.
func NewArchive(store Store) *Archive {
	return &Archive{store: store}
}

// Store returns the underlying blob store.
func (a *Archive) Store() Store { return a.store }

func archiveKey(name string) string { return archivePrefix + name + ".yaml" }

// Save writes rec under name, replacing any previous snapshot.
func (a *Archive) Save(ctx context.Context, name string, rec domain.SongRecord) error {
	if err := domain.ValidateArchiveName(name); err != nil {
		return err
	}
	payload, err := codec.Marshal(rec, codec.FormatYAML)
	if err != nil {
		return err
	}
	opts := PutOptions{
		ContentType: codec.FormatYAML.ContentType(),
		Metadata:    map[string]string{"title": rec.Title},
	}
	if _, err := a.store.Put(ctx, archiveKey(name), bytes.NewReader(payload), opts); err != nil {
		return fmt.Errorf("put song %s: %w", name, err)
	}
	return nil
}

// Load returns the snapshot saved under name.
func (a *Archive) Load(ctx context.Context, name string) (domain.SongRecord, error) {
	if err := domain.ValidateArchiveName(name); err != nil {
		return domain.SongRecord{}, err
	}
	_, r, err := a.store.Get(ctx, archiveKey(name))
	if err != nil {
		if errors.Is(err, ErrNotExist) {
			return domain.SongRecord{}, domain.ErrNotFound{Entity: domain.EntitySong, ID: name}
		}
		return domain.SongRecord{}, fmt.Errorf("get song %s: %w", name, err)
	}
	defer func() { _ = r.Close() }()
	b, err := io.ReadAll(r)
	if err != nil {
		return domain.SongRecord{}, fmt.Errorf("read song %s: %w", name, err)
	}
	return codec.Unmarshal(b, codec.FormatYAML)
}

// List returns archived names in ascending order.
func (a *Archive) List(ctx context.Context) ([]string, error) {
	infos, err := a.store.List(ctx, archivePrefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		name, ok := strings.CutSuffix(strings.TrimPrefix(info.Key, archivePrefix), ".yaml")
		if !ok || name == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the snapshot saved under name.
func (a *Archive) Delete(ctx context.Context, name string) (bool, error) {
	if err := domain.ValidateArchiveName(name); err != nil {
		return false, err
	}
	return a.store.Delete(ctx, archiveKey(name))
}

var _ domain.Archive = (*Archive)(nil)
