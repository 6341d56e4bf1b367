package sqlite

import (
	"context"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"songstore/pkg/domain"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "songs.db")
	a, err := NewArchive(path)
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	if a.Path() != path || a.DB() == nil {
		t.Fatalf("unexpected archive handle")
	}
	return a
}

func sampleRecord(title string) domain.SongRecord {
	track := domain.NewID().String()
	return domain.SongRecord{Title: title, PPQ: 480, Tracks: []domain.TrackRecord{{
		ID: track,
		Events: []domain.EventRecord{
			{ID: domain.NewID().String(), Kind: "Note", Ticks: 0, Duration: 240, Velocity: 80, NoteNumber: 62, TrackID: track},
			{ID: domain.NewID().String(), Kind: "Note", Ticks: 240, Duration: 240, Velocity: 81, NoteNumber: 64, TrackID: track},
		},
	}}}
}

func TestArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := newTestArchive(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a.now = func() time.Time { return fixed }

	rec := sampleRecord("one")
	if err := a.Save(ctx, "one", rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := a.Load(ctx, "one")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Title != "one" || got.PPQ != 480 || !slices.Equal(got.Tracks[0].Events, rec.Tracks[0].Events) {
		t.Fatalf("unexpected record %+v", got)
	}
	at, err := a.UpdatedAt(ctx, "one")
	if err != nil || !at.Equal(fixed) {
		t.Fatalf("updated at: %v %v", at, err)
	}

	rec.Title = "one again"
	if err := a.Save(ctx, "one", rec); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got, _ := a.Load(ctx, "one"); got.Title != "one again" {
		t.Fatalf("overwrite not applied")
	}
}

func TestArchiveListAndDelete(t *testing.T) {
	ctx := context.Background()
	a := newTestArchive(t)
	for _, name := range []string{"c", "a", "b"} {
		if err := a.Save(ctx, name, sampleRecord(name)); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}
	names, err := a.List(ctx)
	if err != nil || !slices.Equal(names, []string{"a", "b", "c"}) {
		t.Fatalf("list: %v %v", names, err)
	}
	if ok, err := a.Delete(ctx, "b"); !ok || err != nil {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := a.Delete(ctx, "b"); ok || err != nil {
		t.Fatalf("second delete: %v %v", ok, err)
	}
	if _, err := a.Load(ctx, "b"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := a.UpdatedAt(ctx, "b"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestArchivePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "songs.db")
	a, err := NewArchive(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := a.Save(ctx, "kept", sampleRecord("kept")); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = a.Close()

	b, err := NewArchive(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = b.Close() }()
	if got, err := b.Load(ctx, "kept"); err != nil || got.Title != "kept" {
		t.Fatalf("reload: %+v %v", got, err)
	}
}

func TestArchiveRejectsBadNamesAndPayloads(t *testing.T) {
	ctx := context.Background()
	a := newTestArchive(t)
	if err := a.Save(ctx, "/abs", sampleRecord("x")); err == nil {
		t.Fatalf("expected name error")
	}
	if _, err := a.DB().Exec(`INSERT INTO songs(name,payload,updated_at) VALUES('broken', X'7B', 'now')`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := a.Load(ctx, "broken"); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := a.UpdatedAt(ctx, "broken"); err == nil {
		t.Fatalf("expected time parse error")
	}
}
