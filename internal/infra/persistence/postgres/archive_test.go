package postgres

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"strings"
	"testing"

	"songstore/internal/infra/persistence/postgres/testutil"
	"songstore/pkg/domain"
)

func openStub(t *testing.T) (*Archive, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(driver, dsn string) (*sql.DB, error) {
		if driver != "pgx" {
			t.Fatalf("unexpected driver %s", driver)
		}
		return db, nil
	})
	t.Cleanup(restore)
	a, err := NewArchive(context.Background(), "")
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}
	return a, conn
}

func sampleRecord() domain.SongRecord {
	track := domain.NewID().String()
	return domain.SongRecord{Title: "demo", PPQ: 480, EndOfSong: 960, Tracks: []domain.TrackRecord{{
		ID: track,
		Events: []domain.EventRecord{{
			ID: domain.NewID().String(), Kind: "Note", Ticks: 0, Duration: 480, Velocity: 100, NoteNumber: 60, TrackID: track,
		}},
	}}}
}

func TestNewArchiveCreatesTable(t *testing.T) {
	_, conn := openStub(t)
	if len(conn.Execs) == 0 || !strings.Contains(strings.ToUpper(conn.Execs[0]), "CREATE TABLE IF NOT EXISTS SONGS") {
		t.Fatalf("expected songs DDL, got %v", conn.Execs)
	}
}

func TestArchiveSaveLoadListDelete(t *testing.T) {
	ctx := context.Background()
	a, conn := openStub(t)
	rec := sampleRecord()
	if err := a.Save(ctx, "first", rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec.Title = "updated"
	if err := a.Save(ctx, "first", rec); err != nil {
		t.Fatalf("resave: %v", err)
	}
	if err := a.Save(ctx, "another", sampleRecord()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := len(conn.Tables["songs"]); got != 2 {
		t.Fatalf("expected 2 rows, got %d", got)
	}
	loaded, err := a.Load(ctx, "first")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Title != "updated" || loaded.EventCount() != 1 || loaded.Tracks[0].Events[0] != rec.Tracks[0].Events[0] {
		t.Fatalf("unexpected record %+v", loaded)
	}
	names, err := a.List(ctx)
	if err != nil || !slices.Equal(names, []string{"another", "first"}) {
		t.Fatalf("list: %v %v", names, err)
	}
	if ok, err := a.Delete(ctx, "first"); !ok || err != nil {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, _ := a.Delete(ctx, "first"); ok {
		t.Fatalf("second delete should report false")
	}
	if _, err := a.Load(ctx, "first"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestArchiveErrors(t *testing.T) {
	ctx := context.Background()
	a, conn := openStub(t)
	if err := a.Save(ctx, "", sampleRecord()); err == nil {
		t.Fatalf("expected name validation error")
	}
	conn.FailBegin = true
	if err := a.Save(ctx, "x", sampleRecord()); err == nil {
		t.Fatalf("expected begin error")
	}
	conn.FailBegin = false
	conn.FailCommit = true
	if err := a.Save(ctx, "x", sampleRecord()); err == nil {
		t.Fatalf("expected commit error")
	}
	conn.FailCommit = false
	conn.FailQuery = true
	if _, err := a.List(ctx); err == nil {
		t.Fatalf("expected list error")
	}
	if _, err := a.Load(ctx, "x"); err == nil || domain.IsNotFound(err) {
		t.Fatalf("expected query error, got %v", err)
	}
	conn.FailQuery = false
	conn.Tables["songs"] = []map[string]any{{"name": "bad", "payload": "{"}}
	if _, err := a.Load(ctx, "bad"); err == nil {
		t.Fatalf("expected decode error")
	}
	conn.FailExec = true
	if _, err := a.Delete(ctx, "bad"); err == nil {
		t.Fatalf("expected delete error")
	}
}

func TestNewArchiveFailures(t *testing.T) {
	ctx := context.Background()
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("boom") })
	if _, err := NewArchive(ctx, "dsn"); err == nil {
		t.Fatalf("expected open error")
	}
	restore()

	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore = OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewArchive(ctx, "dsn"); err == nil || !strings.Contains(err.Error(), "ping") {
		t.Fatalf("expected ping error, got %v", err)
	}

	db, conn = testutil.NewStubDB()
	conn.FailExec = true
	restore2 := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore2()
	if _, err := NewArchive(ctx, "dsn"); err == nil || !strings.Contains(err.Error(), "songs table") {
		t.Fatalf("expected ddl error, got %v", err)
	}
}
