package core

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"songstore/internal/blob"
	"songstore/internal/infra/persistence/memory"
	"songstore/internal/infra/persistence/postgres"
	"songstore/internal/infra/persistence/postgres/testutil"
	"songstore/internal/infra/persistence/sqlite"
)

func TestOpenArchiveDrivers(t *testing.T) {
	ctx := context.Background()

	t.Setenv("SONGSTORE_ARCHIVE_DRIVER", "")
	a, err := OpenArchive(ctx)
	if _, ok := a.(*memory.Archive); err != nil || !ok {
		t.Fatalf("default driver: %T %v", a, err)
	}

	t.Setenv("SONGSTORE_ARCHIVE_DRIVER", "sqlite")
	t.Setenv("SONGSTORE_SQLITE_PATH", filepath.Join(t.TempDir(), "songs.db"))
	a, err = OpenArchive(ctx)
	sq, ok := a.(*sqlite.Archive)
	if err != nil || !ok {
		t.Fatalf("sqlite driver: %T %v", a, err)
	}
	_ = sq.Close()

	t.Setenv("SONGSTORE_ARCHIVE_DRIVER", "postgres")
	db, _ := testutil.NewStubDB()
	restore := postgres.OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	a, err = OpenArchive(ctx)
	if _, ok := a.(*postgres.Archive); err != nil || !ok {
		t.Fatalf("postgres driver: %T %v", a, err)
	}

	t.Setenv("SONGSTORE_ARCHIVE_DRIVER", "blob")
	t.Setenv("SONGSTORE_BLOB_DRIVER", "memory")
	a, err = OpenArchive(ctx)
	ba, ok := a.(*blob.Archive)
	if err != nil || !ok || ba.Store().Driver() != blob.DriverMemory {
		t.Fatalf("blob driver: %T %v", a, err)
	}

	t.Setenv("SONGSTORE_BLOB_DRIVER", "bogus")
	if _, err := OpenArchive(ctx); err == nil {
		t.Fatalf("expected blob open error")
	}

	t.Setenv("SONGSTORE_ARCHIVE_DRIVER", "tape")
	if _, err := OpenArchive(ctx); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestOpenArchivePostgresFailure(t *testing.T) {
	t.Setenv("SONGSTORE_ARCHIVE_DRIVER", "postgres")
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := postgres.OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	a, err := OpenArchive(context.Background())
	if err == nil || a != nil {
		t.Fatalf("expected ping failure and nil archive, got %v %v", a, err)
	}
}
