package core

import (
	"context"
	"fmt"
	"os"

	"songstore/internal/blob"
	"songstore/internal/infra/persistence/memory"
	"songstore/internal/infra/persistence/postgres"
	"songstore/internal/infra/persistence/sqlite"
	"songstore/pkg/domain"
)

// ArchiveDriver identifies a concrete archive implementation.
type ArchiveDriver string

const (
	ArchiveMemory   ArchiveDriver = "memory"   // in-memory only (tests / ephemeral)
	ArchiveSQLite   ArchiveDriver = "sqlite"   // embedded sqlite file
	ArchivePostgres ArchiveDriver = "postgres" // PostgreSQL server
	ArchiveBlob     ArchiveDriver = "blob"     // YAML documents in a blob store
)

// OpenArchive selects an archive backend using environment variables.
// Defaults to memory when unset.
//
//	SONGSTORE_ARCHIVE_DRIVER: memory|sqlite|postgres|blob (default memory)
//	SONGSTORE_SQLITE_PATH: path to sqlite file (default ./songstore.db)
//	SONGSTORE_POSTGRES_DSN: postgres DSN when driver=postgres
//	(blob variables documented in internal/blob)
func OpenArchive(ctx context.Context) (domain.Archive, error) {
	driver := os.Getenv("SONGSTORE_ARCHIVE_DRIVER")
	if driver == "" {
		driver = string(ArchiveMemory)
	}
	switch ArchiveDriver(driver) {
	case ArchiveMemory:
		return memory.NewArchive(), nil
	case ArchiveSQLite:
		a, err := sqlite.NewArchive(os.Getenv("SONGSTORE_SQLITE_PATH"))
		if err != nil {
			return nil, err
		}
		return a, nil
	case ArchivePostgres:
		a, err := postgres.NewArchive(ctx, os.Getenv("SONGSTORE_POSTGRES_DSN"))
		if err != nil {
			return nil, err
		}
		return a, nil
	case ArchiveBlob:
		store, err := blob.Open(ctx)
		if err != nil {
			return nil, err
		}
		return blob.NewArchive(store), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %s", driver)
	}
}
