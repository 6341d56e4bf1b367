package domain

import "context"

// Archive stores whole-song snapshots under caller-chosen names. The store
// never calls an archive on its own; saving and loading are explicit.
type Archive interface {
	// Save writes rec under name, replacing any previous snapshot.
	Save(ctx context.Context, name string, rec SongRecord) error
	// Load returns the snapshot saved under name or ErrNotFound.
	Load(ctx context.Context, name string) (SongRecord, error)
	// List returns the archived names in ascending order.
	List(ctx context.Context) ([]string, error)
	// Delete removes name, reporting whether it existed.
	Delete(ctx context.Context, name string) (bool, error)
}

// ValidateArchiveName rejects names that cannot be used as keys by every
// archive backend.
func ValidateArchiveName(name string) error {
	switch {
	case name == "":
		return ErrValidation{Field: "name", Reason: "empty"}
	case name[0] == '/':
		return ErrValidation{Field: "name", Reason: "absolute path"}
	case containsDotDot(name):
		return ErrValidation{Field: "name", Reason: "contains '..'"}
	}
	return nil
}

func containsDotDot(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '.' && s[i+1] == '.' {
			return true
		}
	}
	return false
}
