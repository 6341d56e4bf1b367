package domain

import (
	"bytes"

	"github.com/google/uuid"
)

// ID is an opaque 128-bit identifier for tracks and events. The zero value is
// never minted by NewID and is treated as "no id".
type ID struct {
	u uuid.UUID
}

// NewID mints a fresh random (version 4) identifier.
func NewID() ID {
	return ID{u: uuid.New()}
}

// ParseID parses the canonical hyphenated form produced by String.
func ParseID(s string) (ID, error) {
	if len(s) != 36 {
		return ID{}, ErrInvalidIdentifier{Value: s}
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, ErrInvalidIdentifier{Value: s, Err: err}
	}
	return ID{u: u}, nil
}

// MustParseID is ParseID for literals in tests and fixtures.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical 36-character lowercase form.
func (id ID) String() string {
	return id.u.String()
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return id.u == uuid.Nil
}

// Compare orders identifiers by their byte value.
func (id ID) Compare(other ID) int {
	return bytes.Compare(id.u[:], other.u[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
