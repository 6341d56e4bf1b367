package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a track, event or archived song that does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrInvalidIdentifier reports identifier text that failed to parse.
type ErrInvalidIdentifier struct {
	Value string
	Err   error
}

func (e ErrInvalidIdentifier) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid identifier %q: %v", e.Value, e.Err)
	}
	return fmt.Sprintf("invalid identifier %q", e.Value)
}

func (e ErrInvalidIdentifier) Unwrap() error { return e.Err }

// ErrValidation reports structurally invalid caller input such as a zero PPQ
// or an unknown event kind.
type ErrValidation struct {
	Field  string
	Reason string
}

func (e ErrValidation) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ErrSongNotSet is returned by operations that need an active song before one
// was created or set.
var ErrSongNotSet = errors.New("song is not set")

// InvariantViolation signals a broken index or model invariant. It is raised
// with panic and never returned as an error.
type InvariantViolation struct {
	Detail string
}

func (v InvariantViolation) Error() string {
	return "invariant violation: " + v.Detail
}

// IsNotFound reports whether err wraps an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}
