package blob

import (
	"fmt"

	fsstore "songstore/internal/infra/blob/fs"
)

// NewFilesystem returns a filesystem blob store rooted at root.
func NewFilesystem(root string) (Store, error) {
	st, err := fsstore.New(root)
	if err != nil {
		return nil, fmt.Errorf("open blob root: %w", err)
	}
	return st, nil
}
