// Package storage resolves image references to bytes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/receiptwise/pipeline/internal/common"
)

// ImageStore fetches the raw image bytes for a job's image reference.
type ImageStore interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// FSStore reads images from a root directory. References are paths relative
// to the root; absolute paths are honored as-is.
type FSStore struct {
	root string
}

func NewFSStore(root string) *FSStore {
	return &FSStore{root: root}
}

func (s *FSStore) Fetch(_ context.Context, ref string) ([]byte, error) {
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, ref)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		// A missing file will not appear on retry; everything else might.
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.MarkPermanent(fmt.Errorf("image %q: %w", ref, common.ErrNotFound))
		}
		return nil, fmt.Errorf("read image %q: %w", ref, err)
	}
	return data, nil
}
