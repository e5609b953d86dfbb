package productstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/dyfi-induced-db/internal/domain"
)

// DirStore writes each product kind into its own directory.
type DirStore struct {
	dirs     map[string]string
	compress bool
}

// NewDirStore creates a store writing 1 km products to dir1km and 10 km
// products to dir10km.
func NewDirStore(dir1km, dir10km string, compress bool) *DirStore {
	return &DirStore{
		dirs: map[string]string{
			domain.ProductGeo1km:  dir1km,
			domain.ProductGeo10km: dir10km,
		},
		compress: compress,
	}
}

// StoreProduct writes f and returns the path written.
func (s *DirStore) StoreProduct(_ context.Context, f domain.ProductFile) (string, error) {
	dir, ok := s.dirs[f.Product]
	if !ok {
		return "", fmt.Errorf("no directory configured for product %q", f.Product)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	data, err := encode(f, s.compress)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fileName(f, s.compress))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
