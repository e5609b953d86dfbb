// Package productstore persists downloaded DYFI aggregated products, either
// in local directories or in an S3 bucket.
package productstore

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/gzip"

	"github.com/couchcryptid/dyfi-induced-db/internal/domain"
)

const gzipExt = ".gz"

// fileName is "<eventid>.geojson", plus ".gz" when compressed.
func fileName(f domain.ProductFile, compressed bool) string {
	name := f.EventID + ".geojson"
	if compressed {
		name += gzipExt
	}
	return name
}

// encode returns the bytes to persist for f.
func encode(f domain.ProductFile, compressed bool) ([]byte, error) {
	if !compressed {
		return f.Data, nil
	}
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := gz.Write(f.Data); err != nil {
		_ = gz.Close()
		return nil, fmt.Errorf("compress %s: %w", f.Product, err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("compress %s: %w", f.Product, err)
	}
	return buf.Bytes(), nil
}
