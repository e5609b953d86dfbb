// Package geojson reads and writes catalog event files.
package geojson

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"github.com/couchcryptid/dyfi-induced-db/internal/domain"
)

// ReadEvents decodes either a bare JSON array of features or a
// FeatureCollection.
func ReadEvents(r io.Reader) ([]*domain.CatalogEvent, error) {
	br := bufio.NewReader(r)
	first, err := firstNonSpace(br)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	dec := json.NewDecoder(br)
	switch first {
	case '[':
		var events []*domain.CatalogEvent
		if err := dec.Decode(&events); err != nil {
			return nil, fmt.Errorf("decode event array: %w", err)
		}
		return events, nil
	case '{':
		var fc domain.FeatureCollection
		if err := dec.Decode(&fc); err != nil {
			return nil, fmt.Errorf("decode feature collection: %w", err)
		}
		return fc.Features, nil
	default:
		return nil, fmt.Errorf("read events: unexpected leading character %q", first)
	}
}

func firstNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, errors.New("empty input")
			}
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// WriteEvents encodes events as an indented FeatureCollection.
func WriteEvents(w io.Writer, title string, events []*domain.CatalogEvent) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(domain.NewFeatureCollection(title, events)); err != nil {
		return fmt.Errorf("encode feature collection: %w", err)
	}
	return nil
}

// ReadFile reads an event file.
func ReadFile(path string) ([]*domain.CatalogEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	events, err := ReadEvents(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

// WriteFile writes events to path through a temporary file, so readers never
// see a partial document.
func WriteFile(path, title string, events []*domain.CatalogEvent) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	bw := bufio.NewWriter(tmp)
	if err := WriteEvents(bw, title, events); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}

// FileSink writes the final event list to a GeoJSON file.
type FileSink struct {
	path   string
	title  string
	logger *slog.Logger
}

// NewFileSink creates a sink writing to path.
func NewFileSink(path, title string, logger *slog.Logger) *FileSink {
	return &FileSink{path: path, title: title, logger: logger}
}

func (s *FileSink) WriteEvents(_ context.Context, events []*domain.CatalogEvent) error {
	if err := WriteFile(s.path, s.title, events); err != nil {
		return err
	}
	s.logger.Info("events written", "path", s.path, "events", len(events))
	return nil
}

// Fetcher queries the catalog for events in [start, end).
type Fetcher interface {
	Events(ctx context.Context, start, end time.Time) ([]*domain.CatalogEvent, error)
}

// FileBackedSource serves events from a cached catalog file, querying the
// catalog and writing the cache when the file does not exist yet.
type FileBackedSource struct {
	path    string
	fetcher Fetcher
	logger  *slog.Logger
}

// NewFileBackedSource creates a source over the cache file at path.
func NewFileBackedSource(path string, fetcher Fetcher, logger *slog.Logger) *FileBackedSource {
	return &FileBackedSource{path: path, fetcher: fetcher, logger: logger}
}

// LoadEvents returns the cached events, or fetches [start, end) from the
// catalog when there is no cache. A cached file is returned as is; callers
// filter by time afterwards.
func (s *FileBackedSource) LoadEvents(ctx context.Context, start, end time.Time) ([]*domain.CatalogEvent, error) {
	events, err := ReadFile(s.path)
	if err == nil {
		s.logger.Info("loaded cached catalog", "path", s.path, "events", len(events))
		return events, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read catalog cache: %w", err)
	}
	if s.fetcher == nil {
		return nil, fmt.Errorf("catalog cache %s missing and no catalog configured", s.path)
	}

	s.logger.Info("catalog cache missing, querying catalog", "path", s.path)
	events, err = s.fetcher.Events(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	if err := WriteFile(s.path, "DYFI catalog events", events); err != nil {
		return nil, fmt.Errorf("write catalog cache: %w", err)
	}
	s.logger.Info("catalog cache written", "path", s.path, "events", len(events))
	return events, nil
}
