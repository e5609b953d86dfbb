package domain

import (
	"io"
	"log/slog"
	"time"
)

const testCandidateLine = "4.5 -97.5 36.5 5.0 2015 03 10 12 00 00\n"

var testOrigin = time.Date(2015, time.March, 10, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

func newEvent(id string, mag float64, origin time.Time, lon, lat float64) *CatalogEvent {
	return &CatalogEvent{
		Type: "Feature",
		ID:   id,
		Properties: Properties{
			Mag:  ptr(mag),
			Time: ptr(origin.UnixMilli()),
		},
		Geometry: &Geometry{Type: "Point", Coordinates: []float64{lon, lat, 5.0}},
	}
}

func mustParse(line string) CandidateRecord {
	rec, err := ParseCandidate(line)
	if err != nil {
		panic(err)
	}
	return rec
}
