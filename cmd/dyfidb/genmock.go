package main

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/dyfi-induced-db/internal/adapter/geojson"
	"github.com/couchcryptid/dyfi-induced-db/internal/domain"
)

var mockBase = time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)

// mockArea bounds generated epicenters (central Oklahoma).
var mockArea = struct{ minLon, maxLon, minLat, maxLat float64 }{-98.5, -96.5, 35.0, 37.0}

type mockOptions struct {
	events  int
	matched float64
	noise   int
	seed    uint64
}

func newGenmockCmd(_ *app) *cobra.Command {
	var opts mockOptions
	var catalogOut, collateOut string
	cmd := &cobra.Command{
		Use:   "genmock",
		Short: "Generate a synthetic catalog and collate file",
		Long: `Generate a reproducible catalog file and a collate file for exercising the
events build. A --matched fraction of events get a candidate record inside the
default tolerances; --noise candidates match nothing.`,
		Args:              cobra.NoArgs,
		PersistentPreRunE: skipInit,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.matched < 0 || opts.matched > 1 {
				return fmt.Errorf("--matched must be within [0, 1]")
			}

			// Fixed clock for a reproducible "generated" stamp.
			domain.SetClock(clockwork.NewFakeClockAt(time.Date(2017, time.January, 1, 0, 0, 0, 0, time.UTC)))
			defer domain.SetClock(nil)

			events, lines := generateMock(opts)
			if err := geojson.WriteFile(catalogOut, "synthetic DYFI catalog", events); err != nil {
				return err
			}
			if err := writeLines(collateOut, lines); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d events to %s and %d records to %s\n",
				len(events), catalogOut, len(lines), collateOut)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.IntVar(&opts.events, "events", 1000, "Number of catalog events")
	fl.Float64Var(&opts.matched, "matched", 0.5, "Fraction of events with a matching candidate")
	fl.IntVar(&opts.noise, "noise", 100, "Number of candidates matching no event")
	fl.Uint64Var(&opts.seed, "seed", 1, "Random seed")
	fl.StringVar(&catalogOut, "catalog-out", "mock/dyfi.events.json", "Output catalog file")
	fl.StringVar(&collateOut, "collate-out", "mock/collate.txt", "Output collate file")
	return cmd
}

// generateMock returns events spaced an hour apart and candidate lines in
// collate-file format.
func generateMock(opts mockOptions) ([]*domain.CatalogEvent, []string) {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	between := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }

	events := make([]*domain.CatalogEvent, 0, opts.events)
	var lines []string
	for i := 0; i < opts.events; i++ {
		mag := float64(int(between(2.5, 5.5)*10)) / 10
		at := mockBase.Add(time.Duration(i)*time.Hour + time.Duration(rng.IntN(1000))*time.Millisecond)
		lon, lat := between(mockArea.minLon, mockArea.maxLon), between(mockArea.minLat, mockArea.maxLat)
		ms := at.UnixMilli()
		felt := rng.IntN(500)

		events = append(events, &domain.CatalogEvent{
			Type: "Feature",
			ID:   fmt.Sprintf("mock%06d", i),
			Properties: domain.Properties{
				Net:    "mock",
				Type:   "earthquake",
				Status: "reviewed",
				Mag:    &mag,
				Time:   &ms,
				Felt:   &felt,
			},
			Geometry: &domain.Geometry{Type: "Point", Coordinates: []float64{lon, lat, between(1, 10)}},
		})

		if rng.Float64() < opts.matched {
			// Within 0.3 magnitude units, 3 s and ~2 km.
			cAt := at.Add(time.Duration(rng.IntN(7)-3) * time.Second)
			lines = append(lines, candidateLine(mag+between(-0.3, 0.3), lon+between(-0.015, 0.015), lat+between(-0.015, 0.015), cAt))
		}
	}

	for i := 0; i < opts.noise; i++ {
		// Half an hour off any event.
		at := mockBase.Add(time.Duration(rng.IntN(max(opts.events, 1)))*time.Hour + 30*time.Minute)
		lines = append(lines, candidateLine(between(2.5, 5.5), between(mockArea.minLon, mockArea.maxLon), between(mockArea.minLat, mockArea.maxLat), at))
	}
	return events, lines
}

func candidateLine(mag, lon, lat float64, at time.Time) string {
	return fmt.Sprintf("%.1f %.4f %.4f %.1f %s\n", mag, lon, lat, 5.0, at.UTC().Format("2006 01 02 15 04 05"))
}

func writeLines(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, l := range lines {
		if _, err := w.WriteString(l); err != nil {
			return err
		}
	}
	return w.Flush()
}
