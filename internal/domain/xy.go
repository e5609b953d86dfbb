package domain

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// SymbolSize maps magnitude to a plot symbol size.
func SymbolSize(mag float64) int {
	switch {
	case mag < 2:
		return 2
	case mag < 3:
		return 4
	case mag < 4:
		return 6
	case mag < 5:
		return 8
	default:
		return 10
	}
}

// WriteXY writes "lon lat size" per event for plotting tools. Events without
// a position or magnitude are skipped; the number written is returned.
func WriteXY(w io.Writer, events []*CatalogEvent) (int, error) {
	bw := bufio.NewWriter(w)
	n := 0
	for _, ev := range events {
		if ev.Validate() != nil {
			continue
		}
		lon := strconv.FormatFloat(ev.Lon(), 'f', -1, 64)
		lat := strconv.FormatFloat(ev.Lat(), 'f', -1, 64)
		if _, err := fmt.Fprintf(bw, "%s %s %d\n", lon, lat, SymbolSize(*ev.Properties.Mag)); err != nil {
			return n, fmt.Errorf("write xy: %w", err)
		}
		n++
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("write xy: %w", err)
	}
	return n, nil
}

// TotalFelt sums the felt-report counts of the events.
func TotalFelt(events []*CatalogEvent) int {
	total := 0
	for _, ev := range events {
		if ev.Properties.Felt != nil {
			total += *ev.Properties.Felt
		}
	}
	return total
}
