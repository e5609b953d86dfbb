package domain

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// EventFilter keeps an event when it returns true.
type EventFilter func(*CatalogEvent) bool

// TimeFilter keeps events whose origin time lies in [start, end].
func TimeFilter(start, end time.Time) EventFilter {
	return func(e *CatalogEvent) bool {
		if e.Properties.Time == nil {
			return false
		}
		t := e.OriginTime()
		return !t.Before(start) && !t.After(end)
	}
}

// SpaceFilter keeps events whose epicenter lies inside the polygon.
func SpaceFilter(poly orb.Polygon) EventFilter {
	return func(e *CatalogEvent) bool {
		if e.Geometry == nil || len(e.Geometry.Coordinates) < 2 {
			return false
		}
		return planar.PolygonContains(poly, orb.Point{e.Lon(), e.Lat()})
	}
}

// FilterEvents returns the events accepted by every filter, in input order.
func FilterEvents(events []*CatalogEvent, filters ...EventFilter) []*CatalogEvent {
	out := make([]*CatalogEvent, 0, len(events))
next:
	for _, ev := range events {
		for _, f := range filters {
			if !f(ev) {
				continue next
			}
		}
		out = append(out, ev)
	}
	return out
}

// LoadPolygon reads a study-area boundary: one "lon lat" pair per line. The
// ring is closed when the last point differs from the first.
func LoadPolygon(r io.Reader) (orb.Polygon, error) {
	var ring orb.Ring
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("polygon line %d: expected lon lat, got %d fields", lineNo, len(fields))
		}
		lon, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("polygon line %d: lon: %w", lineNo, err)
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("polygon line %d: lat: %w", lineNo, err)
		}
		ring = append(ring, orb.Point{lon, lat})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read polygon: %w", err)
	}
	if len(ring) < 3 {
		return nil, errors.New("polygon needs at least 3 points")
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}, nil
}
