package domain

import (
	"fmt"
	"time"
)

// Property names that collation requires on every catalog event.
const (
	PropertyMag  = "mag"
	PropertyTime = "time"
)

// CatalogEvent is one GeoJSON feature from the DYFI-tagged catalog feed.
type CatalogEvent struct {
	Type       string     `json:"type"`
	ID         string     `json:"id"`
	Properties Properties `json:"properties"`
	Geometry   *Geometry  `json:"geometry"`
}

// Properties holds the whitelisted catalog properties plus the two
// annotations written by collation.
type Properties struct {
	Net     string   `json:"net,omitempty"`
	Title   string   `json:"title,omitempty"`
	Type    string   `json:"type,omitempty"`
	Status  string   `json:"status,omitempty"`
	Time    *int64   `json:"time"` // milliseconds since epoch, UTC
	Mag     *float64 `json:"mag"`
	CDI     *float64 `json:"cdi,omitempty"`
	Felt    *int     `json:"felt,omitempty"`
	Updated *int64   `json:"updated,omitempty"`
	Detail  string   `json:"detail,omitempty"`

	LineCollated *int    `json:"line_collated,omitempty"`
	Collated     *string `json:"collated,omitempty"`
}

// Geometry is a GeoJSON Point with coordinates [lon, lat, depth_km].
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// FeatureCollection is the on-disk and on-wire container for catalog events.
type FeatureCollection struct {
	Type     string          `json:"type"`
	Metadata *Metadata       `json:"metadata,omitempty"`
	Features []*CatalogEvent `json:"features"`
}

// Metadata describes how a collection was produced.
type Metadata struct {
	Generated int64  `json:"generated"` // milliseconds since epoch
	Title     string `json:"title,omitempty"`
	Count     int    `json:"count"`
	Collated  int    `json:"collated"`
}

// NewFeatureCollection wraps events in a collection stamped with the package
// clock.
func NewFeatureCollection(title string, events []*CatalogEvent) FeatureCollection {
	collated := 0
	for _, ev := range events {
		if ev.IsCollated() {
			collated++
		}
	}
	if events == nil {
		events = []*CatalogEvent{}
	}
	return FeatureCollection{
		Type: "FeatureCollection",
		Metadata: &Metadata{
			Generated: Now().UnixMilli(),
			Title:     title,
			Count:     len(events),
			Collated:  collated,
		},
		Features: events,
	}
}

// MissingPropertyError reports a catalog event without a required property.
type MissingPropertyError struct {
	EventID  string
	Property string
}

func (e *MissingPropertyError) Error() string {
	return fmt.Sprintf("event %q: missing property %q", e.EventID, e.Property)
}

// MissingGeometryError reports a catalog event without a usable position.
type MissingGeometryError struct {
	EventID string
}

func (e *MissingGeometryError) Error() string {
	return fmt.Sprintf("event %q: missing geometry coordinates", e.EventID)
}

// Validate checks the fields collation depends on.
func (e *CatalogEvent) Validate() error {
	if e.Properties.Mag == nil {
		return &MissingPropertyError{EventID: e.ID, Property: PropertyMag}
	}
	if e.Properties.Time == nil {
		return &MissingPropertyError{EventID: e.ID, Property: PropertyTime}
	}
	if e.Geometry == nil || len(e.Geometry.Coordinates) < 2 {
		return &MissingGeometryError{EventID: e.ID}
	}
	return nil
}

// Lon returns the event longitude, or 0 without geometry.
func (e *CatalogEvent) Lon() float64 {
	if e.Geometry == nil || len(e.Geometry.Coordinates) < 2 {
		return 0
	}
	return e.Geometry.Coordinates[0]
}

// Lat returns the event latitude, or 0 without geometry.
func (e *CatalogEvent) Lat() float64 {
	if e.Geometry == nil || len(e.Geometry.Coordinates) < 2 {
		return 0
	}
	return e.Geometry.Coordinates[1]
}

// Depth returns the event depth in km, or 0 when absent.
func (e *CatalogEvent) Depth() float64 {
	if e.Geometry == nil || len(e.Geometry.Coordinates) < 3 {
		return 0
	}
	return e.Geometry.Coordinates[2]
}

// OriginTime returns the origin time in UTC, or the zero time when absent.
func (e *CatalogEvent) OriginTime() time.Time {
	if e.Properties.Time == nil {
		return time.Time{}
	}
	return time.UnixMilli(*e.Properties.Time).UTC()
}

// IsCollated reports whether a candidate has been bound to the event.
func (e *CatalogEvent) IsCollated() bool {
	return e.Properties.Collated != nil
}

// annotate records the candidate that matched the event. Any earlier
// annotation is overwritten.
func (e *CatalogEvent) annotate(seq int, line string) {
	e.Properties.LineCollated = &seq
	e.Properties.Collated = &line
}
