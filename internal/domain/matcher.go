package domain

import (
	"errors"
	"math"
	"time"
)

// Tolerances bound how far a catalog event and a candidate may disagree and
// still be treated as the same earthquake. All bounds are inclusive.
type Tolerances struct {
	Magnitude  float64
	Time       time.Duration
	DistanceKm float64
	// NearMiss is the exclusive upper bound of time differences reported as
	// possible matches. It never widens what is accepted.
	NearMiss time.Duration
}

// DefaultTolerances returns 0.5 magnitude units, 5 s, 5 km and a 120 s
// near-miss window.
func DefaultTolerances() Tolerances {
	return Tolerances{
		Magnitude:  0.5,
		Time:       5 * time.Second,
		DistanceKm: 5.0,
		NearMiss:   120 * time.Second,
	}
}

// Validate rejects negative bounds.
func (t Tolerances) Validate() error {
	switch {
	case t.Magnitude < 0:
		return errors.New("magnitude tolerance must not be negative")
	case t.Time < 0:
		return errors.New("time tolerance must not be negative")
	case t.DistanceKm < 0:
		return errors.New("distance tolerance must not be negative")
	case t.NearMiss < 0:
		return errors.New("near-miss window must not be negative")
	}
	return nil
}

// Verdict is the outcome of comparing one event with one candidate.
type Verdict struct {
	Matched  bool
	NearMiss bool
	// TimeDiff is the absolute origin-time difference in whole seconds. It is
	// only set once the magnitude check passed.
	TimeDiff int64
}

// Matcher applies the three tolerance checks.
type Matcher struct {
	tol Tolerances
}

// NewMatcher creates a Matcher with the given tolerances.
func NewMatcher(tol Tolerances) Matcher {
	return Matcher{tol: tol}
}

// Tolerances returns the configured bounds.
func (m Matcher) Tolerances() Tolerances { return m.tol }

// MagnitudeMatches reports |event.mag - candidate.mag| <= tolerance.
func (m Matcher) MagnitudeMatches(event *CatalogEvent, c CandidateRecord) bool {
	if event == nil || event.Properties.Mag == nil {
		return false
	}
	return math.Abs(*event.Properties.Mag-c.Mag) <= m.tol.Magnitude
}

// TimeDiff returns the absolute difference between the event origin time,
// truncated to whole seconds, and the candidate timestamp.
func TimeDiff(event *CatalogEvent, c CandidateRecord) (int64, bool) {
	if event == nil || event.Properties.Time == nil {
		return 0, false
	}
	return absInt(*event.Properties.Time/1000 - c.Timestamp), true
}

// TimeMatches reports whether the origin times agree within tolerance.
func (m Matcher) TimeMatches(event *CatalogEvent, c CandidateRecord) bool {
	diff, ok := TimeDiff(event, c)
	return ok && m.withinTime(diff)
}

// LocationMatches reports whether the epicenters lie within the distance
// tolerance.
func (m Matcher) LocationMatches(event *CatalogEvent, c CandidateRecord) bool {
	if event == nil || event.Geometry == nil || len(event.Geometry.Coordinates) < 2 {
		return false
	}
	return m.withinDistance(event.Lat(), event.Lon(), c)
}

// Matches reports whether every check passes.
func (m Matcher) Matches(event *CatalogEvent, c CandidateRecord) bool {
	return m.Evaluate(event, c).Matched
}

// Evaluate runs the magnitude check, then the time check, then the location
// check, stopping at the first failure. A time difference inside the
// near-miss window is flagged only when magnitude and location agree. A nil
// or incomplete event yields the zero Verdict.
func (m Matcher) Evaluate(event *CatalogEvent, c CandidateRecord) Verdict {
	if event == nil || event.Validate() != nil {
		return Verdict{}
	}
	return m.evaluate(newEventPoint(event), c)
}

func (m Matcher) evaluate(p eventPoint, c CandidateRecord) Verdict {
	if math.Abs(p.mag-c.Mag) > m.tol.Magnitude {
		return Verdict{}
	}

	v := Verdict{TimeDiff: absInt(p.seconds - c.Timestamp)}
	switch {
	case m.withinTime(v.TimeDiff):
		v.Matched = m.withinDistance(p.lat, p.lon, c)
	case m.withinNearMiss(v.TimeDiff):
		v.NearMiss = m.withinDistance(p.lat, p.lon, c)
	}
	return v
}

func (m Matcher) withinTime(diff int64) bool {
	return float64(diff) <= m.tol.Time.Seconds()
}

func (m Matcher) withinNearMiss(diff int64) bool {
	return float64(diff) < m.tol.NearMiss.Seconds()
}

func (m Matcher) withinDistance(lat, lon float64, c CandidateRecord) bool {
	return GreatCircleDistance(c.Lat, c.Lon, lat, lon) <= m.tol.DistanceKm
}

// eventPoint caches the numeric fields of a validated event so the nested
// collation scan does not chase pointers.
type eventPoint struct {
	mag      float64
	seconds  int64
	lat, lon float64
}

func newEventPoint(e *CatalogEvent) eventPoint {
	return eventPoint{
		mag:     *e.Properties.Mag,
		seconds: *e.Properties.Time / 1000,
		lat:     e.Lat(),
		lon:     e.Lon(),
	}
}

func absInt(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
