package domain

import (
	"errors"
	"time"
)

// Window is a half-open catalog query range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// SplitByYear breaks [start, end) at calendar-year boundaries. Multi-year
// catalog queries time out, so each window is queried on its own.
func SplitByYear(start, end time.Time) ([]Window, error) {
	start, end = start.UTC(), end.UTC()
	if !end.After(start) {
		return nil, errors.New("end must be after start")
	}

	var windows []Window
	for year := start.Year(); year <= end.Year(); year++ {
		ws := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		if year == start.Year() {
			ws = start
		}
		we := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
		if year == end.Year() {
			we = end
		}
		if ws.Equal(we) {
			continue
		}
		windows = append(windows, Window{Start: ws, End: we})
	}
	return windows, nil
}
