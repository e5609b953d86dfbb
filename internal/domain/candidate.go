package domain

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// candidateFields is the fixed column order of a relocated-event line.
var candidateFields = [...]string{
	"mag", "lon", "lat", "depth", "year", "month", "day", "hour", "minute", "second",
}

// CandidateRecord is one parsed line of the relocated-event list.
type CandidateRecord struct {
	Mag    float64
	Lon    float64
	Lat    float64
	Depth  float64
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int // truncated toward zero

	// Timestamp is the origin time in UTC epoch seconds.
	Timestamp int64
	// Line is the input text exactly as read, newline included.
	Line string
}

// OriginTime returns the origin time as a UTC time.
func (c CandidateRecord) OriginTime() time.Time {
	return time.Unix(c.Timestamp, 0).UTC()
}

// MalformedRecordError reports a candidate line that cannot be parsed.
type MalformedRecordError struct {
	Line   string
	Reason string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	msg := fmt.Sprintf("malformed candidate record %q: %s", strings.TrimRight(e.Line, "\r\n"), e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// ParseCandidate parses one relocated-event line.
func ParseCandidate(line string) (CandidateRecord, error) {
	tokens := strings.Fields(line)
	if len(tokens) != len(candidateFields) {
		return CandidateRecord{}, &MalformedRecordError{
			Line:   line,
			Reason: fmt.Sprintf("expected %d fields, got %d", len(candidateFields), len(tokens)),
		}
	}

	rec := CandidateRecord{Line: line}
	floats := []*float64{&rec.Mag, &rec.Lon, &rec.Lat, &rec.Depth}
	for i, dst := range floats {
		v, err := strconv.ParseFloat(tokens[i], 64)
		if err != nil {
			return CandidateRecord{}, &MalformedRecordError{Line: line, Reason: "field " + candidateFields[i], Err: err}
		}
		*dst = v
	}

	ints := []*int{&rec.Year, &rec.Month, &rec.Day, &rec.Hour, &rec.Minute}
	for i, dst := range ints {
		idx := len(floats) + i
		v, err := strconv.Atoi(tokens[idx])
		if err != nil {
			return CandidateRecord{}, &MalformedRecordError{Line: line, Reason: "field " + candidateFields[idx], Err: err}
		}
		*dst = v
	}

	sec, err := strconv.ParseFloat(tokens[9], 64)
	if err != nil {
		return CandidateRecord{}, &MalformedRecordError{Line: line, Reason: "field second", Err: err}
	}
	rec.Second = int(sec)

	ts, err := utcTimestamp(rec.Year, rec.Month, rec.Day, rec.Hour, rec.Minute, rec.Second)
	if err != nil {
		return CandidateRecord{}, &MalformedRecordError{Line: line, Reason: "invalid date/time", Err: err}
	}
	rec.Timestamp = ts
	return rec, nil
}

// utcTimestamp converts calendar fields to epoch seconds. time.Date silently
// normalizes out-of-range values, so every field is range-checked first.
func utcTimestamp(year, month, day, hour, minute, second int) (int64, error) {
	switch {
	case year < 1 || year > 9999:
		return 0, fmt.Errorf("year %d out of range", year)
	case month < 1 || month > 12:
		return 0, fmt.Errorf("month %d out of range", month)
	case day < 1 || day > daysIn(time.Month(month), year):
		return 0, fmt.Errorf("day %d out of range for %04d-%02d", day, year, month)
	case hour < 0 || hour > 23:
		return 0, fmt.Errorf("hour %d out of range", hour)
	case minute < 0 || minute > 59:
		return 0, fmt.Errorf("minute %d out of range", minute)
	case second < 0 || second > 59:
		return 0, fmt.Errorf("second %d out of range", second)
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC).Unix(), nil
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MalformedPolicy decides what ReadCandidates does with an unparsable line.
type MalformedPolicy string

const (
	// PolicyFailFast aborts the read on the first malformed line.
	PolicyFailFast MalformedPolicy = "fail"
	// PolicySkip logs the malformed line and continues.
	PolicySkip MalformedPolicy = "skip"
)

// ParseMalformedPolicy validates a policy name.
func ParseMalformedPolicy(s string) (MalformedPolicy, error) {
	switch p := MalformedPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyFailFast, PolicySkip:
		return p, nil
	default:
		return "", fmt.Errorf("unknown malformed record policy %q", s)
	}
}

// ReadResult is the outcome of reading a collate file.
type ReadResult struct {
	Candidates []CandidateRecord
	Lines      int // non-blank lines seen
	Skipped    int // malformed lines dropped under PolicySkip
}

// ReadCandidates parses a relocated-event list. Blank lines are ignored.
// Each record keeps its line terminator in Line.
func ReadCandidates(r io.Reader, policy MalformedPolicy, logger *slog.Logger) (ReadResult, error) {
	var res ReadResult
	br := bufio.NewReader(r)
	lineNo := 0
	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return res, fmt.Errorf("read candidates: %w", err)
		}
		if line != "" {
			lineNo++
			if strings.TrimSpace(line) != "" {
				res.Lines++
				rec, perr := ParseCandidate(line)
				switch {
				case perr == nil:
					res.Candidates = append(res.Candidates, rec)
				case policy == PolicySkip:
					res.Skipped++
					logger.Warn("skipping malformed candidate record", "line_number", lineNo, "error", perr)
				default:
					return res, fmt.Errorf("line %d: %w", lineNo, perr)
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
	}

	logger.Info("read candidate records", "records", len(res.Candidates), "skipped", res.Skipped)
	return res, nil
}
