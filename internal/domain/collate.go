package domain

import (
	"errors"
	"log/slog"
	"sync"
)

// DefaultProgressEvery is how many candidates are processed between progress
// log lines.
const DefaultProgressEvery = 1000

// NearMiss is a candidate/event pair whose magnitude and epicenter agree but
// whose origin times differ by more than the tolerance and less than the
// near-miss window.
type NearMiss struct {
	CandidateSeq int // 1-based
	EventID      string
	TimeDiff     int64 // seconds
}

// Collator links candidate records to catalog events.
//
// Collate takes exclusive write access to the events for the duration of the
// call; callers must not mutate them concurrently.
type Collator struct {
	matcher       Matcher
	logger        *slog.Logger
	progressEvery int
	workers       int
	onNearMiss    func(NearMiss)
	onProgress    func(processed, matched int)
	onSkipped     func(event *CatalogEvent, err error)
}

// CollatorOption configures a Collator.
type CollatorOption func(*Collator)

// WithProgressEvery sets the progress reporting interval. Values below 1
// disable progress reports.
func WithProgressEvery(n int) CollatorOption {
	return func(c *Collator) { c.progressEvery = n }
}

// WithWorkers scans candidates on n goroutines. Results are identical to a
// sequential run.
func WithWorkers(n int) CollatorOption {
	return func(c *Collator) {
		if n < 1 {
			n = 1
		}
		c.workers = n
	}
}

// WithNearMissHook registers a callback for every near miss.
func WithNearMissHook(fn func(NearMiss)) CollatorOption {
	return func(c *Collator) { c.onNearMiss = fn }
}

// WithProgressHook registers a callback invoked with each progress report.
func WithProgressHook(fn func(processed, matched int)) CollatorOption {
	return func(c *Collator) { c.onProgress = fn }
}

// WithSkippedEventHook registers a callback for events that fail validation.
func WithSkippedEventHook(fn func(event *CatalogEvent, err error)) CollatorOption {
	return func(c *Collator) { c.onSkipped = fn }
}

// NewCollator creates a Collator using the given tolerances.
func NewCollator(tol Tolerances, logger *slog.Logger, opts ...CollatorOption) *Collator {
	c := &Collator{
		matcher:       NewMatcher(tol),
		logger:        logger,
		progressEvery: DefaultProgressEvery,
		workers:       1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// tentative is the scan result for one candidate.
type tentative struct {
	event      int // index into events, -1 when unmatched
	nearMisses []NearMiss
}

// Collate annotates, for each candidate, the first event in slice order that
// matches it, and returns the number of candidates that matched. An event
// matched by several candidates keeps the annotation of the last one.
func (c *Collator) Collate(events []*CatalogEvent, candidates []CandidateRecord) int {
	c.logger.Info("collating candidate records", "candidates", len(candidates), "events", len(events))

	points, valid := c.prepare(events)

	var results []tentative
	if c.workers > 1 && len(candidates) > 1 {
		results = c.scanParallel(events, points, valid, candidates)
	}

	matched := 0
	for i, cand := range candidates {
		var t tentative
		if results != nil {
			t = results[i]
		} else {
			t = c.scan(i+1, events, points, valid, cand)
		}

		for _, nm := range t.nearMisses {
			c.reportNearMiss(nm)
		}
		if t.event >= 0 {
			events[t.event].annotate(i+1, cand.Line)
			matched++
		}

		processed := i + 1
		if c.progressEvery > 0 && processed%c.progressEvery == 0 {
			c.logger.Info("collate progress", "processed", processed, "collated", matched)
			if c.onProgress != nil {
				c.onProgress(processed, matched)
			}
		}
	}

	c.logger.Info("collation finished", "candidates", len(candidates), "collated", matched)
	return matched
}

// prepare validates every event once and caches its numeric fields.
func (c *Collator) prepare(events []*CatalogEvent) ([]eventPoint, []bool) {
	points := make([]eventPoint, len(events))
	valid := make([]bool, len(events))
	skipped := 0
	for i, ev := range events {
		if ev == nil {
			skipped++
			c.logger.Warn("skipping nil catalog event", "index", i)
			continue
		}
		if err := ev.Validate(); err != nil {
			skipped++
			c.logger.Warn("skipping catalog event", "event_id", ev.ID, "error", err)
			if c.onSkipped != nil {
				c.onSkipped(ev, err)
			}
			continue
		}
		points[i] = newEventPoint(ev)
		valid[i] = true
	}
	if skipped > 0 {
		c.logger.Warn("catalog events excluded from collation", "skipped", skipped)
	}
	return points, valid
}

// scan finds the first matching event for one candidate, collecting the near
// misses seen before it.
func (c *Collator) scan(seq int, events []*CatalogEvent, points []eventPoint, valid []bool, cand CandidateRecord) tentative {
	t := tentative{event: -1}
	for j := range events {
		if !valid[j] {
			continue
		}
		v := c.matcher.evaluate(points[j], cand)
		if v.Matched {
			t.event = j
			return t
		}
		if v.NearMiss {
			t.nearMisses = append(t.nearMisses, NearMiss{CandidateSeq: seq, EventID: events[j].ID, TimeDiff: v.TimeDiff})
		}
	}
	return t
}

// scanParallel runs scan for every candidate on c.workers goroutines. Scans
// only read events; annotation happens afterwards in candidate order.
func (c *Collator) scanParallel(events []*CatalogEvent, points []eventPoint, valid []bool, candidates []CandidateRecord) []tentative {
	results := make([]tentative, len(candidates))
	idx := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < c.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				results[i] = c.scan(i+1, events, points, valid, candidates[i])
			}
		}()
	}
	for i := range candidates {
		idx <- i
	}
	close(idx)
	wg.Wait()
	return results
}

func (c *Collator) reportNearMiss(nm NearMiss) {
	c.logger.Info("possible match", "candidate", nm.CandidateSeq, "event_id", nm.EventID, "time_diff_s", nm.TimeDiff)
	if c.onNearMiss != nil {
		c.onNearMiss(nm)
	}
}

// IsEventDataError reports whether err describes a catalog event that cannot
// take part in collation.
func IsEventDataError(err error) bool {
	var mp *MissingPropertyError
	var mg *MissingGeometryError
	return errors.As(err, &mp) || errors.As(err, &mg)
}
