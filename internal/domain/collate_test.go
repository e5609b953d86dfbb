package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollator(opts ...CollatorOption) *Collator {
	return NewCollator(DefaultTolerances(), discardLogger(), opts...)
}

func TestCollate_Scenario(t *testing.T) {
	cand := mustParse(testCandidateLine)
	ev := newEvent("ok2015abcd", 4.6, testOrigin.Add(2*time.Second), -97.51, 36.49)

	n := newTestCollator().Collate([]*CatalogEvent{ev}, []CandidateRecord{cand})

	assert.Equal(t, 1, n)
	require.NotNil(t, ev.Properties.LineCollated)
	require.NotNil(t, ev.Properties.Collated)
	assert.Equal(t, 1, *ev.Properties.LineCollated)
	assert.Equal(t, testCandidateLine, *ev.Properties.Collated)
	assert.True(t, ev.IsCollated())
}

func TestCollate_NearMissDoesNotMatch(t *testing.T) {
	cand := mustParse(testCandidateLine)
	ev := newEvent("late", 4.6, testOrigin.Add(45*time.Second), -97.51, 36.49)

	var misses []NearMiss
	c := newTestCollator(WithNearMissHook(func(nm NearMiss) { misses = append(misses, nm) }))
	n := c.Collate([]*CatalogEvent{ev}, []CandidateRecord{cand})

	assert.Zero(t, n)
	assert.False(t, ev.IsCollated())
	require.Len(t, misses, 1)
	assert.Equal(t, NearMiss{CandidateSeq: 1, EventID: "late", TimeDiff: 45}, misses[0])
}

func TestCollate_AtMostOneEventPerCandidate(t *testing.T) {
	cand := mustParse(testCandidateLine)
	first := newEvent("first", 4.5, testOrigin, -97.5, 36.5)
	second := newEvent("second", 4.5, testOrigin.Add(time.Second), -97.501, 36.5)

	n := newTestCollator().Collate([]*CatalogEvent{first, second}, []CandidateRecord{cand})

	assert.Equal(t, 1, n)
	assert.True(t, first.IsCollated())
	assert.False(t, second.IsCollated())

	// Reversed order binds the other event.
	first2 := newEvent("first", 4.5, testOrigin, -97.5, 36.5)
	second2 := newEvent("second", 4.5, testOrigin.Add(time.Second), -97.501, 36.5)
	n = newTestCollator().Collate([]*CatalogEvent{second2, first2}, []CandidateRecord{cand})

	assert.Equal(t, 1, n)
	assert.True(t, second2.IsCollated())
	assert.False(t, first2.IsCollated())
}

func TestCollate_LastCandidateWinsOnSharedEvent(t *testing.T) {
	line1 := "4.5 -97.5 36.5 5.0 2015 03 10 12 00 00\n"
	line2 := "4.4 -97.5 36.5 5.0 2015 03 10 12 00 01\n"
	ev := newEvent("shared", 4.5, testOrigin, -97.5, 36.5)

	n := newTestCollator().Collate([]*CatalogEvent{ev}, []CandidateRecord{mustParse(line1), mustParse(line2)})

	assert.Equal(t, 2, n, "each candidate counts once")
	assert.Equal(t, 2, *ev.Properties.LineCollated)
	assert.Equal(t, line2, *ev.Properties.Collated)
}

func TestCollate_NoMutationWithoutMatch(t *testing.T) {
	cand := mustParse(testCandidateLine)
	matched := newEvent("hit", 4.5, testOrigin, -97.5, 36.5)
	untouched := newEvent("miss", 2.0, testOrigin.Add(time.Hour), -98.5, 35.0)
	before := *untouched

	n := newTestCollator().Collate([]*CatalogEvent{untouched, matched}, []CandidateRecord{cand})

	assert.Equal(t, 1, n)
	assert.Nil(t, untouched.Properties.LineCollated)
	assert.Nil(t, untouched.Properties.Collated)
	if diff := cmp.Diff(before, *untouched); diff != "" {
		t.Fatalf("unmatched event changed (-before +after):\n%s", diff)
	}
}

func TestCollate_ZeroMatchesIsNotAnError(t *testing.T) {
	assert.Zero(t, newTestCollator().Collate(nil, nil))

	cand := mustParse(testCandidateLine)
	assert.Zero(t, newTestCollator().Collate(nil, []CandidateRecord{cand}))
}

func TestCollate_SkipsInvalidEvents(t *testing.T) {
	cand := mustParse(testCandidateLine)

	noMag := newEvent("nomag", 4.5, testOrigin, -97.5, 36.5)
	noMag.Properties.Mag = nil
	noGeom := newEvent("nogeom", 4.5, testOrigin, -97.5, 36.5)
	noGeom.Geometry = &Geometry{Type: "Point"}
	good := newEvent("good", 4.5, testOrigin, -97.5, 36.5)

	var skipped []string
	c := newTestCollator(WithSkippedEventHook(func(ev *CatalogEvent, err error) {
		assert.True(t, IsEventDataError(err))
		skipped = append(skipped, ev.ID)
	}))
	n := c.Collate([]*CatalogEvent{noMag, nil, noGeom, good}, []CandidateRecord{cand})

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"nomag", "nogeom"}, skipped)
	assert.True(t, good.IsCollated())
	assert.False(t, noMag.IsCollated())
	assert.False(t, noGeom.IsCollated())
}

func TestCollate_Progress(t *testing.T) {
	cands := make([]CandidateRecord, 5)
	for i := range cands {
		cands[i] = mustParse(testCandidateLine)
	}
	ev := newEvent("hit", 4.5, testOrigin, -97.5, 36.5)

	var reports [][2]int
	c := newTestCollator(
		WithProgressEvery(2),
		WithProgressHook(func(processed, matched int) { reports = append(reports, [2]int{processed, matched}) }),
	)
	n := c.Collate([]*CatalogEvent{ev}, cands)

	assert.Equal(t, 5, n)
	assert.Equal(t, [][2]int{{2, 2}, {4, 4}}, reports)
}

// buildCatalog returns a grid of events plus candidates that hit, miss, nearly
// miss, and double-match them.
func buildCatalog() ([]*CatalogEvent, []CandidateRecord) {
	var events []*CatalogEvent
	for i := 0; i < 40; i++ {
		origin := testOrigin.Add(time.Duration(i) * time.Hour)
		events = append(events, newEvent(fmt.Sprintf("ev%02d", i), 3.0+float64(i%5)*0.3, origin, -97.5+float64(i%7)*0.2, 36.0+float64(i%3)*0.3))
	}
	// Duplicate of ev05 to force order-dependent binding.
	dup := *events[5]
	dup.ID = "ev05dup"
	events = append(events, &dup)

	var cands []CandidateRecord
	for i, ev := range events {
		offset := []int{0, 3, 45, 400}[i%4]
		o := ev.OriginTime().Add(time.Duration(offset) * time.Second)
		line := fmt.Sprintf("%.2f %.4f %.4f 5.0 %d %02d %02d %02d %02d %02d\n",
			*ev.Properties.Mag+0.1, ev.Lon()+0.01, ev.Lat()-0.01,
			o.Year(), int(o.Month()), o.Day(), o.Hour(), o.Minute(), o.Second())
		cands = append(cands, mustParse(line))
	}
	return events, cands
}

func TestCollate_ParallelEqualsSequential(t *testing.T) {
	seqEvents, cands := buildCatalog()
	parEvents, _ := buildCatalog()

	var seqMisses, parMisses []NearMiss
	seq := newTestCollator(WithNearMissHook(func(nm NearMiss) { seqMisses = append(seqMisses, nm) }))
	par := newTestCollator(WithWorkers(4), WithNearMissHook(func(nm NearMiss) { parMisses = append(parMisses, nm) }))

	nSeq := seq.Collate(seqEvents, cands)
	nPar := par.Collate(parEvents, cands)

	assert.Positive(t, nSeq)
	assert.Equal(t, nSeq, nPar)
	assert.NotEmpty(t, seqMisses)
	if diff := cmp.Diff(seqMisses, parMisses); diff != "" {
		t.Fatalf("near misses differ (-sequential +parallel):\n%s", diff)
	}
	if diff := cmp.Diff(seqEvents, parEvents); diff != "" {
		t.Fatalf("annotations differ (-sequential +parallel):\n%s", diff)
	}
}
