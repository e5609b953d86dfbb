package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/dyfi-induced-db/internal/domain"
	"github.com/couchcryptid/dyfi-induced-db/internal/observability"
)

// EventSource loads catalog events for a date range.
type EventSource interface {
	LoadEvents(ctx context.Context, start, end time.Time) ([]*domain.CatalogEvent, error)
}

// EventSink receives the final event list of a build.
type EventSink interface {
	WriteEvents(ctx context.Context, events []*domain.CatalogEvent) error
}

// ProductFetcher downloads the aggregated DYFI products of an event.
type ProductFetcher interface {
	DYFIProducts(ctx context.Context, eventID string) ([]domain.ProductFile, error)
}

// ProductStore persists one product file and returns where it went.
type ProductStore interface {
	StoreProduct(ctx context.Context, f domain.ProductFile) (string, error)
}

// Deps are the adapters a Pipeline drives. Products and Store are only needed
// by DownloadAggregated.
type Deps struct {
	Source   EventSource
	Sinks    []EventSink
	Products ProductFetcher
	Store    ProductStore
}

// Settings control collation.
type Settings struct {
	Tolerances      domain.Tolerances
	Workers         int
	ProgressEvery   int
	MalformedPolicy domain.MalformedPolicy
}

// Pipeline builds the event and aggregated portions of the database.
type Pipeline struct {
	deps     Deps
	settings Settings
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool

	mu     sync.Mutex
	status Status
}

// New creates a Pipeline.
func New(deps Deps, settings Settings, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		deps:     deps,
		settings: settings,
		logger:   logger,
		metrics:  metrics,
		status:   Status{Stage: StageIdle},
	}
}

// CheckReadiness returns nil once a build has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no build has completed yet")
	}
	return nil
}

// EventsRequest describes one events build.
type EventsRequest struct {
	Start time.Time
	End   time.Time
	// Polygon restricts events to a study area; nil keeps every epicenter.
	Polygon orb.Polygon
	// Candidates is the collate file; nil skips collation.
	Candidates io.Reader
}

// EventsReport summarizes an events build.
type EventsReport struct {
	Loaded     int
	Kept       int
	Candidates int
	Malformed  int
	Collated   int
	NearMisses int
	Skipped    int
	Events     []*domain.CatalogEvent
}

// BuildEvents loads the catalog, filters it in time and space, collates it
// against the candidate records when given, and hands the result to every
// sink.
func (p *Pipeline) BuildEvents(ctx context.Context, req EventsRequest) (EventsReport, error) {
	var report EventsReport
	p.metrics.RunRunning.Set(1)
	defer p.metrics.RunRunning.Set(0)

	p.setStage(StageLoading)
	events, err := p.deps.Source.LoadEvents(ctx, req.Start, req.End)
	if err != nil {
		p.setStage(StageFailed)
		return report, fmt.Errorf("load events: %w", err)
	}
	report.Loaded = len(events)
	p.metrics.EventsLoaded.Add(float64(len(events)))
	if len(events) == 0 {
		p.setStage(StageFailed)
		return report, errors.New("no catalog events loaded")
	}

	filters := []domain.EventFilter{domain.TimeFilter(req.Start, req.End)}
	if req.Polygon != nil {
		filters = append(filters, domain.SpaceFilter(req.Polygon))
	}
	events = domain.FilterEvents(events, filters...)
	report.Kept = len(events)
	p.metrics.EventsFiltered.Add(float64(len(events)))
	p.logger.Info("events filtered", "loaded", report.Loaded, "kept", report.Kept)
	p.updateStatus(func(s *Status) {
		s.EventsLoaded = report.Loaded
		s.EventsKept = report.Kept
	})

	if req.Candidates != nil {
		if err := p.collate(req.Candidates, events, &report); err != nil {
			p.setStage(StageFailed)
			return report, err
		}
	}

	p.setStage(StageWriting)
	for _, sink := range p.deps.Sinks {
		if err := sink.WriteEvents(ctx, events); err != nil {
			p.setStage(StageFailed)
			return report, fmt.Errorf("write events: %w", err)
		}
	}

	report.Events = events
	p.finish()
	return report, nil
}

func (p *Pipeline) collate(r io.Reader, events []*domain.CatalogEvent, report *EventsReport) error {
	p.setStage(StageCollating)

	res, err := domain.ReadCandidates(r, p.settings.MalformedPolicy, p.logger)
	if err != nil {
		return fmt.Errorf("read collate file: %w", err)
	}
	report.Candidates = len(res.Candidates)
	report.Malformed = res.Skipped
	p.metrics.MalformedRecords.Add(float64(res.Skipped))

	opts := []domain.CollatorOption{
		domain.WithWorkers(p.settings.Workers),
		domain.WithNearMissHook(func(domain.NearMiss) {
			report.NearMisses++
			p.metrics.NearMisses.Inc()
		}),
		domain.WithSkippedEventHook(func(*domain.CatalogEvent, error) {
			report.Skipped++
			p.metrics.EventsSkipped.Inc()
		}),
		domain.WithProgressHook(func(processed, matched int) {
			p.updateStatus(func(s *Status) {
				s.CandidatesProcessed = processed
				s.Collated = matched
			})
		}),
	}
	if p.settings.ProgressEvery != 0 {
		opts = append(opts, domain.WithProgressEvery(p.settings.ProgressEvery))
	}

	start := time.Now()
	collator := domain.NewCollator(p.settings.Tolerances, p.logger, opts...)
	report.Collated = collator.Collate(events, res.Candidates)
	p.metrics.CollationDuration.Observe(time.Since(start).Seconds())
	p.metrics.CandidatesProcessed.Add(float64(len(res.Candidates)))
	p.metrics.EventsCollated.Add(float64(report.Collated))

	p.updateStatus(func(s *Status) {
		s.CandidatesProcessed = len(res.Candidates)
		s.Collated = report.Collated
	})
	p.logger.Info("collated events", "collated", report.Collated, "candidates", report.Candidates,
		"near_misses", report.NearMisses, "skipped_events", report.Skipped)
	return nil
}

// AggregatedReport summarizes a product download run.
type AggregatedReport struct {
	Events    int
	Succeeded int
	Failed    int
	Stored    int
}

// DownloadAggregated fetches and stores the aggregated products of every
// event. A failing event is logged and counted; the run continues. Only a
// cancelled context stops it early.
func (p *Pipeline) DownloadAggregated(ctx context.Context, events []*domain.CatalogEvent) (AggregatedReport, error) {
	report := AggregatedReport{Events: len(events)}
	if p.deps.Products == nil || p.deps.Store == nil {
		return report, errors.New("product fetcher and store are required")
	}
	p.metrics.RunRunning.Set(1)
	defer p.metrics.RunRunning.Set(0)
	p.setStage(StageDownloading)

	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			p.setStage(StageFailed)
			return report, err
		}

		stored, err := p.downloadEvent(ctx, ev.ID)
		report.Stored += stored
		if err != nil {
			report.Failed++
			p.logger.Warn("aggregated products unavailable", "event_id", ev.ID, "error", err)
		} else {
			report.Succeeded++
		}

		p.logger.Info("aggregated progress", "n", i+1, "event_id", ev.ID, "succeeded", report.Succeeded)
		p.updateStatus(func(s *Status) {
			s.ProductsStored = report.Stored
			s.ProductFailures = report.Failed
		})
	}

	p.finish()
	return report, nil
}

// downloadEvent stores every aggregated product of one event. It fails when
// the event is missing any of them.
func (p *Pipeline) downloadEvent(ctx context.Context, eventID string) (int, error) {
	files, err := p.deps.Products.DYFIProducts(ctx, eventID)
	if err != nil {
		return 0, err
	}

	got := make(map[string]bool, len(files))
	stored := 0
	for _, f := range files {
		loc, err := p.deps.Store.StoreProduct(ctx, f)
		if err != nil {
			p.metrics.ProductsStored.WithLabelValues(f.Product, "error").Inc()
			return stored, err
		}
		p.metrics.ProductsStored.WithLabelValues(f.Product, "success").Inc()
		p.logger.Debug("product stored", "event_id", eventID, "product", f.Product, "location", loc)
		got[f.Product] = true
		stored++
	}

	var missing []string
	for _, name := range domain.AggregatedProducts {
		if !got[name] {
			p.metrics.ProductsStored.WithLabelValues(name, "missing").Inc()
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return stored, fmt.Errorf("missing products %v", missing)
	}
	return stored, nil
}

func (p *Pipeline) finish() {
	p.setStage(StageDone)
	p.ready.Store(true)
}
