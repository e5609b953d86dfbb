package pipeline

import (
	"time"

	"github.com/couchcryptid/dyfi-induced-db/internal/domain"
)

// Build stages reported on /status.
const (
	StageIdle        = "idle"
	StageLoading     = "loading"
	StageCollating   = "collating"
	StageWriting     = "writing"
	StageDownloading = "downloading"
	StageDone        = "done"
	StageFailed      = "failed"
)

// Status is a snapshot of the current build.
type Status struct {
	Stage               string    `json:"stage"`
	UpdatedAt           time.Time `json:"updated_at"`
	EventsLoaded        int       `json:"events_loaded"`
	EventsKept          int       `json:"events_kept"`
	CandidatesProcessed int       `json:"candidates_processed"`
	Collated            int       `json:"collated"`
	ProductsStored      int       `json:"products_stored"`
	ProductFailures     int       `json:"product_failures"`
}

// Status returns a copy of the current build status.
func (p *Pipeline) Status() any {
	return p.Snapshot()
}

// Snapshot is Status with a concrete type.
func (p *Pipeline) Snapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Pipeline) setStage(stage string) {
	p.updateStatus(func(s *Status) { s.Stage = stage })
}

func (p *Pipeline) updateStatus(fn func(*Status)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.status)
	p.status.UpdatedAt = domain.Now()
}
