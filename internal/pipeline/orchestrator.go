package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/skeptomenos/portfolio-prism-engine/internal/adapters"
	"github.com/skeptomenos/portfolio-prism-engine/internal/identity"
	"github.com/skeptomenos/portfolio-prism-engine/internal/report"
	"github.com/skeptomenos/portfolio-prism-engine/internal/store"
	"github.com/skeptomenos/portfolio-prism-engine/internal/transport"
)

// Orchestrator runs the three-phase pipeline (spec.md §4.8) and publishes
// progress over a shared Broadcaster. It is decoupled from sync_portfolio —
// the caller decides whether a sync precedes a run.
type Orchestrator struct {
	store          *store.Store
	registry       *adapters.Registry
	resolver       *identity.Resolver
	metadata       MetadataProvider
	progress       *transport.Broadcaster
	maxDepth       int
	interCallDelay time.Duration
	reportPath     string
	breakdownPath  string
}

// Option configures an Orchestrator at construction.
type Option func(*Orchestrator)

// WithMaxDepth overrides the default ETF-of-ETF recursion depth (3).
func WithMaxDepth(depth int) Option {
	return func(o *Orchestrator) { o.maxDepth = depth }
}

// WithInterCallDelay overrides the default 100ms enrichment pacing.
func WithInterCallDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.interCallDelay = d }
}

// New builds an Orchestrator. reportPath and breakdownPath are the atomic
// output destinations (spec.md §6.6).
func New(st *store.Store, registry *adapters.Registry, resolver *identity.Resolver, metadata MetadataProvider, progress *transport.Broadcaster, reportPath, breakdownPath string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store: st, registry: registry, resolver: resolver, metadata: metadata, progress: progress,
		maxDepth: defaultMaxDepth, interCallDelay: defaultInterCallDelay,
		reportPath: reportPath, breakdownPath: breakdownPath,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Health is the persisted run-health snapshot (spec.md §6.6 "Health
// report").
type Health struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Status      string    `json:"status"` // "complete", "partial", "failed"
	Warnings    []string  `json:"warnings"`
	LeafCount   int       `json:"leaf_count"`
	NeedsReview int       `json:"needs_review_count"`
}

// Run executes decomposition → enrichment → aggregation for portfolioID,
// publishing progress at each checkpoint (spec.md §4.8 "Progress events").
// Even on a phase failure, Run still writes the best health report it can
// before returning the error — a half-written report is the only
// unacceptable failure mode.
func (o *Orchestrator) Run(ctx context.Context, portfolioID int64, priorTotalValue decimal.Decimal) (Breakdown, error) {
	runID := uuid.NewString()
	started := time.Now()
	health := Health{RunID: runID, StartedAt: started, Status: "failed"}

	o.publish(0, "sync", "pipeline run starting")

	positions, err := o.store.ListPositions(ctx, portfolioID)
	if err != nil {
		health.FinishedAt = time.Now()
		o.writeHealth(health)
		return Breakdown{}, fmt.Errorf("pipeline: load positions: %w", err)
	}

	leaves, warnings := o.decompose(ctx, positions)
	health.Warnings = append(health.Warnings, warnings...)
	o.publish(20, transport.PhasePipeline, "decomposition done")

	leaves = o.enrich(ctx, leaves, func(done, total int) {
		if total == 0 {
			return
		}
		pct := 40 + int(float64(done)/float64(total)*30)
		o.publish(pct, transport.PhaseEnrichment, fmt.Sprintf("enriching holdings (%d/%d)", done, total))
	})
	o.publish(70, transport.PhaseEnrichment, "enrichment done")

	breakdown := o.aggregate(leaves, priorTotalValue)
	breakdown.Summary.TotalGain = totalGain(positions)
	breakdown.Warnings = health.Warnings
	o.publish(85, transport.PhaseAggregation, "aggregation done")

	health.FinishedAt = time.Now()
	health.LeafCount = len(leaves)
	for _, l := range leaves {
		if l.NeedsReview {
			health.NeedsReview++
		}
	}
	health.Status = "complete"
	if health.NeedsReview > 0 || len(health.Warnings) > 0 {
		health.Status = "partial"
	}

	if err := o.writeHealth(health); err != nil {
		log.Error().Err(err).Msg("pipeline: failed to write health report")
	}
	if err := report.WriteBreakdownCSV(o.breakdownPath, breakdown.Leaves); err != nil {
		log.Error().Err(err).Msg("pipeline: failed to write breakdown report")
	}

	o.publish(100, transport.PhaseDone, "pipeline run complete")
	return breakdown, nil
}

func (o *Orchestrator) writeHealth(h Health) error {
	return report.WriteJSONAtomic(o.reportPath, h)
}

func (o *Orchestrator) publish(pct int, phase, message string) {
	if o.progress == nil {
		return
	}
	o.progress.Publish(transport.Progress{Progress: pct, Message: message, Phase: phase})
}

func totalGain(positions []store.Position) decimal.Decimal {
	gain := decimal.Zero
	for _, p := range positions {
		cost := p.Quantity.Mul(p.AverageCost)
		gain = gain.Add(p.NetValue().Sub(cost))
	}
	return gain
}
