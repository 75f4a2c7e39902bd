// Package application wires the engine's singletons into the dispatch
// table's command handlers (spec.md §4.3 "Command handlers"). It owns no
// business logic of its own — every handler here is a thin adapter that
// extracts a payload, calls into registry/store/pipeline/adapters/identity,
// and shapes the result into a response data map.
package application

import (
	"runtime"
	"sync"
	"time"

	"github.com/skeptomenos/portfolio-prism-engine/internal/adapters"
	"github.com/skeptomenos/portfolio-prism-engine/internal/hive"
	"github.com/skeptomenos/portfolio-prism-engine/internal/identity"
	"github.com/skeptomenos/portfolio-prism-engine/internal/metrics"
	"github.com/skeptomenos/portfolio-prism-engine/internal/pipeline"
	"github.com/skeptomenos/portfolio-prism-engine/internal/registry"
	"github.com/skeptomenos/portfolio-prism-engine/internal/store"
	"github.com/skeptomenos/portfolio-prism-engine/internal/transport"

	appconfig "github.com/skeptomenos/portfolio-prism-engine/internal/config"
)

// Version is the engine's reported build version (spec.md §4.3 get_health).
const Version = "0.1.0"

// Dependencies is the full set of singletons every handler closes over.
type Dependencies struct {
	Config       appconfig.Config
	Registry     *registry.Registry
	Store        *store.Store
	Adapters     *adapters.Registry
	ManualUpload *adapters.ManualUploadAdapter
	Resolver     *identity.Resolver
	Orchestrator *pipeline.Orchestrator
	Hive         *hive.Client
	Progress     *transport.Broadcaster
	Metrics      *metrics.Collector

	startedAt time.Time

	dashboardMu sync.Mutex
	dashboard   map[int64]pipeline.Breakdown
}

// NewDependencies assembles Dependencies, recording the process start time
// for get_health's uptime figure.
func NewDependencies(cfg appconfig.Config, reg *registry.Registry, st *store.Store, adapterRegistry *adapters.Registry,
	manualUpload *adapters.ManualUploadAdapter, resolver *identity.Resolver, orch *pipeline.Orchestrator,
	hiveClient *hive.Client, progress *transport.Broadcaster, collector *metrics.Collector) *Dependencies {
	return &Dependencies{
		Config:       cfg,
		Registry:     reg,
		Store:        st,
		Adapters:     adapterRegistry,
		ManualUpload: manualUpload,
		Resolver:     resolver,
		Orchestrator: orch,
		Hive:         hiveClient,
		Progress:     progress,
		Metrics:      collector,
		startedAt:    time.Now(),
		dashboard:    make(map[int64]pipeline.Breakdown),
	}
}

func (d *Dependencies) setLastBreakdown(portfolioID int64, b pipeline.Breakdown) {
	d.dashboardMu.Lock()
	defer d.dashboardMu.Unlock()
	d.dashboard[portfolioID] = b
}

func (d *Dependencies) lastBreakdown(portfolioID int64) (pipeline.Breakdown, bool) {
	d.dashboardMu.Lock()
	defer d.dashboardMu.Unlock()
	b, ok := d.dashboard[portfolioID]
	return b, ok
}

// isETF reports whether isin has a dedicated issuer adapter registered,
// rather than falling back to manual upload — used to flag a synced
// position as an ETF candidate for the pipeline's decomposition phase.
func (d *Dependencies) isETF(isin string) bool {
	return d.Adapters.Lookup(isin) != adapters.Adapter(d.ManualUpload)
}

func memoryUsageMB() float64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return float64(stats.Alloc) / (1024 * 1024)
}

func uptimeSeconds(since time.Time) float64 {
	return time.Since(since).Seconds()
}
