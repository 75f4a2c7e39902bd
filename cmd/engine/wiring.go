package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skeptomenos/portfolio-prism-engine/internal/adapters"
	"github.com/skeptomenos/portfolio-prism-engine/internal/application"
	"github.com/skeptomenos/portfolio-prism-engine/internal/cache"
	"github.com/skeptomenos/portfolio-prism-engine/internal/circuit"
	"github.com/skeptomenos/portfolio-prism-engine/internal/config"
	"github.com/skeptomenos/portfolio-prism-engine/internal/hive"
	"github.com/skeptomenos/portfolio-prism-engine/internal/identity"
	"github.com/skeptomenos/portfolio-prism-engine/internal/metadata"
	"github.com/skeptomenos/portfolio-prism-engine/internal/metrics"
	"github.com/skeptomenos/portfolio-prism-engine/internal/pipeline"
	"github.com/skeptomenos/portfolio-prism-engine/internal/proxyclient"
	"github.com/skeptomenos/portfolio-prism-engine/internal/quota"
	"github.com/skeptomenos/portfolio-prism-engine/internal/ratelimit"
	"github.com/skeptomenos/portfolio-prism-engine/internal/registry"
	"github.com/skeptomenos/portfolio-prism-engine/internal/secrets"
	"github.com/skeptomenos/portfolio-prism-engine/internal/store"
	"github.com/skeptomenos/portfolio-prism-engine/internal/transport"
)

const (
	poolSize      = 2
	poolQueueSize = 32

	resolutionCacheEntries = 50_000
	resolutionCacheSweep   = 10 * time.Minute
	holdingsCacheEntries   = 5_000
	holdingsCacheSweep     = time.Hour

	// warmPositiveTTL mirrors the resolution cascade's own positive-cache
	// lifetime for entries with no persisted expiry (a positive hit never
	// expires in the database, only in the in-memory index).
	warmPositiveTTL = 30 * 24 * time.Hour

	openFIGIDailyQuota     = 250
	openFIGIQuotaResetHour = 0
)

// wired bundles everything main needs to tear down cleanly alongside the
// Dependencies handlers close over.
type wired struct {
	deps    *application.Dependencies
	store   *store.Store
	events  *transport.Broadcaster
	pool    *metrics.Collector
	secrets secrets.Store
}

func wireDependencies(cfg config.Config, brokerBin string) (*wired, error) {
	st, err := store.Open(cfg.StorePath())
	if err != nil {
		return nil, err
	}

	credStore, err := secrets.NewKeyringStore(cfg.DataDir)
	if err != nil {
		st.Close()
		return nil, err
	}

	collector := metrics.NewCollector()

	spawn := registry.DefaultSpawner(brokerBin)
	reg := registry.New(spawn, credStore, poolSize, poolQueueSize)
	reg.SetRestartHook(collector.IncBridgeRestart)

	rateLimits := ratelimit.NewManager()
	breakers := circuit.NewManager()
	quotas := quota.NewManager()
	quotas.Register("openfigi", openFIGIDailyQuota, openFIGIQuotaResetHour)

	proxy := proxyclient.New(cfg.ProxyBaseURL, rateLimits, breakers, quotas)
	hiveClient := hive.New(cfg.HiveBaseURL, cfg.HiveAnonKey, rateLimits, breakers, quotas)

	externals := []identity.ExternalProvider{
		identity.NewWikidataProvider(proxy),
		identity.NewOpenFIGIProvider(proxy),
		identity.NewFinnhubProvider(proxy),
		identity.NewYFinanceProvider(proxy),
	}

	memCache := cache.New[identity.Result](resolutionCacheEntries, resolutionCacheSweep)
	warmResolutionCache(st, memCache)

	resolver := identity.NewResolver(memCache, st, hiveClient, externals)
	resolver.SetHitRecorder(collector)

	manualUpload := adapters.NewManualUploadAdapter()
	adapterRegistry := adapters.NewRegistry(manualUpload)
	holdingsCache := cache.New[[]adapters.Holding](holdingsCacheEntries, holdingsCacheSweep)
	cachedByName := make(map[string]adapters.Adapter, 5)
	for _, issuer := range []adapters.Adapter{
		adapters.NewIShares(), adapters.NewVanguard(), adapters.NewAmundi(),
		adapters.NewXtrackers(), adapters.NewVanEck(),
	} {
		cachedByName[issuer.Name()] = adapters.NewCached(issuer, holdingsCache)
	}
	adapters.RegisterSeedIssuers(adapterRegistry, cachedByName)
	if issuerCfgs, err := adapters.LoadIssuerConfig(cfg.AdaptersConfigPath()); err == nil {
		adapters.RegisterIssuerConfig(adapterRegistry, cachedByName, issuerCfgs)
	} else if !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to load adapters config, using built-in seed ISINs only")
	}

	events := &transport.Broadcaster{}
	metadataProvider := metadata.New(proxy)
	orchestrator := pipeline.New(st, adapterRegistry, resolver, metadataProvider, events,
		cfg.HealthReportPath(), cfg.BreakdownReportPath())

	deps := application.NewDependencies(cfg, reg, st, adapterRegistry, manualUpload, resolver,
		orchestrator, hiveClient, events, collector)

	return &wired{deps: deps, store: st, events: events, pool: collector, secrets: credStore}, nil
}

// warmResolutionCache preloads every still-live persisted resolution entry
// into the in-memory cache so a restart doesn't force every previously
// resolved query back through the full cascade.
func warmResolutionCache(st *store.Store, memCache *cache.TTLCache[identity.Result]) {
	entries, err := st.LoadAllResolutions(context.Background())
	if err != nil {
		log.Warn().Err(err).Msg("failed to warm resolution cache from persisted store")
		return
	}
	now := time.Now()
	for _, e := range entries {
		if !e.ExpiresAt.IsZero() && e.ExpiresAt.Before(now) {
			continue
		}
		ttl := warmPositiveTTL
		if !e.ExpiresAt.IsZero() {
			ttl = e.ExpiresAt.Sub(now)
			if ttl <= 0 {
				continue
			}
		}
		source := identity.Source(e.Source)
		confidence := e.Confidence
		if e.ISIN == "" {
			confidence = 0
		}
		memCache.Set(e.Key, identity.Result{ISIN: e.ISIN, Confidence: confidence, Source: source}, ttl)
	}
}
