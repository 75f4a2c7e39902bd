package identity

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skeptomenos/portfolio-prism-engine/internal/cache"
	"github.com/skeptomenos/portfolio-prism-engine/internal/hive"
	"github.com/skeptomenos/portfolio-prism-engine/internal/store"
)

// Source identifies which cascade step produced a Result (spec.md §3).
type Source string

const (
	SourceISINDirect  Source = "ISIN_DIRECT"
	SourceCache       Source = "CACHE"
	SourceHive        Source = "HIVE"
	SourceWikidata    Source = "WIKIDATA"
	SourceOpenFIGI    Source = "OPENFIGI"
	SourceFinnhub     Source = "FINNHUB"
	SourceYFinance    Source = "YFINANCE"
	SourceUnresolved  Source = "UNRESOLVED"
	SourceRateLimited Source = "RATE_LIMITED"
)

// Confidence thresholds (spec.md §4.5 "Thresholds").
const (
	acceptThreshold = 0.70
	rejectThreshold = 0.50
)

// Negative-cache TTLs (spec.md §4.5 "Negative caching").
const (
	unresolvedTTL  = 24 * time.Hour
	rateLimitedTTL = 1 * time.Hour
	// positiveCacheTTL bounds an entry in the in-memory index; the
	// persistent copy in internal/store has no expiry for positive hits and
	// is loaded back into the index at startup (cmd/engine's
	// warmResolutionCache). Resolve reads only the in-memory index, so an
	// entry evicted from it misses step 3 until the next restart.
	positiveCacheTTL = 30 * 24 * time.Hour
)

// Result is the outcome of resolving one ticker/name/ISIN query.
type Result struct {
	ISIN          string
	Confidence    float64
	Source        Source
	LowConfidence bool // 0.50 <= confidence < 0.70: accepted but flagged
}

// Candidate is one ISIN candidate surfaced by a single cascade step, used
// for tie-breaking when a step yields more than one (spec.md §4.5
// "Tie-breakers").
type Candidate struct {
	ISIN       string
	Confidence float64
}

// SelectBest picks the highest-confidence candidate, breaking ties by the
// lexicographically smallest ISIN for determinism. Ambiguity (more than one
// candidate considered) is always logged.
func SelectBest(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		return sorted[i].ISIN < sorted[j].ISIN
	})
	if len(sorted) > 1 {
		log.Warn().Int("candidate_count", len(sorted)).Str("chosen_isin", sorted[0].ISIN).
			Msg("identity resolution: ambiguous candidates, applying tie-breaker")
	}
	return sorted[0], true
}

// ExternalProvider is one external metadata API in the step-5 cascade
// (Wikidata, OpenFIGI, Finnhub, yFinance). Lookup returns ErrRateLimited to
// signal a rate-limited response distinct from a plain miss or timeout —
// both cause the cascade to skip to the next provider, but only a rate
// limit is negative-cached under the RATE_LIMITED source.
type ExternalProvider interface {
	Source() Source
	Lookup(ctx context.Context, query string) (isin string, err error)
}

// ErrRateLimited is returned by an ExternalProvider.Lookup to distinguish a
// rate-limit response from any other miss/error.
var ErrRateLimited = rateLimitedError{}

type rateLimitedError struct{}

func (rateLimitedError) Error() string { return "identity: provider rate limited" }

// ErrMiss is returned by an ExternalProvider.Lookup for an ordinary (non
// rate-limited) empty result.
var ErrMiss = missError{}

type missError struct{}

func (missError) Error() string { return "identity: provider miss" }

// HitRecorder observes which cascade step ultimately produced (or failed to
// produce) a resolution, for the engine's cascade_hits_total metric. Kept
// string-keyed rather than typed on Source so this package never has to
// import the metrics package.
type HitRecorder interface {
	RecordCascadeHit(source string)
}

// Resolver implements the six-step resolution cascade.
type Resolver struct {
	memCache   *cache.TTLCache[Result]
	persist    *store.Store
	hive       *hive.Client
	externals  []ExternalProvider
	contribute bool
	hits       HitRecorder
}

// NewResolver builds a Resolver. externals must be supplied in cascade
// order (Wikidata, OpenFIGI, Finnhub, yFinance per spec.md §4.5 step 5).
func NewResolver(memCache *cache.TTLCache[Result], persist *store.Store, hiveClient *hive.Client, externals []ExternalProvider) *Resolver {
	return &Resolver{memCache: memCache, persist: persist, hive: hiveClient, externals: externals, contribute: true}
}

// SetHiveContribution toggles whether successful external resolutions are
// fire-and-forget contributed back to the Hive (the set_hive_contribution
// command, spec.md §4.3).
func (r *Resolver) SetHiveContribution(enabled bool) { r.contribute = enabled }

// SetHitRecorder wires a metrics sink that observes every cascade outcome.
func (r *Resolver) SetHitRecorder(rec HitRecorder) { r.hits = rec }

// Resolve runs the cascade for one query string, which may be a ticker, a
// company name, or an already-valid ISIN.
func (r *Resolver) Resolve(ctx context.Context, query string) (result Result, err error) {
	defer func() {
		if r.hits != nil {
			r.hits.RecordCascadeHit(string(result.Source))
		}
	}()

	// Step 1: already an ISIN?
	if looksLikeISIN(query) && ValidateISIN(query) {
		return Result{ISIN: query, Confidence: 1.0, Source: SourceISINDirect}, nil
	}

	// Step 2: normalize into a variant list tried across cache/Hive. The
	// first variant is the canonical cache key every write targets; a later
	// query finds that entry only when the key is among its own variants.
	variants := dedupe(append(NormalizeTicker(query), NormalizeName(query)))
	canonicalKey := variants[0]

	// Step 3: local cache lookup across every variant, including a still-
	// live negative-cache entry from a prior miss.
	if cached, ok := r.lookupCache(variants); ok {
		return r.classify(cached), nil
	}
	for _, variant := range variants {
		if cached, ok := r.memCache.Get(variant); ok && cached.ISIN == "" {
			return cached, nil
		}
	}

	// Step 4: Hive lookup.
	for _, variant := range variants {
		if alias, ok := r.hive.LookupAlias(ctx, variant); ok {
			hit := Result{ISIN: alias.ISIN, Confidence: 0.90, Source: SourceHive}
			r.writeThroughCache(canonicalKey, hit)
			return r.classify(hit), nil
		}
	}

	// Step 5: external API cascade.
	rateLimited := false
	for _, provider := range r.externals {
		isin, lookupErr := provider.Lookup(ctx, query)
		if lookupErr == nil && isin != "" {
			hit := Result{ISIN: isin, Confidence: externalConfidence(provider.Source()), Source: provider.Source()}
			r.writeThroughCache(canonicalKey, hit)
			if r.contribute {
				r.hive.ContributeMapping(ctx, string(provider.Source()), isin, hit.Confidence, time.Now())
			}
			return r.classify(hit), nil
		}
		if lookupErr == ErrRateLimited {
			rateLimited = true
		}
	}

	// Step 6 (miss path): negative cache.
	if rateLimited {
		r.negativeCache(canonicalKey, SourceRateLimited, rateLimitedTTL)
		return Result{Source: SourceRateLimited}, nil
	}
	r.negativeCache(canonicalKey, SourceUnresolved, unresolvedTTL)
	return Result{Source: SourceUnresolved}, nil
}

func externalConfidence(source Source) float64 {
	switch source {
	case SourceWikidata, SourceOpenFIGI:
		return 0.80
	case SourceFinnhub:
		return 0.75
	case SourceYFinance:
		return 0.70
	default:
		return 0.70
	}
}

func (r *Resolver) lookupCache(variants []string) (Result, bool) {
	var candidates []Candidate
	for _, variant := range variants {
		if result, ok := r.memCache.Get(variant); ok && result.ISIN != "" {
			candidates = append(candidates, Candidate{ISIN: result.ISIN, Confidence: 0.95})
		}
	}
	best, ok := SelectBest(candidates)
	if !ok {
		return Result{}, false
	}
	return Result{ISIN: best.ISIN, Confidence: 0.95, Source: SourceCache}, true
}

func (r *Resolver) writeThroughCache(query string, result Result) {
	r.memCache.Set(query, result, positiveCacheTTL)
	if r.persist == nil {
		return
	}
	if err := r.persist.SaveResolution(context.Background(), store.ResolutionEntry{
		Key: query, ISIN: result.ISIN, Confidence: result.Confidence, Source: string(result.Source),
	}); err != nil {
		log.Warn().Err(err).Str("key", query).Msg("identity: failed to persist resolution entry")
	}
}

func (r *Resolver) negativeCache(query string, source Source, ttl time.Duration) {
	r.memCache.Set(query, Result{Source: source}, ttl)
	if r.persist == nil {
		return
	}
	if err := r.persist.SaveResolution(context.Background(), store.ResolutionEntry{
		Key: query, Source: string(source), ExpiresAt: time.Now().Add(ttl),
	}); err != nil {
		log.Warn().Err(err).Str("key", query).Msg("identity: failed to persist negative cache entry")
	}
}

// classify applies the accept/reject/low-confidence thresholds (spec.md
// §4.5 "Thresholds") to an otherwise-successful result.
func (r *Resolver) classify(result Result) Result {
	if result.Confidence < rejectThreshold {
		return Result{Source: SourceUnresolved}
	}
	if result.Confidence < acceptThreshold {
		result.LowConfidence = true
	}
	return result
}
