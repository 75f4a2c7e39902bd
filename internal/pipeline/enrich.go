package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// defaultInterCallDelay paces successive metadata/resolution calls (spec.md
// §4.8 enrichment: "default inter-call delay (configurable; default
// 100ms)").
const defaultInterCallDelay = 100 * time.Millisecond

// MetadataProvider fetches sector/region/currency for a resolved ISIN.
type MetadataProvider interface {
	FetchMetadata(ctx context.Context, isin string) (Metadata, error)
}

// enrich fills in sector/region/currency for every leaf missing any of
// them. A leaf without an ISIN is first run through the resolution cascade;
// any failure along the way attaches NeedsReview without aborting the run
// (spec.md §4.8: "Failures attach a needs_review marker but do not abort
// the pipeline").
func (o *Orchestrator) enrich(ctx context.Context, leaves []Leaf, onProgress func(done, total int)) []Leaf {
	total := 0
	for _, l := range leaves {
		if needsEnrichment(l) {
			total++
		}
	}

	done := 0
	for i := range leaves {
		if !needsEnrichment(leaves[i]) {
			continue
		}

		if leaves[i].ISIN == "" {
			query := leaves[i].Ticker
			if query == "" {
				query = leaves[i].Name
			}
			result, err := o.resolver.Resolve(ctx, query)
			if err != nil || result.ISIN == "" {
				log.Warn().Str("name", leaves[i].Name).Msg("pipeline: enrichment could not resolve isin, flagging for review")
				leaves[i].NeedsReview = true
				done++
				if onProgress != nil {
					onProgress(done, total)
				}
				time.Sleep(o.interCallDelay)
				continue
			}
			leaves[i].ISIN = result.ISIN
		}

		meta, err := o.metadata.FetchMetadata(ctx, leaves[i].ISIN)
		if err != nil {
			log.Warn().Err(err).Str("isin", leaves[i].ISIN).Msg("pipeline: metadata fetch failed, flagging for review")
			leaves[i].NeedsReview = true
		} else {
			leaves[i].Sector = meta.Sector
			leaves[i].Region = meta.Region
			leaves[i].Currency = meta.Currency
		}

		done++
		if onProgress != nil {
			onProgress(done, total)
		}
		time.Sleep(o.interCallDelay)
	}
	return leaves
}

func needsEnrichment(l Leaf) bool {
	return l.Sector == "" || l.Region == "" || l.Currency == ""
}
