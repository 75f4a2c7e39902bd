// Package metadata implements the pipeline's MetadataProvider: a
// proxy-fronted lookup of sector/region/currency for a resolved ISIN,
// grounded on the same request/parse shape as the identity package's
// external providers (spec.md §4.8 "Enrichment").
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/skeptomenos/portfolio-prism-engine/internal/pipeline"
	"github.com/skeptomenos/portfolio-prism-engine/internal/proxyclient"
)

// provider identifies this endpoint's rate-limit/quota/circuit-breaker key,
// distinct from the identity cascade's external providers.
const provider = "security_metadata"

// Provider fetches sector/region/currency through the credential-injecting
// proxy's security-metadata endpoint.
type Provider struct {
	client *proxyclient.Client
}

// New builds a metadata Provider bound to client.
func New(client *proxyclient.Client) *Provider {
	return &Provider{client: client}
}

// FetchMetadata implements pipeline.MetadataProvider.
func (p *Provider) FetchMetadata(ctx context.Context, isin string) (pipeline.Metadata, error) {
	path := "/api/metadata/security?isin=" + url.QueryEscape(isin)
	body, err := p.client.Get(ctx, provider, path)
	if err != nil {
		return pipeline.Metadata{}, fmt.Errorf("metadata: fetch %s: %w", isin, err)
	}

	var resp struct {
		Sector   string `json:"sector"`
		Region   string `json:"region"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return pipeline.Metadata{}, fmt.Errorf("metadata: decode response for %s: %w", isin, err)
	}
	return pipeline.Metadata{Sector: resp.Sector, Region: resp.Region, Currency: resp.Currency}, nil
}
