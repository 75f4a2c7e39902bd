package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/skeptomenos/portfolio-prism-engine/internal/proxyclient"
)

// proxyProvider is the shared shape of every step-5 external provider: a
// GET against a fixed proxy path, decoded by a source-specific parser
// (spec.md §4.5 step 5, §6.5 "Proxy-Fronted External APIs").
type proxyProvider struct {
	client   *proxyclient.Client
	provider string
	source   Source
	pathFor  func(query string) string
	parse    func(body []byte) (string, error)
}

func (p *proxyProvider) Source() Source { return p.source }

func (p *proxyProvider) Lookup(ctx context.Context, query string) (string, error) {
	body, err := p.client.Get(ctx, p.provider, p.pathFor(query))
	if err != nil {
		if isRateLimited(err) {
			return "", ErrRateLimited
		}
		return "", err
	}
	isin, err := p.parse(body)
	if err != nil {
		return "", err
	}
	if isin == "" {
		return "", ErrMiss
	}
	return isin, nil
}

// isRateLimited inspects a proxyclient error for an HTTP 429, the only
// status this cascade distinguishes from an ordinary miss/timeout.
func isRateLimited(err error) bool {
	var statusErr *proxyclient.ErrHTTPStatus
	return errors.As(err, &statusErr) && statusErr.StatusCode == 429
}

// NewWikidataProvider queries the Wikidata SPARQL-over-REST proxy endpoint
// for an ISIN property (P946) on the entity matching query.
func NewWikidataProvider(client *proxyclient.Client) ExternalProvider {
	return &proxyProvider{
		client:   client,
		provider: "wikidata",
		source:   SourceWikidata,
		pathFor: func(query string) string {
			return "/api/wikidata/isin?label=" + url.QueryEscape(query)
		},
		parse: func(body []byte) (string, error) {
			var resp struct {
				ISIN string `json:"isin"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return "", fmt.Errorf("identity: decode wikidata response: %w", err)
			}
			return resp.ISIN, nil
		},
	}
}

// NewOpenFIGIProvider queries the OpenFIGI mapping proxy endpoint.
func NewOpenFIGIProvider(client *proxyclient.Client) ExternalProvider {
	return &proxyProvider{
		client:   client,
		provider: "openfigi",
		source:   SourceOpenFIGI,
		pathFor: func(query string) string {
			return "/api/openfigi/mapping?query=" + url.QueryEscape(query)
		},
		parse: func(body []byte) (string, error) {
			var resp []struct {
				ISIN string `json:"isin"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return "", fmt.Errorf("identity: decode openfigi response: %w", err)
			}
			if len(resp) == 0 {
				return "", nil
			}
			return resp[0].ISIN, nil
		},
	}
}

// NewFinnhubProvider queries the Finnhub company-profile proxy endpoint.
func NewFinnhubProvider(client *proxyclient.Client) ExternalProvider {
	return &proxyProvider{
		client:   client,
		provider: "finnhub",
		source:   SourceFinnhub,
		pathFor: func(query string) string {
			return "/api/finnhub/profile?symbol=" + url.QueryEscape(query)
		},
		parse: func(body []byte) (string, error) {
			var resp struct {
				ISIN string `json:"isin"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return "", fmt.Errorf("identity: decode finnhub response: %w", err)
			}
			return resp.ISIN, nil
		},
	}
}

// NewYFinanceProvider queries the yFinance quote-summary proxy endpoint —
// the least reliable source, tried last (spec.md §4.5 step 5 "unreliable").
func NewYFinanceProvider(client *proxyclient.Client) ExternalProvider {
	return &proxyProvider{
		client:   client,
		provider: "yfinance",
		source:   SourceYFinance,
		pathFor: func(query string) string {
			return "/api/yfinance/quoteSummary?symbol=" + url.QueryEscape(query)
		},
		parse: func(body []byte) (string, error) {
			var resp struct {
				ISIN string `json:"isin"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return "", fmt.Errorf("identity: decode yfinance response: %w", err)
			}
			return resp.ISIN, nil
		},
	}
}
