// Package hive is the client for the community "Hive" — a remote
// key-value-plus-RPC service of security identifiers and ETF compositions
// (spec.md §6.4). Every call is an HTTPS POST against a fixed RPC path,
// authenticated with an anonymous key, fronted by the same rate-limit,
// quota, and circuit-breaker stack internal/proxyclient gives the external
// metadata providers.
package hive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skeptomenos/portfolio-prism-engine/internal/circuit"
	"github.com/skeptomenos/portfolio-prism-engine/internal/proxyclient"
	"github.com/skeptomenos/portfolio-prism-engine/internal/quota"
	"github.com/skeptomenos/portfolio-prism-engine/internal/ratelimit"
)

// provider is the rate-limit/quota/circuit-breaker key the Hive is tracked
// under, distinct from any external metadata provider name.
const provider = "hive"

// Asset is one resolved identity record (spec.md §6.4 get_all_assets_rpc
// shape, trimmed to the fields the resolution cascade and contribution
// calls actually need).
type Asset struct {
	ISIN            string `json:"isin"`
	Ticker          string `json:"ticker"`
	Exchange        string `json:"exchange"`
	Name            string `json:"name"`
	AssetClass      string `json:"asset_class"`
	BaseCurrency    string `json:"base_currency"`
	TradingCurrency string `json:"trading_currency"`
}

// Alias maps a free-text alias (a company name variant, a legacy ticker) to
// an ISIN.
type Alias struct {
	Alias     string `json:"alias"`
	ISIN      string `json:"isin"`
	AliasType string `json:"alias_type"`
	Language  string `json:"language"`
}

// Listing ties an ISIN to one exchange/ticker pairing.
type Listing struct {
	ISIN     string `json:"isin"`
	Ticker   string `json:"ticker"`
	Exchange string `json:"exchange"`
}

// Client talks to the Hive's RPC endpoints. A nil/unreachable Hive is not a
// fatal condition anywhere in this package — every read RPC degrades to a
// miss and every write RPC is queued for later retry (spec.md §6.4 "Offline
// fallback").
type Client struct {
	baseURL   string
	anonKey   string
	pool      *proxyclient.Pool
	rateLimit *ratelimit.Manager
	breakers  *circuit.Manager
	quotas    *quota.Manager
	queue     *ContributionQueue
}

// Option configures a Client at construction.
type Option func(*Client)

// WithTimeout overrides the default 10s per-RPC timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.pool.SetTimeout(d) }
}

// New builds a Hive client. baseURL points at the Hive's RPC root (e.g.
// "https://hive.example.com/rest/v1/rpc"); anonKey is sent as both apikey
// and bearer token, matching the anonymous-key contract of a
// security-definer-fronted RPC API.
func New(baseURL, anonKey string, rateLimit *ratelimit.Manager, breakers *circuit.Manager, quotas *quota.Manager, opts ...Option) *Client {
	httpClient := &http.Client{Timeout: 10 * time.Second}
	c := &Client{
		baseURL:   baseURL,
		anonKey:   anonKey,
		pool:      proxyclient.NewPool(httpClient, proxyclient.DefaultPoolConfig("portfolio-prism-engine/1.0")),
		rateLimit: rateLimit,
		breakers:  breakers,
		quotas:    quotas,
		queue:     NewContributionQueue(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Queue exposes the pending contribution queue. No component of the engine
// drains it on a schedule; queued items are redelivered only when
// RetryQueued is called.
func (c *Client) Queue() *ContributionQueue { return c.queue }

// call issues one RPC and decodes its JSON result into out. A transport or
// breaker failure is treated as a miss by read callers and a queue
// candidate by write callers — call itself just reports the error.
func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	if err := c.rateLimit.Wait(ctx, provider, c.baseURL); err != nil {
		return fmt.Errorf("hive: rate limit wait: %w", err)
	}
	if err := c.quotas.Consume(provider); err != nil {
		return err
	}

	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("hive: encode params for %s: %w", method, err)
	}

	result, err := c.breakers.Execute(ctx, provider, func(ctx context.Context) (interface{}, error) {
		return c.doCall(ctx, method, body)
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(result.([]byte), out)
}

func (c *Client) doCall(ctx context.Context, method string, body []byte) ([]byte, error) {
	url := c.baseURL + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("hive: build request for %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.anonKey)

	resp, err := c.pool.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("hive: %s request: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("hive: %s read response: %w", method, err)
	}
	if resp.StatusCode >= 400 {
		log.Warn().Str("method", method).Int("status", resp.StatusCode).Msg("hive rpc returned error status")
		return nil, fmt.Errorf("hive: %s returned HTTP %d", method, resp.StatusCode)
	}
	return respBody, nil
}
