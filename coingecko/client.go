package coingecko

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tokenlens/tokenlens/config"
	"github.com/tokenlens/tokenlens/metrics"
	"github.com/tokenlens/tokenlens/token"
	"github.com/tokenlens/tokenlens/upstream"
)

// Source names this provider in failure sets and metrics
const Source = "market"

const apiKeyHeader = "x-cg-demo-api-key"

// Client fetches market data for a token contract from CoinGecko
type Client struct {
	cfg        config.CoingeckoConfig
	chains     config.ChainTable
	httpClient *upstream.Client
}

// NewClient creates a market-data client using the shared retry policy
func NewClient(cfg *config.Config) *Client {
	opts := upstream.DefaultRetryOptions()
	opts.MaxRetries = cfg.Aggregator.MaxRetries
	opts.BaseBackoff = cfg.Aggregator.BaseBackoff
	opts.LogPrefix = "CoinGecko"

	limiter := upstream.NewLimiter(cfg.Coingecko.RateLimitPerMinute, cfg.Coingecko.Burst)

	return &Client{
		cfg:        cfg.Coingecko,
		chains:     cfg.Chains,
		httpClient: upstream.NewClient(Source, opts, metrics.NewMetricsWriter(Source), limiter),
	}
}

// FetchMarket fetches the market snapshot for ref. Transient upstream
// failures are retried by the underlying client; a response that fails the
// shape check is a permanent failure.
func (c *Client) FetchMarket(ctx context.Context, ref token.Ref) (*MarketSnapshot, error) {
	chain, ok := c.chains[ref.Chain]
	if !ok {
		return nil, upstream.NewPermanent(Source, fmt.Errorf("no platform mapping for chain %q", ref.Chain))
	}

	url := fmt.Sprintf("%s/coins/%s/contract/%s", c.cfg.BaseURL, chain.Platform, ref.Address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, upstream.NewPermanent(Source, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	}

	body, err := c.httpClient.ExecuteRequest(req)
	if err != nil {
		return nil, err
	}

	snapshot, err := parseSnapshot(body, time.Now())
	if err != nil {
		return nil, upstream.NewPermanent(Source, err)
	}
	return snapshot, nil
}
