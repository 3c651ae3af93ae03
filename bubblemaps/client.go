package bubblemaps

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tokenlens/tokenlens/config"
	"github.com/tokenlens/tokenlens/metrics"
	"github.com/tokenlens/tokenlens/token"
	"github.com/tokenlens/tokenlens/upstream"
)

// Source names this provider in failure sets and metrics
const Source = "holders"

// Client fetches holder/decentralization metrics from the Bubblemaps
// legacy API. One logical fetch hits two endpoints (map-metadata and
// map-data); both must succeed.
type Client struct {
	cfg        config.BubblemapsConfig
	httpClient *upstream.Client
}

// NewClient creates a holder-metrics client using the shared retry policy
func NewClient(cfg *config.Config) *Client {
	opts := upstream.DefaultRetryOptions()
	opts.MaxRetries = cfg.Aggregator.MaxRetries
	opts.BaseBackoff = cfg.Aggregator.BaseBackoff
	opts.LogPrefix = "Bubblemaps"

	limiter := upstream.NewLimiter(cfg.Bubblemaps.RateLimitPerMinute, cfg.Bubblemaps.Burst)

	return &Client{
		cfg:        cfg.Bubblemaps,
		httpClient: upstream.NewClient(Source, opts, metrics.NewMetricsWriter(Source), limiter),
	}
}

// FetchHolders fetches the holder metrics for ref. A token the map does not
// know (404 or a non-OK metadata status) is a permanent failure.
func (c *Client) FetchHolders(ctx context.Context, ref token.Ref) (*HolderMetrics, error) {
	query := url.Values{}
	query.Set("token", ref.Address)
	query.Set("chain", ref.Chain)

	var metaBody, dataBody []byte
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		metaBody, err = c.get(groupCtx, "/map-metadata", query)
		return err
	})
	group.Go(func() error {
		var err error
		dataBody, err = c.get(groupCtx, "/map-data", query)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	holderMetrics, err := buildMetrics(metaBody, dataBody, time.Now())
	if err != nil {
		return nil, upstream.NewPermanent(Source, err)
	}
	return holderMetrics, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	requestURL := fmt.Sprintf("%s%s?%s", c.cfg.APIBaseURL, path, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, upstream.NewPermanent(Source, err)
	}
	req.Header.Set("Accept", "application/json")

	return c.httpClient.ExecuteRequest(req)
}
