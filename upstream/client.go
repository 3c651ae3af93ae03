package upstream

import (
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// StatusHandler is notified about request outcomes and retries.
// metrics.MetricsWriter satisfies it.
type StatusHandler interface {
	OnRequest(status string)
	OnRetry()
}

// RetryOptions configures retry behavior for provider requests
type RetryOptions struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries        int
	BaseBackoff       time.Duration
	LogPrefix         string
	ConnectionTimeout time.Duration
	RequestTimeout    time.Duration
}

// DefaultRetryOptions returns the retry policy providers use unless
// configured otherwise: 2 retries, 500ms base backoff doubling per attempt.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries:        2,
		BaseBackoff:       500 * time.Millisecond,
		LogPrefix:         "HTTP",
		ConnectionTimeout: 10 * time.Second,
		RequestTimeout:    30 * time.Second,
	}
}

// Client wraps an HTTP client with retry, backoff and rate limiting for one
// upstream provider. Transient failures (timeouts, 5xx, 429, connection
// resets) are retried; permanent failures (other 4xx) are returned
// immediately as a classified Error.
type Client struct {
	httpClient    *http.Client
	opts          RetryOptions
	source        string
	statusHandler StatusHandler
	limiter       *rate.Limiter
}

// NewClient creates a retrying client for the named provider source.
// handler and limiter may be nil.
func NewClient(source string, opts RetryOptions, handler StatusHandler, limiter *rate.Limiter) *Client {
	httpClient := &http.Client{
		Timeout: opts.RequestTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: opts.ConnectionTimeout,
			}).DialContext,
		},
	}

	return &Client{
		httpClient:    httpClient,
		opts:          opts,
		source:        source,
		statusHandler: handler,
		limiter:       limiter,
	}
}

// ExecuteRequest executes req with retry logic and returns the response
// body. The request context carries the deadline; backoff sleeps never
// outlive it.
func (c *Client) ExecuteRequest(req *http.Request) ([]byte, error) {
	ctx := req.Context()
	var lastErr error

	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("%s: Retry %d/%d after error: %v",
				c.opts.LogPrefix, attempt, c.opts.MaxRetries, lastErr)

			if c.statusHandler != nil {
				c.statusHandler.OnRetry()
			}

			backoff := backoffDelay(c.opts.BaseBackoff, attempt)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, NewTransient(c.source, fmt.Errorf("deadline elapsed during backoff: %w", ctx.Err()))
			case <-timer.C:
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				c.onRequest("error")
				return nil, NewTransient(c.source, fmt.Errorf("rate limiter wait failed: %w", err))
			}
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = NewTransient(c.source, err)
			c.onRequest("error")
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}

		body, err := processResponse(c.source, resp)
		if err != nil {
			if KindOf(err) == Transient {
				lastErr = err
				c.onRequest("rate_limited")
				continue
			}
			c.onRequest("error")
			return nil, err
		}

		c.onRequest("success")
		return body, nil
	}

	return nil, lastErr
}

func (c *Client) onRequest(status string) {
	if c.statusHandler != nil {
		c.statusHandler.OnRequest(status)
	}
}

// backoffDelay computes the exponential delay before the given retry
// attempt: base, base*2, base*4, ...
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt <= 1 {
		return base
	}
	return base << uint(attempt-1)
}

// processResponse reads the response body and classifies non-200 statuses
func processResponse(source string, resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("status %d: %s", resp.StatusCode, string(body))

		if isRetryableStatus(resp.StatusCode) {
			return nil, NewTransient(source, err)
		}
		return nil, NewPermanent(source, err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewTransient(source, fmt.Errorf("reading response: %w", err))
	}
	return body, nil
}

// isRetryableStatus reports whether a status code should trigger a retry
func isRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusInternalServerError ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}

// NewLimiter builds a per-provider rate limiter from a requests-per-minute
// budget. A non-positive rpm disables limiting.
func NewLimiter(rpm, burst int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
}
