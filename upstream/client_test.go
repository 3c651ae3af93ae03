package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() RetryOptions {
	opts := DefaultRetryOptions()
	opts.BaseBackoff = 10 * time.Millisecond
	return opts
}

func newRequest(t *testing.T, ctx context.Context, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	return req
}

func TestClient_ExecuteRequest_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	client := NewClient("test", testOptions(), nil, nil)
	body, err := client.ExecuteRequest(newRequest(t, context.Background(), server.URL))

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestClient_ExecuteRequest_RetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	client := NewClient("test", testOptions(), nil, nil)
	start := time.Now()
	body, err := client.ExecuteRequest(newRequest(t, context.Background(), server.URL))

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), calls.Load())
	// Two backoffs at base and 2x base
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestClient_ExecuteRequest_RateLimitedIsTransient(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	client := NewClient("test", testOptions(), nil, nil)
	_, err := client.ExecuteRequest(newRequest(t, context.Background(), server.URL))

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ExecuteRequest_PermanentFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient("test", testOptions(), nil, nil)
	_, err := client.ExecuteRequest(newRequest(t, context.Background(), server.URL))

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var upstreamErr *Error
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, Permanent, upstreamErr.Kind)
	assert.Equal(t, "test", upstreamErr.Source)
}

func TestClient_ExecuteRequest_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient("test", testOptions(), nil, nil)
	_, err := client.ExecuteRequest(newRequest(t, context.Background(), server.URL))

	require.Error(t, err)
	// First attempt plus MaxRetries retries
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, Transient, KindOf(err))
}

func TestClient_ExecuteRequest_DeadlineStopsBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	opts := testOptions()
	opts.BaseBackoff = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient("test", opts, nil, nil)
	start := time.Now()
	_, err := client.ExecuteRequest(newRequest(t, ctx, server.URL))

	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, Transient, KindOf(err))
}

type countingHandler struct {
	requests atomic.Int32
	retries  atomic.Int32
}

func (h *countingHandler) OnRequest(status string) { h.requests.Add(1) }
func (h *countingHandler) OnRetry()                { h.retries.Add(1) }

func TestClient_ExecuteRequest_NotifiesStatusHandler(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	handler := &countingHandler{}
	client := NewClient("test", testOptions(), handler, nil)
	_, err := client.ExecuteRequest(newRequest(t, context.Background(), server.URL))

	require.NoError(t, err)
	assert.Equal(t, int32(2), handler.requests.Load())
	assert.Equal(t, int32(1), handler.retries.Load())
}

func TestBackoffDelay(t *testing.T) {
	base := 500 * time.Millisecond

	assert.Equal(t, 500*time.Millisecond, backoffDelay(base, 1))
	assert.Equal(t, 1000*time.Millisecond, backoffDelay(base, 2))
	assert.Equal(t, 2000*time.Millisecond, backoffDelay(base, 3))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Transient, KindOf(NewTransient("s", errors.New("boom"))))
	assert.Equal(t, Permanent, KindOf(NewPermanent("s", errors.New("boom"))))
	assert.Equal(t, Transient, KindOf(context.DeadlineExceeded))
	assert.Equal(t, Permanent, KindOf(errors.New("unclassified")))
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, NewLimiter(0, 5))
	limiter := NewLimiter(60, 0)
	require.NotNil(t, limiter)
	assert.Equal(t, 1, limiter.Burst())
}
