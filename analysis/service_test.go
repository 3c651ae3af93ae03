package analysis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenlens/tokenlens/aggregator"
	"github.com/tokenlens/tokenlens/bubblemaps"
	"github.com/tokenlens/tokenlens/capture"
	"github.com/tokenlens/tokenlens/coingecko"
	"github.com/tokenlens/tokenlens/config"
	"github.com/tokenlens/tokenlens/token"
	"github.com/tokenlens/tokenlens/upstream"
)

const testAddress = "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984"

type fakeMetricsProvider struct {
	calls   atomic.Int32
	gate    chan struct{}
	outcome aggregator.Outcome
}

func (f *fakeMetricsProvider) Fetch(ctx context.Context, ref token.Ref) aggregator.Outcome {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.outcome
}

type fakeCaptureProvider struct {
	calls    atomic.Int32
	artifact *capture.Artifact
	err      error
}

func (f *fakeCaptureProvider) Capture(ctx context.Context, ref token.Ref) (*capture.Artifact, error) {
	f.calls.Add(1)
	return f.artifact, f.err
}

func newTestService(t *testing.T, metricsProvider MetricsProvider, captureProvider CaptureProvider) *Service {
	t.Helper()
	cfg, err := config.LoadConfig("does-not-exist.yaml")
	require.NoError(t, err)
	cfg.Analysis.RequestDeadline = 5 * time.Second
	return NewService(cfg, token.NewValidator(cfg.Chains), metricsProvider, captureProvider)
}

func fullOutcome() aggregator.Outcome {
	return aggregator.Outcome{
		Market:  &coingecko.MarketSnapshot{PriceUSD: 7.21, MarketCapUSD: 4_300_000_000},
		Holders: &bubblemaps.HolderMetrics{Symbol: "UNI", DecentralizationScore: 71.4},
	}
}

func TestService_Analyze_Complete(t *testing.T) {
	metricsProvider := &fakeMetricsProvider{outcome: fullOutcome()}
	captureProvider := &fakeCaptureProvider{artifact: &capture.Artifact{PNG: []byte("png"), Width: 1920, Height: 1080}}
	service := newTestService(t, metricsProvider, captureProvider)

	result, err := service.Analyze(context.Background(), testAddress, "eth")

	require.NoError(t, err)
	assert.Equal(t, StatusComplete, result.Status)
	assert.Equal(t, token.Ref{Address: testAddress, Chain: "eth"}, result.Token)
	assert.NotEmpty(t, result.RequestID)
	assert.Empty(t, result.Failures)
	require.NotNil(t, result.Market)
	require.NotNil(t, result.Holders)
	require.NotNil(t, result.Capture)
}

func TestService_Analyze_PartialOnHoldersFailure(t *testing.T) {
	metricsProvider := &fakeMetricsProvider{outcome: aggregator.Outcome{
		Market: &coingecko.MarketSnapshot{PriceUSD: 1},
		Failures: []aggregator.Failure{
			{Source: bubblemaps.Source, Kind: upstream.Permanent, Detail: "status 404"},
		},
	}}
	captureProvider := &fakeCaptureProvider{artifact: &capture.Artifact{PNG: []byte("png")}}
	service := newTestService(t, metricsProvider, captureProvider)

	result, err := service.Analyze(context.Background(), testAddress, "eth")

	require.NoError(t, err)
	assert.Equal(t, StatusPartial, result.Status)
	assert.Nil(t, result.Holders)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, bubblemaps.Source, result.Failures[0].Source)
}

func TestService_Analyze_PartialOnCaptureTimeout(t *testing.T) {
	metricsProvider := &fakeMetricsProvider{outcome: fullOutcome()}
	captureProvider := &fakeCaptureProvider{err: &capture.Error{
		Reason: capture.RenderTimeout,
		Err:    errors.New("marker never appeared"),
	}}
	service := newTestService(t, metricsProvider, captureProvider)

	result, err := service.Analyze(context.Background(), testAddress, "eth")

	require.NoError(t, err)
	assert.Equal(t, StatusPartial, result.Status)
	assert.Nil(t, result.Capture)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, CaptureSource, result.Failures[0].Source)
}

func TestService_Analyze_FailedNeverErrors(t *testing.T) {
	metricsProvider := &fakeMetricsProvider{outcome: aggregator.Outcome{
		Failures: []aggregator.Failure{
			{Source: coingecko.Source, Kind: upstream.Transient, Detail: "timeout"},
			{Source: bubblemaps.Source, Kind: upstream.Transient, Detail: "timeout"},
		},
	}}
	captureProvider := &fakeCaptureProvider{err: &capture.Error{Reason: capture.NavigationFailed, Err: errors.New("net::ERR_FAILED")}}
	service := newTestService(t, metricsProvider, captureProvider)

	result, err := service.Analyze(context.Background(), testAddress, "eth")

	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Len(t, result.Failures, 3)
}

func TestService_Analyze_ValidationSkipsProviders(t *testing.T) {
	metricsProvider := &fakeMetricsProvider{}
	captureProvider := &fakeCaptureProvider{}
	service := newTestService(t, metricsProvider, captureProvider)

	tests := []struct {
		name    string
		address string
		chain   string
		reason  token.ValidationReason
	}{
		{"malformed address", "not-an-address", "eth", token.MalformedAddress},
		{"unsupported chain", testAddress, "sol", token.UnsupportedChain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := service.Analyze(context.Background(), tt.address, tt.chain)

			require.Error(t, err)
			assert.Nil(t, result)
			var valErr *token.ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, tt.reason, valErr.Reason)
		})
	}

	assert.Equal(t, int32(0), metricsProvider.calls.Load())
	assert.Equal(t, int32(0), captureProvider.calls.Load())
}

func TestService_Analyze_DeduplicatesConcurrentRequests(t *testing.T) {
	gate := make(chan struct{})
	metricsProvider := &fakeMetricsProvider{outcome: fullOutcome(), gate: gate}
	captureProvider := &fakeCaptureProvider{artifact: &capture.Artifact{PNG: []byte("png")}}
	service := newTestService(t, metricsProvider, captureProvider)

	const callers = 8
	results := make([]*Result, callers)

	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			result, err := service.Analyze(context.Background(), testAddress, "eth")
			require.NoError(t, err)
			results[i] = result
		}(i)
	}
	started.Wait()

	// Release the in-flight computation once every caller has attached
	time.Sleep(50 * time.Millisecond)
	close(gate)
	done.Wait()

	assert.Equal(t, int32(1), metricsProvider.calls.Load())
	assert.Equal(t, int32(1), captureProvider.calls.Load())
	for i := 1; i < callers; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestService_Analyze_ServesCachedResult(t *testing.T) {
	metricsProvider := &fakeMetricsProvider{outcome: fullOutcome()}
	captureProvider := &fakeCaptureProvider{artifact: &capture.Artifact{PNG: []byte("png")}}
	service := newTestService(t, metricsProvider, captureProvider)

	first, err := service.Analyze(context.Background(), testAddress, "eth")
	require.NoError(t, err)
	second, err := service.Analyze(context.Background(), testAddress, "eth")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), metricsProvider.calls.Load())
}

func TestService_Analyze_FailedResultNotCached(t *testing.T) {
	metricsProvider := &fakeMetricsProvider{}
	captureProvider := &fakeCaptureProvider{err: &capture.Error{Reason: capture.PoolExhausted, Err: errors.New("no session available")}}
	service := newTestService(t, metricsProvider, captureProvider)

	first, err := service.Analyze(context.Background(), testAddress, "eth")
	require.NoError(t, err)
	require.Equal(t, StatusFailed, first.Status)

	second, err := service.Analyze(context.Background(), testAddress, "eth")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, int32(2), metricsProvider.calls.Load())
}

func TestService_Analyze_SurvivesCallerCancellation(t *testing.T) {
	gate := make(chan struct{})
	metricsProvider := &fakeMetricsProvider{outcome: fullOutcome(), gate: gate}
	captureProvider := &fakeCaptureProvider{artifact: &capture.Artifact{PNG: []byte("png")}}
	service := newTestService(t, metricsProvider, captureProvider)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	var done sync.WaitGroup
	done.Add(1)
	go func() {
		defer done.Done()
		service.Analyze(firstCtx, testAddress, "eth") //nolint:errcheck
	}()

	var second *Result
	var secondErr error
	done.Add(1)
	go func() {
		defer done.Done()
		time.Sleep(20 * time.Millisecond)
		cancelFirst()
		close(gate)
	}()

	second, secondErr = service.Analyze(context.Background(), testAddress, "eth")
	done.Wait()

	require.NoError(t, secondErr)
	assert.Equal(t, StatusComplete, second.Status)
}

func TestService_SubscribeOnAnalysis(t *testing.T) {
	metricsProvider := &fakeMetricsProvider{outcome: fullOutcome()}
	captureProvider := &fakeCaptureProvider{artifact: &capture.Artifact{PNG: []byte("png")}}
	service := newTestService(t, metricsProvider, captureProvider)

	sub := service.SubscribeOnAnalysis()
	defer sub.Cancel()

	_, err := service.Analyze(context.Background(), testAddress, "eth")
	require.NoError(t, err)

	select {
	case <-sub.Chan():
	case <-time.After(time.Second):
		t.Fatal("expected an analysis notification")
	}
}
