package analysis

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/tokenlens/tokenlens/aggregator"
	"github.com/tokenlens/tokenlens/cache"
	"github.com/tokenlens/tokenlens/capture"
	"github.com/tokenlens/tokenlens/config"
	"github.com/tokenlens/tokenlens/events"
	"github.com/tokenlens/tokenlens/metrics"
	"github.com/tokenlens/tokenlens/token"
)

// MetricsProvider is the aggregator seen by the coordinator
type MetricsProvider interface {
	Fetch(ctx context.Context, ref token.Ref) aggregator.Outcome
}

// CaptureProvider is the capture engine seen by the coordinator
type CaptureProvider interface {
	Capture(ctx context.Context, ref token.Ref) (*capture.Artifact, error)
}

// Service is the request coordinator. It validates requests, deduplicates
// concurrent identical ones, runs metrics aggregation and capture
// concurrently under one deadline and composes the final result.
type Service struct {
	cfg                 config.AnalysisConfig
	validator           *token.Validator
	metricsProvider     MetricsProvider
	captureProvider     CaptureProvider
	results             *cache.Cache
	inflight            singleflight.Group
	subscriptionManager *events.SubscriptionManager
}

// NewService wires the coordinator over its collaborators
func NewService(cfg *config.Config, validator *token.Validator, metricsProvider MetricsProvider, captureProvider CaptureProvider) *Service {
	return &Service{
		cfg:                 cfg.Analysis,
		validator:           validator,
		metricsProvider:     metricsProvider,
		captureProvider:     captureProvider,
		results:             cache.New(cfg.Analysis.ResultTTL, 2*cfg.Analysis.ResultTTL),
		subscriptionManager: events.NewSubscriptionManager(),
	}
}

// Start implements core.Interface
func (s *Service) Start(ctx context.Context) error {
	if s.metricsProvider == nil || s.captureProvider == nil {
		return fmt.Errorf("analysis service dependencies not provided")
	}
	return nil
}

// Stop implements core.Interface
func (s *Service) Stop() {
	s.results.Flush()
}

// SubscribeOnAnalysis returns a subscription notified whenever an analysis
// finalizes.
func (s *Service) SubscribeOnAnalysis() events.ISubscription {
	return s.subscriptionManager.Subscribe()
}

// Analyze runs the pipeline for a raw (address, chain) pair. Validation
// failures return a *token.ValidationError and touch no upstream service.
// Everything else finalizes into a Result: sub-component failures show up
// as absent fields and entries in Result.Failures, never as an error.
//
// Concurrent calls for the same token attach to one in-flight computation
// and receive the identical Result.
func (s *Service) Analyze(ctx context.Context, rawAddress, rawChain string) (*Result, error) {
	ref, err := s.validator.Validate(rawAddress, rawChain)
	if err != nil {
		return nil, err
	}
	key := ref.Key()

	if cached, ok := s.results.Get(key); ok {
		return cached.(*Result), nil
	}

	value, err, shared := s.inflight.Do(key, func() (interface{}, error) {
		// The computation runs detached from the first caller's context so
		// that its cancellation cannot strand the attached callers. The
		// per-request deadline still bounds every sub-operation.
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.RequestDeadline)
		defer cancel()
		return s.run(runCtx, ref), nil
	})
	if err != nil {
		// The run func never returns an error; this is unreachable.
		return nil, err
	}
	if shared {
		log.Printf("Analysis: %s served by an already in-flight request", ref)
	}
	return value.(*Result), nil
}

// run executes one deduplicated analysis: metrics fetch and capture in
// parallel, then composition.
func (s *Service) run(ctx context.Context, ref token.Ref) *Result {
	start := time.Now()
	requestID := uuid.NewString()
	log.Printf("Analysis: %s starting (request %s)", ref, requestID)

	var (
		outcome    aggregator.Outcome
		artifact   *capture.Artifact
		captureErr error
		wg         sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		outcome = s.metricsProvider.Fetch(ctx, ref)
	}()
	go func() {
		defer wg.Done()
		artifact, captureErr = s.captureProvider.Capture(ctx, ref)
	}()
	wg.Wait()

	result := compose(requestID, ref, outcome, artifact, captureErr)

	// Failed results are not cached: the next request should retry
	if result.Status != StatusFailed {
		s.results.Set(ref.Key(), result, s.cfg.ResultTTL)
	}

	metrics.RecordAnalysis(string(result.Status), start)
	s.subscriptionManager.Emit(context.Background())
	return result
}
