package aggregator

import (
	"context"
	"log"
	"sync"

	"github.com/tokenlens/tokenlens/bubblemaps"
	"github.com/tokenlens/tokenlens/coingecko"
	"github.com/tokenlens/tokenlens/token"
	"github.com/tokenlens/tokenlens/upstream"
)

//go:generate mockgen -destination=mocks/providers.go -package=mocks . MarketProvider,HolderProvider

// MarketProvider fetches the market snapshot for a token
type MarketProvider interface {
	FetchMarket(ctx context.Context, ref token.Ref) (*coingecko.MarketSnapshot, error)
}

// HolderProvider fetches the holder/decentralization metrics for a token
type HolderProvider interface {
	FetchHolders(ctx context.Context, ref token.Ref) (*bubblemaps.HolderMetrics, error)
}

// Failure names one failed source and its error kind
type Failure struct {
	Source string             `json:"source"`
	Kind   upstream.ErrorKind `json:"kind"`
	Detail string             `json:"detail"`
}

// Outcome carries whichever provider results succeeded plus the failures.
// Both fields may be nil; Failures then explains why.
type Outcome struct {
	Market   *coingecko.MarketSnapshot
	Holders  *bubblemaps.HolderMetrics
	Failures []Failure
}

// Service issues the market and holder calls concurrently and merges the
// results. The two provider outcomes are independent: failure of one never
// blocks or invalidates the other, and Fetch itself never fails.
type Service struct {
	market  MarketProvider
	holders HolderProvider
}

// New creates a metrics aggregator over the two providers
func New(market MarketProvider, holders HolderProvider) *Service {
	return &Service{market: market, holders: holders}
}

// Fetch pulls both providers under ctx's deadline and returns whatever
// succeeded. Retries for transient failures happen inside the providers.
func (s *Service) Fetch(ctx context.Context, ref token.Ref) Outcome {
	var (
		outcome   Outcome
		marketErr error
		holderErr error
		wg        sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		outcome.Market, marketErr = s.market.FetchMarket(ctx, ref)
	}()
	go func() {
		defer wg.Done()
		outcome.Holders, holderErr = s.holders.FetchHolders(ctx, ref)
	}()
	wg.Wait()

	if marketErr != nil {
		log.Printf("Aggregator: market fetch failed for %s: %v", ref, marketErr)
		outcome.Market = nil
		outcome.Failures = append(outcome.Failures, toFailure(coingecko.Source, marketErr))
	}
	if holderErr != nil {
		log.Printf("Aggregator: holder fetch failed for %s: %v", ref, holderErr)
		outcome.Holders = nil
		outcome.Failures = append(outcome.Failures, toFailure(bubblemaps.Source, holderErr))
	}

	return outcome
}

func toFailure(source string, err error) Failure {
	return Failure{
		Source: source,
		Kind:   upstream.KindOf(err),
		Detail: err.Error(),
	}
}
