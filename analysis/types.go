package analysis

import (
	"time"

	"github.com/tokenlens/tokenlens/aggregator"
	"github.com/tokenlens/tokenlens/bubblemaps"
	"github.com/tokenlens/tokenlens/capture"
	"github.com/tokenlens/tokenlens/coingecko"
	"github.com/tokenlens/tokenlens/token"
)

// Status is the overall outcome of one analysis
type Status string

const (
	// StatusComplete means market, holders and capture all succeeded
	StatusComplete Status = "complete"
	// StatusPartial means at least one section succeeded but not all
	StatusPartial Status = "partial"
	// StatusFailed means nothing usable was produced
	StatusFailed Status = "failed"
)

// Result is the sole externally visible output of the pipeline. It is
// immutable once composed; consumers must not mutate it, since attached
// callers of a deduplicated request share the same instance.
type Result struct {
	RequestID  string                    `json:"request_id"`
	Token      token.Ref                 `json:"token"`
	Market     *coingecko.MarketSnapshot `json:"market,omitempty"`
	Holders    *bubblemaps.HolderMetrics `json:"holders,omitempty"`
	Capture    *capture.Artifact         `json:"capture,omitempty"`
	Status     Status                    `json:"status"`
	Failures   []aggregator.Failure      `json:"failures,omitempty"`
	FinishedAt time.Time                 `json:"finished_at"`
}
