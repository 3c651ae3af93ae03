package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenlens/tokenlens/aggregator"
	"github.com/tokenlens/tokenlens/bubblemaps"
	"github.com/tokenlens/tokenlens/capture"
	"github.com/tokenlens/tokenlens/coingecko"
	"github.com/tokenlens/tokenlens/token"
	"github.com/tokenlens/tokenlens/upstream"
)

var composeRef = token.Ref{Address: "0xabc", Chain: "eth"}

func TestCompose_StatusMatrix(t *testing.T) {
	market := &coingecko.MarketSnapshot{PriceUSD: 1}
	holders := &bubblemaps.HolderMetrics{Symbol: "TKN"}
	artifact := &capture.Artifact{PNG: []byte("png")}
	captureErr := &capture.Error{Reason: capture.RenderTimeout, Err: errors.New("marker never appeared")}

	tests := []struct {
		name       string
		outcome    aggregator.Outcome
		artifact   *capture.Artifact
		captureErr error
		want       Status
	}{
		{
			name:     "everything succeeded",
			outcome:  aggregator.Outcome{Market: market, Holders: holders},
			artifact: artifact,
			want:     StatusComplete,
		},
		{
			name:     "holders missing",
			outcome:  aggregator.Outcome{Market: market},
			artifact: artifact,
			want:     StatusPartial,
		},
		{
			name:     "market missing",
			outcome:  aggregator.Outcome{Holders: holders},
			artifact: artifact,
			want:     StatusPartial,
		},
		{
			name:       "capture failed but metrics succeeded",
			outcome:    aggregator.Outcome{Market: market, Holders: holders},
			captureErr: captureErr,
			want:       StatusPartial,
		},
		{
			name:     "metrics all failed but capture succeeded",
			outcome:  aggregator.Outcome{},
			artifact: artifact,
			want:     StatusPartial,
		},
		{
			name:       "nothing succeeded",
			outcome:    aggregator.Outcome{},
			captureErr: captureErr,
			want:       StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := compose("req-1", composeRef, tt.outcome, tt.artifact, tt.captureErr)

			assert.Equal(t, tt.want, result.Status)
			assert.Equal(t, composeRef, result.Token)
			assert.Equal(t, "req-1", result.RequestID)
			assert.False(t, result.FinishedAt.IsZero())
		})
	}
}

func TestCompose_CaptureFailureEntry(t *testing.T) {
	outcome := aggregator.Outcome{
		Failures: []aggregator.Failure{
			{Source: coingecko.Source, Kind: upstream.Transient, Detail: "timeout"},
		},
	}
	captureErr := &capture.Error{Reason: capture.PoolExhausted, Err: context.DeadlineExceeded}

	result := compose("req-2", composeRef, outcome, nil, captureErr)

	require.Len(t, result.Failures, 2)
	assert.Equal(t, CaptureSource, result.Failures[1].Source)
	assert.Equal(t, upstream.ErrorKind(capture.PoolExhausted), result.Failures[1].Kind)
}

func TestCompose_PlainDeadlineCountsAsTransient(t *testing.T) {
	result := compose("req-3", composeRef, aggregator.Outcome{}, nil, context.DeadlineExceeded)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, CaptureSource, result.Failures[0].Source)
	assert.Equal(t, upstream.Transient, result.Failures[0].Kind)
}

func TestCompose_DiscardsArtifactOnCaptureError(t *testing.T) {
	// A capture error and a non-nil artifact cannot both be meaningful
	artifact := &capture.Artifact{PNG: []byte("png")}
	result := compose("req-4", composeRef, aggregator.Outcome{}, artifact,
		&capture.Error{Reason: capture.ScreenshotFailed, Err: errors.New("boom")})

	assert.Nil(t, result.Capture)
	assert.Equal(t, StatusFailed, result.Status)
}
