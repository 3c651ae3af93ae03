package analysis

import (
	"errors"
	"time"

	"github.com/tokenlens/tokenlens/aggregator"
	"github.com/tokenlens/tokenlens/capture"
	"github.com/tokenlens/tokenlens/token"
	"github.com/tokenlens/tokenlens/upstream"
)

// CaptureSource names the capture engine in failure sets
const CaptureSource = "capture"

// compose is the pure transformation from aggregated data plus the capture
// outcome into the final result. No I/O; the status rules are:
//
//	Complete: market, holders and capture all succeeded
//	Failed:   capture failed and both metric sources failed
//	Partial:  everything in between
func compose(requestID string, ref token.Ref, outcome aggregator.Outcome, artifact *capture.Artifact, captureErr error) *Result {
	failures := outcome.Failures
	if captureErr != nil {
		artifact = nil
		failures = append(failures, captureFailure(captureErr))
	}

	var status Status
	switch {
	case outcome.Market != nil && outcome.Holders != nil && artifact != nil:
		status = StatusComplete
	case outcome.Market == nil && outcome.Holders == nil && artifact == nil:
		status = StatusFailed
	default:
		status = StatusPartial
	}

	return &Result{
		RequestID:  requestID,
		Token:      ref,
		Market:     outcome.Market,
		Holders:    outcome.Holders,
		Capture:    artifact,
		Status:     status,
		Failures:   failures,
		FinishedAt: time.Now(),
	}
}

// captureFailure converts a capture error into a failure entry. The error
// kind carries the capture reason; a plain deadline expiry counts as
// transient.
func captureFailure(err error) aggregator.Failure {
	kind := upstream.Transient
	var capErr *capture.Error
	if errors.As(err, &capErr) {
		kind = upstream.ErrorKind(capErr.Reason)
	}
	return aggregator.Failure{
		Source: CaptureSource,
		Kind:   kind,
		Detail: err.Error(),
	}
}
