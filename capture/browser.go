package capture

import (
	"context"
	"fmt"
	"time"
)

// Browser is one headless browser session. The concrete automation
// technology lives behind this interface so the engine can be tested with
// a fake and the driver swapped without touching pool or engine code.
type Browser interface {
	// Navigate loads url in the session's page
	Navigate(ctx context.Context, url string) error
	// WaitReady polls until the element matching selector exists in the DOM
	WaitReady(ctx context.Context, selector string) error
	// Screenshot captures the rendered viewport as PNG bytes
	Screenshot(ctx context.Context) ([]byte, error)
	// Close tears the session down and releases its resources
	Close() error
}

// Launcher starts new browser sessions for the pool
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Artifact is one captured bubble-map image. Ownership transfers to the
// caller when Capture returns; the caller is responsible for disposal of
// anything derived from it.
type Artifact struct {
	PNG        []byte    `json:"-"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	CapturedAt time.Time `json:"captured_at"`
}

// Reason classifies a capture failure
type Reason string

const (
	PoolExhausted    Reason = "pool_exhausted"
	NavigationFailed Reason = "navigation_failed"
	RenderTimeout    Reason = "render_timeout"
	ScreenshotFailed Reason = "screenshot_failed"
)

// Error is a classified capture failure. Captures are never retried within
// one request; a failed capture yields a partial or failed result upstream.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("capture failed (%s): %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
