package capture

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tokenlens/tokenlens/config"
	"github.com/tokenlens/tokenlens/metrics"
	"github.com/tokenlens/tokenlens/token"
)

// Engine owns the session pool and turns a token ref into a rendered
// bubble-map screenshot.
type Engine struct {
	pool       *Pool
	cfg        config.CaptureConfig
	appBaseURL string
	chains     config.ChainTable
}

// NewEngine creates a capture engine over launcher with a pool of
// cfg.Capture.PoolSize sessions.
func NewEngine(cfg *config.Config, launcher Launcher) *Engine {
	return &Engine{
		pool:       NewPool(launcher, cfg.Capture.PoolSize),
		cfg:        cfg.Capture,
		appBaseURL: cfg.Bubblemaps.AppBaseURL,
		chains:     cfg.Chains,
	}
}

// MapURL builds the bubble-map page URL for ref
func (e *Engine) MapURL(ref token.Ref) string {
	segment := ref.Chain
	if chain, ok := e.chains[ref.Chain]; ok {
		segment = chain.MapSegment
	}
	return fmt.Sprintf("%s/%s/token/%s", e.appBaseURL, segment, ref.Address)
}

// Capture navigates a pooled session to the token's map page, waits for
// the visualization to finish rendering and screenshots the viewport.
// The session returns to the pool on every exit path; a session that
// errored mid-flight is discarded and replaced instead of being reused.
func (e *Engine) Capture(ctx context.Context, ref token.Ref) (*Artifact, error) {
	start := time.Now()

	browser, err := e.pool.Acquire(ctx)
	if err != nil {
		metrics.RecordCapture(string(PoolExhausted), start)
		return nil, &Error{Reason: PoolExhausted, Err: err}
	}

	healthy := false
	defer func() {
		e.pool.Release(browser, healthy)
	}()

	mapURL := e.MapURL(ref)
	if err := browser.Navigate(ctx, mapURL); err != nil {
		metrics.RecordCapture(string(NavigationFailed), start)
		return nil, &Error{Reason: NavigationFailed, Err: err}
	}

	// The render wait gets its own timeout, substantially shorter than the
	// request deadline, so a stuck page cannot eat the whole budget.
	renderCtx, cancel := context.WithTimeout(ctx, e.cfg.RenderTimeout)
	err = browser.WaitReady(renderCtx, e.cfg.RenderMarker)
	cancel()
	if err != nil {
		metrics.RecordCapture(string(RenderTimeout), start)
		return nil, &Error{Reason: RenderTimeout, Err: err}
	}

	// The marker appears before the force layout settles; give the
	// animation time to stabilize before screenshotting.
	if e.cfg.SettleDelay > 0 {
		timer := time.NewTimer(e.cfg.SettleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			metrics.RecordCapture(string(RenderTimeout), start)
			return nil, &Error{Reason: RenderTimeout, Err: ctx.Err()}
		case <-timer.C:
		}
	}

	png, err := browser.Screenshot(ctx)
	if err != nil {
		metrics.RecordCapture(string(ScreenshotFailed), start)
		return nil, &Error{Reason: ScreenshotFailed, Err: err}
	}

	healthy = true
	metrics.RecordCapture("success", start)
	log.Printf("Capture: %s captured in %.2fs (%d bytes)", ref, time.Since(start).Seconds(), len(png))

	return &Artifact{
		PNG:        png,
		Width:      e.cfg.ViewportWidth,
		Height:     e.cfg.ViewportHeight,
		CapturedAt: time.Now(),
	}, nil
}

// Start implements core.Interface. Sessions launch lazily on first
// capture, so nothing happens here.
func (e *Engine) Start(ctx context.Context) error {
	return nil
}

// Stop implements core.Interface and shuts the session pool down
func (e *Engine) Stop() {
	e.pool.Close()
}
