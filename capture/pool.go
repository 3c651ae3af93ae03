package capture

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/tokenlens/tokenlens/metrics"
)

// Pool is a bounded pool of reusable browser sessions. Sessions are
// launched lazily: each of the N slots starts empty and is filled on first
// acquire. A session that errored is discarded on release and its slot
// reverts to empty, so a corrupted browser state never poisons the pool.
type Pool struct {
	launcher Launcher
	slots    chan Browser

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool of at most size sessions
func NewPool(launcher Launcher, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	slots := make(chan Browser, size)
	for i := 0; i < size; i++ {
		slots <- nil
	}
	return &Pool{launcher: launcher, slots: slots}
}

// Acquire checks a session out of the pool, blocking until one is free or
// ctx expires. An empty slot is filled by launching a fresh session.
func (p *Pool) Acquire(ctx context.Context) (Browser, error) {
	select {
	case browser := <-p.slots:
		if browser == nil {
			launched, err := p.launcher.Launch(ctx)
			if err != nil {
				// Slot goes back empty so a later acquire can retry the launch
				p.slots <- nil
				return nil, fmt.Errorf("launching browser session: %w", err)
			}
			browser = launched
		}
		metrics.CaptureSessionsInUse.Inc()
		return browser, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a session to the pool. An unhealthy session is closed
// and its slot reverts to empty. Release must be called on every exit
// path after a successful Acquire.
func (p *Pool) Release(browser Browser, healthy bool) {
	metrics.CaptureSessionsInUse.Dec()

	if !healthy {
		if err := browser.Close(); err != nil {
			log.Printf("Capture: closing unhealthy session: %v", err)
		}
		browser = nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		if browser != nil {
			browser.Close()
		}
		return
	}
	p.slots <- browser
}

// Close drains the pool and closes every live session. Acquire calls
// racing with Close may still launch; their sessions are closed on release.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case browser := <-p.slots:
			if browser != nil {
				browser.Close()
			}
		default:
			return
		}
	}
}
