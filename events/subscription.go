package events

import (
	"context"
	"sync"
)

// ISubscription is one subscriber's handle on an event stream
type ISubscription interface {
	// Chan returns a read-only channel for self-handling events
	Chan() <-chan struct{}
	// Cancel unsubscribes and closes the channel. Safe for repeated calls
	Cancel()
	// Watch starts a goroutine that calls cb on each event. If callNow is
	// true, cb runs once immediately. The subscription cancels itself when
	// parentCtx finishes.
	Watch(parentCtx context.Context, cb func(), callNow bool) ISubscription
}

// ISubscriptionManager fans events out to subscribers
type ISubscriptionManager interface {
	Subscribe() ISubscription
	Unsubscribe(ch chan struct{})
	// Emit notifies all subscribers, skipping any whose channel is full
	Emit(ctx context.Context)
}

type Subscription struct {
	ch     chan struct{}
	mgr    *SubscriptionManager
	cancel context.CancelFunc
	once   sync.Once
}

func (s *Subscription) Chan() <-chan struct{} { return s.ch }

// Cancel unsubscribes and closes the channel. Safe for repeated calls.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.mgr.Unsubscribe(s.ch)
	})
}

// Watch starts a goroutine that calls cb on each event until parentCtx
// finishes.
func (s *Subscription) Watch(parentCtx context.Context, cb func(), callNow bool) ISubscription {
	ctx, cancel := context.WithCancel(parentCtx)
	s.cancel = cancel

	if callNow {
		cb()
	}

	go func() {
		defer s.Cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.ch:
				cb()
			}
		}
	}()

	return s
}

// SubscriptionManager is the concrete fan-out. Channels are buffered with
// one slot, so an idle subscriber coalesces bursts instead of blocking the
// emitter.
type SubscriptionManager struct {
	mu          sync.RWMutex
	subscribers map[chan struct{}]struct{}
}

func NewSubscriptionManager() *SubscriptionManager {
	return &SubscriptionManager{
		subscribers: make(map[chan struct{}]struct{}),
	}
}

func (m *SubscriptionManager) Subscribe() ISubscription {
	ch := make(chan struct{}, 1)

	m.mu.Lock()
	m.subscribers[ch] = struct{}{}
	m.mu.Unlock()

	return &Subscription{ch: ch, mgr: m}
}

func (m *SubscriptionManager) Unsubscribe(ch chan struct{}) {
	m.mu.Lock()
	if _, ok := m.subscribers[ch]; ok {
		delete(m.subscribers, ch)
		close(ch)
	}
	m.mu.Unlock()
}

// Emit notifies all subscribers without blocking on any of them
func (m *SubscriptionManager) Emit(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for sub := range m.subscribers {
		select {
		case <-ctx.Done():
			return
		case sub <- struct{}{}:
		default:
		}
	}
}
