package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/Shibarkan/cafe/internal/domain"
)

// MemoryChannel keeps the shared order in process memory. It serves single-host setups
// and tests; Disconnect simulates a network drop of every subscriber.
type MemoryChannel struct {
	mu   sync.RWMutex
	doc  *domain.SharedOrderState
	subs map[uint64]memorySubscriber
	next uint64
}

type memorySubscriber struct {
	sub      *Subscription
	onChange func(Change)
}

func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{subs: make(map[uint64]memorySubscriber)}
}

func (m *MemoryChannel) Upsert(ctx context.Context, state *domain.SharedOrderState) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to upsert order: %w", err)
	}

	doc := cloneOrder(state)
	m.mu.Lock()
	m.doc = doc
	targets := m.targets()
	m.mu.Unlock()

	for _, t := range targets {
		t.deliver(Change{State: cloneOrder(doc)})
	}
	return nil
}

func (m *MemoryChannel) Fetch(ctx context.Context) (*domain.SharedOrderState, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch order: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.doc == nil {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(m.doc), nil
}

func (m *MemoryChannel) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}

	m.mu.Lock()
	m.doc = nil
	targets := m.targets()
	m.mu.Unlock()

	for _, t := range targets {
		t.deliver(Change{Deleted: true})
	}
	return nil
}

func (m *MemoryChannel) Subscribe(ctx context.Context, onChange func(Change)) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := newSubscription(cancel)

	m.mu.Lock()
	m.next++
	id := m.next
	m.subs[id] = memorySubscriber{sub: sub, onChange: onChange}
	m.mu.Unlock()

	go func() {
		<-subCtx.Done()
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
		sub.finish(nil)
	}()

	return sub, nil
}

// Disconnect drops every live subscription.
func (m *MemoryChannel) Disconnect() {
	m.mu.Lock()
	targets := m.targets()
	m.mu.Unlock()

	for _, t := range targets {
		t.sub.finish(fmt.Errorf("%w: memory channel disconnected", domain.ErrSubscriptionDropped))
	}
}

// Subscribers counts live subscriptions.
func (m *MemoryChannel) Subscribers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, s := range m.subs {
		select {
		case <-s.sub.Done():
		default:
			n++
		}
	}
	return n
}

// targets must be called with m.mu held.
func (m *MemoryChannel) targets() []memorySubscriber {
	out := make([]memorySubscriber, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s)
	}
	return out
}

func (s memorySubscriber) deliver(c Change) {
	select {
	case <-s.sub.Done():
		return
	default:
	}
	s.onChange(c)
}

func cloneOrder(state *domain.SharedOrderState) *domain.SharedOrderState {
	doc := domain.NewSharedOrder(state.Lines, state.UpdatedAt)
	return &doc
}
