package channel

import (
	"context"
	"sync"

	"github.com/Shibarkan/cafe/internal/domain"
)

// Channel is the remote home of the singleton shared order, readable and writable by every
// device, with push notification of changes.
// Consumers define this interface, not the backends.
type Channel interface {
	// Upsert replaces the singleton document.
	Upsert(ctx context.Context, state *domain.SharedOrderState) error
	// Fetch returns the current document or domain.ErrOrderNotFound.
	Fetch(ctx context.Context) (*domain.SharedOrderState, error)
	Delete(ctx context.Context) error
	// Subscribe calls onChange for every change until the subscription is closed or drops.
	Subscribe(ctx context.Context, onChange func(Change)) (*Subscription, error)
}

// Change carries the new document, or Deleted when the document was removed.
type Change struct {
	State   *domain.SharedOrderState
	Deleted bool
}

// Subscription is a live push subscription. Done is closed when it ends; Err then tells
// whether it was closed (nil) or dropped (wraps domain.ErrSubscriptionDropped).
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	err    error
}

func newSubscription(cancel context.CancelFunc) *Subscription {
	return &Subscription{
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.finish(nil)
}

func (s *Subscription) finish(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		s.cancel()
		close(s.done)
	})
}
