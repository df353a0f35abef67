// Package observer keeps a read-only view of the shared order current, fed by the device's
// other tabs and by the remote push channel.
package observer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Shibarkan/cafe/internal/channel"
	"github.com/Shibarkan/cafe/internal/domain"
	"github.com/Shibarkan/cafe/internal/localstore"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// View displays the order. Calls are serialized.
type View interface {
	Render(state domain.SharedOrderState)
	ConfirmPayment()
}

type LocalTab interface {
	LoadOrder() (*domain.SharedOrderState, error)
	MirrorOrder(state *domain.SharedOrderState) (bool, error)
	ConsumePaymentFlag() (bool, error)
	Subscribe(fn func(localstore.Event)) (unsubscribe func())
}

type Remote interface {
	Fetch(ctx context.Context) (*domain.SharedOrderState, error)
	Subscribe(ctx context.Context, onChange func(channel.Change)) (*channel.Subscription, error)
}

type Subscriber struct {
	tab        LocalTab
	remote     Remote
	view       View
	log        *logrus.Entry
	newBackOff func() backoff.BackOff
	fetches    singleflight.Group

	mu          sync.Mutex
	rendered    *domain.SharedOrderState
	active      bool
	unsubscribe func()
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewSubscriber(tab LocalTab, remote Remote, view View, log *logrus.Entry) *Subscriber {
	return &Subscriber{
		tab:        tab,
		remote:     remote,
		view:       view,
		log:        log,
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Activate renders the last local snapshot, shows a pending payment confirmation once and
// starts listening on both channels. It returns without waiting for the remote.
func (s *Subscriber) Activate(ctx context.Context) error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return errors.New("subscriber already active")
	}
	s.active = true
	s.mu.Unlock()

	state, err := s.tab.LoadOrder()
	if err != nil {
		s.log.WithError(err).Warn("failed to load local order, starting empty")
		empty := domain.NewSharedOrder(nil, time.Time{})
		state = &empty
	}
	s.render(state, true)
	s.consumeFlag()

	loopCtx, cancel := context.WithCancel(ctx)
	unsubscribe := s.tab.Subscribe(s.onLocalEvent)
	done := make(chan struct{})

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.remoteLoop(loopCtx, done)
	return nil
}

// Close detaches from both channels and waits for the remote loop to stop.
func (s *Subscriber) Close() {
	s.mu.Lock()
	if !s.active || s.done == nil {
		s.mu.Unlock()
		return
	}
	s.active = false
	unsubscribe, cancel, done := s.unsubscribe, s.cancel, s.done
	s.unsubscribe, s.cancel, s.done = nil, nil, nil
	s.mu.Unlock()

	unsubscribe()
	cancel()
	<-done
}

// Rendered is the state currently shown.
func (s *Subscriber) Rendered() domain.SharedOrderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rendered == nil {
		return domain.NewSharedOrder(nil, time.Time{})
	}
	return domain.NewSharedOrder(s.rendered.Lines, s.rendered.UpdatedAt)
}

func (s *Subscriber) onLocalEvent(ev localstore.Event) {
	switch ev.Key {
	case localstore.KeySharedOrder:
		if ev.Removed {
			s.renderEmpty()
			return
		}
		state, err := domain.DecodeOrder([]byte(ev.NewValue))
		if err != nil {
			s.log.WithError(err).Warn("ignoring unreadable local order")
			return
		}
		s.render(state, false)
	case localstore.KeyPaymentSuccess:
		if !ev.Removed {
			s.consumeFlag()
		}
	}
}

func (s *Subscriber) onRemoteChange(c channel.Change) {
	if c.Deleted {
		if state, ok := s.renderEmpty(); ok {
			s.mirror(state)
		}
		return
	}
	if s.render(c.State, false) {
		s.mirror(c.State)
	}
}

// render replaces the shown order with state unless state is older than it or has the
// same lines. It reports whether the view was updated.
func (s *Subscriber) render(state *domain.SharedOrderState, force bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !force && s.rendered != nil {
		if state.UpdatedAt.Before(s.rendered.UpdatedAt) {
			return false
		}
		if domain.LinesEqual(state.Lines, s.rendered.Lines) {
			s.rendered.UpdatedAt = state.UpdatedAt
			return false
		}
	}

	next := domain.NewSharedOrder(state.Lines, state.UpdatedAt)
	s.rendered = &next
	s.view.Render(domain.NewSharedOrder(next.Lines, next.UpdatedAt))
	return true
}

func (s *Subscriber) renderEmpty() (*domain.SharedOrderState, bool) {
	s.mu.Lock()
	var at time.Time
	if s.rendered != nil {
		at = s.rendered.UpdatedAt
	}
	s.mu.Unlock()

	empty := domain.NewSharedOrder(nil, at)
	return &empty, s.render(&empty, false)
}

// mirror copies a remote state into the device store so the device's other tabs converge.
// A newer order written on this device meanwhile is kept.
func (s *Subscriber) mirror(state *domain.SharedOrderState) {
	written, err := s.tab.MirrorOrder(state)
	if err != nil {
		s.log.WithError(err).Warn("failed to mirror remote order locally")
		return
	}
	if !written {
		s.log.WithField("updated_at", state.UpdatedAt).Debug("device holds a newer order, mirror skipped")
	}
}

func (s *Subscriber) consumeFlag() {
	seen, err := s.tab.ConsumePaymentFlag()
	if err != nil {
		s.log.WithError(err).Warn("failed to read payment flag")
		return
	}
	if !seen {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.ConfirmPayment()
}

func (s *Subscriber) remoteLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	b := backoff.WithContext(s.newBackOff(), ctx)
	for {
		sub, err := s.remote.Subscribe(ctx, s.onRemoteChange)
		if err == nil {
			b.Reset()
			s.catchUp(ctx)

			select {
			case <-ctx.Done():
				sub.Close()
				return
			case <-sub.Done():
			}
			if ctx.Err() != nil {
				return
			}
			s.log.WithError(sub.Err()).Warn("remote subscription dropped, reconnecting")
		} else {
			if ctx.Err() != nil {
				return
			}
			s.log.WithError(err).Warn("failed to subscribe to remote order")
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// catchUp fetches the remote order once a subscription is live, covering changes made
// while disconnected.
func (s *Subscriber) catchUp(ctx context.Context) {
	v, err, _ := s.fetches.Do("order", func() (any, error) {
		return s.remote.Fetch(ctx)
	})
	if errors.Is(err, domain.ErrOrderNotFound) {
		return
	}
	if err != nil {
		s.log.WithError(err).Warn("failed to fetch remote order")
		return
	}
	s.onRemoteChange(channel.Change{State: v.(*domain.SharedOrderState)})
}
