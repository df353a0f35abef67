// Package debounce coalesces bursts of cart mutations into one remote write.
package debounce

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Shibarkan/cafe/internal/domain"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

const (
	DefaultDelay   = 200 * time.Millisecond
	defaultTimeout = 5 * time.Second
)

type Upserter interface {
	Upsert(ctx context.Context, state *domain.SharedOrderState) error
}

// Writer holds the latest scheduled state and sends it once the quiet period passes
// without another Schedule. Sends happen in fire order and a send never overwrites
// a newer one.
type Writer struct {
	remote  Upserter
	delay   time.Duration
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[struct{}]
	log     *logrus.Entry
	now     func() time.Time

	mu      sync.Mutex
	timer   *time.Timer
	pending *domain.SharedOrderState
	gen     uint64
	stopped bool

	sendMu   sync.Mutex
	lastSent uint64
}

func NewWriter(remote Upserter, delay time.Duration, log *logrus.Entry) *Writer {
	if delay <= 0 {
		delay = DefaultDelay
	}

	st := gobreaker.Settings{
		Name:        "shared-order-writer",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnf("CircuitBreaker[%s] state changed from %s to %s", name, from, to)
		},
	}

	return &Writer{
		remote:  remote,
		delay:   delay,
		timeout: defaultTimeout,
		cb:      gobreaker.NewCircuitBreaker[struct{}](st),
		log:     log,
		now:     time.Now,
	}
}

// Schedule replaces the pending state and restarts the quiet period.
func (w *Writer) Schedule(state domain.SharedOrderState) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}

	pending := domain.NewSharedOrder(state.Lines, state.UpdatedAt)
	w.pending = &pending
	w.gen++
	gen := w.gen

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, func() { w.fire(gen) })
}

// Stop cancels the pending write and ignores later schedules. A send already in flight completes.
func (w *Writer) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = nil
	w.gen++
}

// Flush drops the pending write and sends state now, after any send already in flight.
// A send that fired before Flush can never land after it. The breaker is bypassed and the
// error returned, so the caller owns retries.
func (w *Writer) Flush(ctx context.Context, state *domain.SharedOrderState) error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = nil
	w.gen++
	gen := w.gen
	w.mu.Unlock()

	w.sendMu.Lock()
	defer w.sendMu.Unlock()

	if gen < w.lastSent {
		return nil
	}
	w.lastSent = gen

	if err := w.remote.Upsert(ctx, state); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRemoteWrite, err)
	}
	return nil
}

func (w *Writer) fire(gen uint64) {
	w.mu.Lock()
	if w.stopped || gen != w.gen || w.pending == nil {
		w.mu.Unlock()
		return
	}
	state := w.pending
	w.pending = nil
	w.timer = nil
	w.mu.Unlock()

	state.UpdatedAt = w.now().UTC()
	w.send(gen, state)
}

func (w *Writer) send(gen uint64, state *domain.SharedOrderState) {
	w.sendMu.Lock()
	defer w.sendMu.Unlock()

	if gen < w.lastSent {
		return
	}
	w.lastSent = gen

	_, err := w.cb.Execute(func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		return struct{}{}, w.remote.Upsert(ctx, state)
	})
	if err != nil {
		w.log.WithError(fmt.Errorf("%w: %w", domain.ErrRemoteWrite, err)).
			WithField("lines", len(state.Lines)).
			Error("failed to write shared order")
		return
	}

	w.log.WithFields(logrus.Fields{
		"lines": len(state.Lines),
		"total": state.Total(),
	}).Debug("shared order written")
}
