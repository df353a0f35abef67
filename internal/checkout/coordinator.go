// Package checkout commits the shared order as a permanent transaction and resets it.
package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Shibarkan/cafe/internal/domain"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

type TransactionStore interface {
	InsertTransaction(ctx context.Context, tx *domain.Transaction) error
	InsertTransactionItems(ctx context.Context, tx *domain.Transaction) error
}

type TransactionLog interface {
	AppendTransaction(ctx context.Context, tx *domain.Transaction) error
}

type Cart interface {
	Snapshot() domain.SharedOrderState
	Reset()
}

type Flagger interface {
	RaisePaymentFlag() error
}

// OrderWriter sends the shared order remotely, ordered after any write already in flight.
type OrderWriter interface {
	Flush(ctx context.Context, state *domain.SharedOrderState) error
}

type EventPublisher interface {
	PublishTransaction(ctx context.Context, tx *domain.Transaction) error
}

// Dependencies wires the coordinator. Publisher may be nil.
type Dependencies struct {
	Store     TransactionStore
	Log       TransactionLog
	Cart      Cart
	Flag      Flagger
	Writer    OrderWriter
	Publisher EventPublisher
}

// defaultSettleTimeout bounds the cleanup after a commit. Cleanup is detached from the
// caller's context: once the sale is committed it must not be cut short by the caller leaving.
const defaultSettleTimeout = 30 * time.Second

// Coordinator runs one checkout at a time: Idle -> Committing -> Settled. Only the two
// remote inserts decide success; everything after them is best effort.
type Coordinator struct {
	deps          Dependencies
	log           *logrus.Entry
	now           func() time.Time
	newBackOff    func() backoff.BackOff
	settleTimeout time.Duration

	mu      sync.Mutex
	status  domain.CheckoutStatus
	pending *domain.Transaction
}

func NewCoordinator(deps Dependencies, log *logrus.Entry) *Coordinator {
	return &Coordinator{
		deps:          deps,
		log:           log,
		now:           time.Now,
		newBackOff:    defaultBackOff,
		settleTimeout: defaultSettleTimeout,
		status:        domain.CheckoutStatusIdle,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 10 * time.Second
	return backoff.WithMaxRetries(b, 4)
}

func (c *Coordinator) Status() domain.CheckoutStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Checkout commits the current cart. An empty cart returns domain.ErrEmptyCart and touches
// nothing. When the transaction cannot be persisted the cart is left as it was and the error
// wraps domain.ErrCheckoutPersist; a later attempt with the same cart reuses the transaction id.
func (c *Coordinator) Checkout(ctx context.Context) (*domain.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := c.deps.Cart.Snapshot()
	if snapshot.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	if c.status == domain.CheckoutStatusSettled {
		if err := c.transition(domain.CheckoutStatusIdle); err != nil {
			return nil, err
		}
	}
	if err := c.transition(domain.CheckoutStatusCommitting); err != nil {
		return nil, err
	}

	tx, err := c.prepare(snapshot)
	if err != nil {
		c.rollback()
		return nil, err
	}

	log := c.log.WithFields(logrus.Fields{
		"transaction_id": tx.ID,
		"total":          tx.Total,
	})

	if err := c.persist(ctx, tx); err != nil {
		c.rollback()
		log.WithError(err).Error("checkout could not be persisted, cart kept")
		return nil, fmt.Errorf("%w: %w", domain.ErrCheckoutPersist, err)
	}

	c.pending = nil
	if err := c.transition(domain.CheckoutStatusSettled); err != nil {
		return nil, err
	}
	log.Info("transaction committed")

	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.settleTimeout)
	defer cancel()
	c.settle(settleCtx, tx, log)
	return tx, nil
}

// prepare reuses the transaction of a failed attempt when the cart has not changed since.
func (c *Coordinator) prepare(snapshot domain.SharedOrderState) (*domain.Transaction, error) {
	if c.pending != nil && domain.LinesEqual(c.pending.Lines, snapshot.Lines) {
		return c.pending, nil
	}

	tx, err := domain.NewTransaction(snapshot.Lines, c.now().UTC())
	if err != nil {
		return nil, err
	}
	c.pending = tx
	return tx, nil
}

func (c *Coordinator) persist(ctx context.Context, tx *domain.Transaction) error {
	if err := c.retry(ctx, "insert transaction", func(ctx context.Context) error {
		return c.deps.Store.InsertTransaction(ctx, tx)
	}); err != nil {
		return err
	}
	return c.retry(ctx, "insert transaction items", func(ctx context.Context) error {
		return c.deps.Store.InsertTransactionItems(ctx, tx)
	})
}

func (c *Coordinator) settle(ctx context.Context, tx *domain.Transaction, log *logrus.Entry) {
	if err := c.retry(ctx, "append local log", func(ctx context.Context) error {
		return c.deps.Log.AppendTransaction(ctx, tx)
	}); err != nil {
		log.WithError(err).Warn("failed to append transaction to local log")
	}

	if err := c.retry(ctx, "raise payment flag", func(context.Context) error {
		return c.deps.Flag.RaisePaymentFlag()
	}); err != nil {
		log.WithError(err).Warn("failed to raise payment flag")
	}

	c.deps.Cart.Reset()
	empty := domain.NewSharedOrder(nil, c.now().UTC())
	if err := c.retry(ctx, "reset shared order", func(ctx context.Context) error {
		return c.deps.Writer.Flush(ctx, &empty)
	}); err != nil {
		log.WithError(err).Warn("failed to reset shared order remotely")
	}

	if c.deps.Publisher != nil {
		if err := c.retry(ctx, "publish transaction", func(ctx context.Context) error {
			return c.deps.Publisher.PublishTransaction(ctx, tx)
		}); err != nil {
			log.WithError(err).Warn("failed to publish transaction event")
		}
	}
}

func (c *Coordinator) retry(ctx context.Context, step string, op func(ctx context.Context) error) error {
	b := backoff.WithContext(c.newBackOff(), ctx)
	return backoff.RetryNotify(func() error {
		return op(ctx)
	}, b, func(err error, wait time.Duration) {
		c.log.WithError(err).WithField("step", step).Debugf("step failed, retrying in %s", wait)
	})
}

// transition must be called with c.mu held.
func (c *Coordinator) transition(to domain.CheckoutStatus) error {
	if !domain.CanTransitionTo(c.status, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, c.status, to)
	}
	c.status = to
	return nil
}

func (c *Coordinator) rollback() {
	if err := c.transition(domain.CheckoutStatusIdle); err != nil {
		c.log.WithError(err).Error("failed to roll back checkout status")
	}
}
