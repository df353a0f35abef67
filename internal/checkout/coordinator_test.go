package checkout

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Shibarkan/cafe/internal/cart"
	"github.com/Shibarkan/cafe/internal/channel"
	"github.com/Shibarkan/cafe/internal/debounce"
	"github.com/Shibarkan/cafe/internal/domain"
	"github.com/Shibarkan/cafe/internal/localstore"
	"github.com/Shibarkan/cafe/pkg/logger"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

type testDeps struct {
	store     *MockStore
	log       *MockLog
	cart      *MockCart
	flag      *MockFlagger
	writer    *MockWriter
	publisher *MockPublisher
}

func setupCoordinator(lines ...domain.CartLine) (*Coordinator, *testDeps) {
	deps := &testDeps{
		store:     &MockStore{},
		log:       &MockLog{},
		cart:      &MockCart{Lines: lines},
		flag:      &MockFlagger{},
		writer:    &MockWriter{},
		publisher: &MockPublisher{},
	}
	c := NewCoordinator(Dependencies{
		Store:     deps.store,
		Log:       deps.log,
		Cart:      deps.cart,
		Flag:      deps.flag,
		Writer:    deps.writer,
		Publisher: deps.publisher,
	}, logrus.NewEntry(logger.Discard()))
	c.now = func() time.Time { return testNow }
	c.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
	}
	return c, deps
}

func sampleLines() []domain.CartLine {
	return []domain.CartLine{
		{ProductID: 1, Name: "A", UnitPrice: 1000, Quantity: 2, Category: domain.CategoryFood},
		{ProductID: 2, Name: "B", UnitPrice: 500, Quantity: 1, Category: domain.CategoryDrink},
	}
}

func TestCheckout_Success(t *testing.T) {
	c, deps := setupCoordinator(sampleLines()...)

	tx, err := c.Checkout(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(2500), tx.Total)
	assert.Equal(t, sampleLines(), tx.Lines)
	assert.Equal(t, testNow, tx.CreatedAt)
	assert.Equal(t, domain.CheckoutStatusSettled, c.Status())

	require.Len(t, deps.store.Inserted, 1)
	require.Len(t, deps.store.ItemsCalls, 1)
	assert.Equal(t, tx.ID, deps.store.Inserted[0].ID)
	assert.Equal(t, []*domain.Transaction{tx}, deps.log.Appended)
	assert.Equal(t, 1, deps.flag.Raised)
	assert.Equal(t, 1, deps.cart.Resets)
	require.Len(t, deps.writer.Flushes, 1)
	assert.True(t, deps.writer.Flushes[0].IsEmpty())
	assert.Equal(t, []*domain.Transaction{tx}, deps.publisher.Published)
}

func TestCheckout_EmptyCartHasNoSideEffects(t *testing.T) {
	c, deps := setupCoordinator()

	tx, err := c.Checkout(context.Background())

	assert.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Nil(t, tx)
	assert.Equal(t, domain.CheckoutStatusIdle, c.Status())
	assert.Zero(t, deps.store.InsertCalls)
	assert.Empty(t, deps.log.Appended)
	assert.Zero(t, deps.flag.Raised)
	assert.Zero(t, deps.cart.Resets)
	assert.Empty(t, deps.writer.Flushes)
}

func TestCheckout_PersistFailureKeepsCart(t *testing.T) {
	c, deps := setupCoordinator(sampleLines()...)
	deps.store.InsertErr = errors.New("connection refused")

	tx, err := c.Checkout(context.Background())

	assert.ErrorIs(t, err, domain.ErrCheckoutPersist)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Nil(t, tx)
	assert.Equal(t, domain.CheckoutStatusIdle, c.Status())
	assert.Equal(t, 3, deps.store.InsertCalls)
	assert.Equal(t, sampleLines(), deps.cart.Lines)
	assert.Zero(t, deps.cart.Resets)
	assert.Zero(t, deps.flag.Raised)
	assert.Empty(t, deps.log.Appended)
	assert.Empty(t, deps.writer.Flushes)
}

func TestCheckout_ItemsFailureThenRetryReusesTransaction(t *testing.T) {
	c, deps := setupCoordinator(sampleLines()...)
	deps.store.ItemsErr = errors.New("timeout")

	_, err := c.Checkout(context.Background())
	require.ErrorIs(t, err, domain.ErrCheckoutPersist)
	require.Len(t, deps.store.Inserted, 1)
	firstID := deps.store.Inserted[0].ID

	deps.store.ItemsErr = nil
	tx, err := c.Checkout(context.Background())

	require.NoError(t, err)
	assert.Equal(t, firstID, tx.ID)
	assert.Equal(t, domain.CheckoutStatusSettled, c.Status())
}

func TestCheckout_ChangedCartGetsNewTransaction(t *testing.T) {
	c, deps := setupCoordinator(sampleLines()...)
	deps.store.ItemsErr = errors.New("timeout")

	_, err := c.Checkout(context.Background())
	require.Error(t, err)
	firstID := deps.store.Inserted[0].ID

	deps.store.ItemsErr = nil
	deps.cart.Lines = sampleLines()[:1]
	tx, err := c.Checkout(context.Background())

	require.NoError(t, err)
	assert.NotEqual(t, firstID, tx.ID)
	assert.Equal(t, int64(2000), tx.Total)
}

func TestCheckout_BestEffortFailuresDoNotFail(t *testing.T) {
	c, deps := setupCoordinator(sampleLines()...)
	deps.log.AppendErr = domain.ErrLocalStore
	deps.flag.Err = domain.ErrLocalStore
	deps.writer.Err = errors.New("remote down")
	deps.publisher.Err = errors.New("broker down")

	tx, err := c.Checkout(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, tx)
	assert.Equal(t, domain.CheckoutStatusSettled, c.Status())
	assert.Equal(t, 1, deps.cart.Resets)
	assert.Empty(t, deps.writer.Flushes)
}

func TestCheckout_CleanupOutlivesCallerContext(t *testing.T) {
	c, deps := setupCoordinator(sampleLines()...)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// the caller goes away right after the sale is committed
	deps.store.AfterItems = cancel

	tx, err := c.Checkout(ctx)

	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusSettled, c.Status())
	assert.Equal(t, []*domain.Transaction{tx}, deps.log.Appended)
	require.Len(t, deps.writer.Flushes, 1)
	assert.True(t, deps.writer.Flushes[0].IsEmpty())
	assert.Equal(t, []*domain.Transaction{tx}, deps.publisher.Published)
}

func TestCheckout_NilPublisher(t *testing.T) {
	c, _ := setupCoordinator(sampleLines()...)
	c.deps.Publisher = nil

	_, err := c.Checkout(context.Background())
	assert.NoError(t, err)
}

func TestCheckout_SettledStartsNewCycle(t *testing.T) {
	c, deps := setupCoordinator(sampleLines()...)

	first, err := c.Checkout(context.Background())
	require.NoError(t, err)

	deps.cart.Lines = sampleLines()
	second, err := c.Checkout(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, deps.store.Inserted, 2)
}

func TestCheckout_EndToEndEmptiesSharedOrder(t *testing.T) {
	ctx := context.Background()
	log := logrus.NewEntry(logger.Discard())

	device, err := localstore.Open(filepath.Join(t.TempDir(), "kasir.db"))
	require.NoError(t, err)
	defer device.Close()
	require.NoError(t, device.RunMigrations("../localstore/migrations"))

	remote := channel.NewMemoryChannel()
	kasir := device.NewTab("kasir")
	writer := debounce.NewWriter(remote, time.Hour, log)
	defer writer.Stop()
	engine := cart.NewEngine(kasir, writer, log)

	a := domain.Product{ID: 1, Name: "A", Price: 1000, Category: domain.CategoryFood}
	b := domain.Product{ID: 2, Name: "B", Price: 500, Category: domain.CategoryDrink}
	engine.AddLine(a)
	engine.AddLine(a)
	engine.AddLine(b)

	store := &MockStore{}
	c := NewCoordinator(Dependencies{
		Store:  store,
		Log:    device,
		Cart:   engine,
		Flag:   kasir,
		Writer: writer,
	}, log)

	tx, err := c.Checkout(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), tx.Total)

	shared, err := remote.Fetch(ctx)
	require.NoError(t, err)
	assert.Empty(t, shared.Lines)

	local, err := kasir.LoadOrder()
	require.NoError(t, err)
	assert.Empty(t, local.Lines)
	assert.Empty(t, engine.Lines())

	logged, err := device.Transactions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, tx.ID, logged[0].ID)

	seen, err := device.NewTab("display").ConsumePaymentFlag()
	require.NoError(t, err)
	assert.True(t, seen)

	_, err = c.Checkout(ctx)
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
}
