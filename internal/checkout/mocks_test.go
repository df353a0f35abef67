package checkout

import (
	"context"
	"sync"

	"github.com/Shibarkan/cafe/internal/domain"
	"github.com/google/uuid"
)

// MockStore implements TransactionStore for testing
type MockStore struct {
	mu          sync.Mutex
	InsertErr   error
	ItemsErr    error
	Inserted    []*domain.Transaction
	ItemsCalls  []*domain.Transaction
	InsertCalls int
	// AfterItems runs once the items are stored.
	AfterItems func()
}

func (m *MockStore) InsertTransaction(_ context.Context, tx *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.Inserted = append(m.Inserted, tx)
	return nil
}

func (m *MockStore) InsertTransactionItems(_ context.Context, tx *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ItemsErr != nil {
		return m.ItemsErr
	}
	m.ItemsCalls = append(m.ItemsCalls, tx)
	if m.AfterItems != nil {
		m.AfterItems()
	}
	return nil
}

// MockLog implements TransactionLog and LocalHistory for testing
type MockLog struct {
	Appended  []*domain.Transaction
	AppendErr error
	ReadErr   error
}

func (m *MockLog) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.Appended = append(m.Appended, tx)
	return nil
}

func (m *MockLog) Transactions(_ context.Context, limit int) ([]*domain.Transaction, error) {
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	if limit > len(m.Appended) {
		limit = len(m.Appended)
	}
	return m.Appended[:limit], nil
}

func (m *MockLog) Transaction(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	for _, tx := range m.Appended {
		if tx.ID == id {
			return tx, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

// MockCart implements Cart for testing
type MockCart struct {
	Lines  []domain.CartLine
	Resets int
}

func (m *MockCart) Snapshot() domain.SharedOrderState {
	return domain.NewSharedOrder(m.Lines, testNow)
}

func (m *MockCart) Reset() {
	m.Lines = nil
	m.Resets++
}

// MockFlagger implements Flagger for testing
type MockFlagger struct {
	Raised int
	Err    error
}

func (m *MockFlagger) RaisePaymentFlag() error {
	if m.Err != nil {
		return m.Err
	}
	m.Raised++
	return nil
}

// MockWriter implements OrderWriter for testing
type MockWriter struct {
	Flushes []*domain.SharedOrderState
	Err     error
}

func (m *MockWriter) Flush(ctx context.Context, state *domain.SharedOrderState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.Err != nil {
		return m.Err
	}
	m.Flushes = append(m.Flushes, state)
	return nil
}

// MockPublisher implements EventPublisher for testing
type MockPublisher struct {
	Published []*domain.Transaction
	Err       error
}

func (m *MockPublisher) PublishTransaction(ctx context.Context, tx *domain.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.Err != nil {
		return m.Err
	}
	m.Published = append(m.Published, tx)
	return nil
}

// MockReader implements TransactionReader for testing
type MockReader struct {
	Recent []*domain.Transaction
	Tx     *domain.Transaction
	Err    error
}

func (m *MockReader) ListRecentTransactions(_ context.Context, _ int) ([]*domain.Transaction, error) {
	return m.Recent, m.Err
}

func (m *MockReader) GetTransaction(_ context.Context, _ uuid.UUID) (*domain.Transaction, error) {
	return m.Tx, m.Err
}
