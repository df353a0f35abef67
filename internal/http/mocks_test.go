package http

import (
	"context"
	"time"

	"github.com/Shibarkan/cafe/internal/domain"
	"github.com/google/uuid"
)

// MockCart implements Cart for testing
type MockCart struct {
	lines   []domain.CartLine
	Added   []domain.Product
	Removed []int64
}

func (m *MockCart) AddLine(p domain.Product) []domain.CartLine {
	m.Added = append(m.Added, p)
	for i := range m.lines {
		if m.lines[i].ProductID == p.ID {
			m.lines[i].Quantity++
			return domain.CloneLines(m.lines)
		}
	}
	m.lines = append(m.lines, domain.CartLine{ProductID: p.ID, Name: p.Name, UnitPrice: p.Price, Quantity: 1, Category: p.Category})
	return domain.CloneLines(m.lines)
}

func (m *MockCart) RemoveLine(id int64) []domain.CartLine {
	m.Removed = append(m.Removed, id)
	return domain.CloneLines(m.lines)
}

func (m *MockCart) Lines() []domain.CartLine {
	return domain.CloneLines(m.lines)
}

// MockCheckout implements Checkout for testing
type MockCheckout struct {
	Tx       *domain.Transaction
	Err      error
	Deadline time.Time
}

func (m *MockCheckout) Checkout(ctx context.Context) (*domain.Transaction, error) {
	m.Deadline, _ = ctx.Deadline()
	return m.Tx, m.Err
}

// MockHistory implements History for testing
type MockHistory struct {
	Txs []*domain.Transaction
	Err error
}

func (m *MockHistory) Recent(_ context.Context, limit int) ([]*domain.Transaction, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if limit < len(m.Txs) {
		return m.Txs[:limit], nil
	}
	return m.Txs, nil
}

func (m *MockHistory) Get(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	for _, tx := range m.Txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}
