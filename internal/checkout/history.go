package checkout

import (
	"context"
	"errors"

	"github.com/Shibarkan/cafe/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type TransactionReader interface {
	ListRecentTransactions(ctx context.Context, limit int) ([]*domain.Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
}

type LocalHistory interface {
	Transactions(ctx context.Context, limit int) ([]*domain.Transaction, error)
	Transaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
}

// History lists committed transactions from the remote store, falling back to the
// device's own log when the remote cannot be reached.
type History struct {
	remote TransactionReader
	local  LocalHistory
	log    *logrus.Entry
}

// NewHistory accepts a nil remote, in which case only the local log is read.
func NewHistory(remote TransactionReader, local LocalHistory, log *logrus.Entry) *History {
	return &History{remote: remote, local: local, log: log}
}

func (h *History) Recent(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	if h.remote != nil {
		txs, err := h.remote.ListRecentTransactions(ctx, limit)
		if err == nil {
			return txs, nil
		}
		h.log.WithError(err).Warn("remote history unavailable, reading local log")
	}
	return h.local.Transactions(ctx, limit)
}

func (h *History) Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	if h.remote != nil {
		tx, err := h.remote.GetTransaction(ctx, id)
		if err == nil || errors.Is(err, domain.ErrTransactionNotFound) {
			return tx, err
		}
		h.log.WithError(err).WithField("transaction_id", id).Warn("remote history unavailable, reading local log")
	}
	return h.local.Transaction(ctx, id)
}
