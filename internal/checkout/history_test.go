package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Shibarkan/cafe/internal/domain"
	"github.com/Shibarkan/cafe/pkg/logger"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTx(t *testing.T) *domain.Transaction {
	tx, err := domain.NewTransaction(sampleLines(), time.Now())
	require.NoError(t, err)
	return tx
}

func TestHistoryRecent_PrefersRemote(t *testing.T) {
	remoteTx, localTx := newTx(t), newTx(t)
	h := NewHistory(&MockReader{Recent: []*domain.Transaction{remoteTx}},
		&MockLog{Appended: []*domain.Transaction{localTx}}, logrus.NewEntry(logger.Discard()))

	txs, err := h.Recent(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, []*domain.Transaction{remoteTx}, txs)
}

func TestHistoryRecent_FallsBackToLocal(t *testing.T) {
	localTx := newTx(t)
	h := NewHistory(&MockReader{Err: errors.New("connection refused")},
		&MockLog{Appended: []*domain.Transaction{localTx}}, logrus.NewEntry(logger.Discard()))

	txs, err := h.Recent(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, []*domain.Transaction{localTx}, txs)
}

func TestHistoryRecent_NoRemote(t *testing.T) {
	localTx := newTx(t)
	h := NewHistory(nil, &MockLog{Appended: []*domain.Transaction{localTx}}, logrus.NewEntry(logger.Discard()))

	txs, err := h.Recent(context.Background(), 10)

	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestHistoryGet(t *testing.T) {
	localTx := newTx(t)
	local := &MockLog{Appended: []*domain.Transaction{localTx}}

	t.Run("remote not found is final", func(t *testing.T) {
		h := NewHistory(&MockReader{Err: domain.ErrTransactionNotFound}, local, logrus.NewEntry(logger.Discard()))
		_, err := h.Get(context.Background(), localTx.ID)
		assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	})

	t.Run("remote down falls back", func(t *testing.T) {
		h := NewHistory(&MockReader{Err: errors.New("down")}, local, logrus.NewEntry(logger.Discard()))
		tx, err := h.Get(context.Background(), localTx.ID)
		require.NoError(t, err)
		assert.Equal(t, localTx, tx)
	})

	t.Run("local miss", func(t *testing.T) {
		h := NewHistory(nil, local, logrus.NewEntry(logger.Discard()))
		_, err := h.Get(context.Background(), uuid.New())
		assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
	})
}
