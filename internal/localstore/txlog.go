package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Shibarkan/cafe/internal/domain"
	"github.com/google/uuid"
)

// AppendTransaction adds tx to the device's transaction log. Appending the same id twice is a no-op.
func (d *Device) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	payload, err := domain.EncodeTransaction(tx)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrLocalStore, err)
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO transaction_log (id, total, payload, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		tx.ID.String(), tx.Total, string(payload), tx.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: failed to append transaction: %w", domain.ErrLocalStore, err)
	}
	return nil
}

// Transactions lists the newest limit transactions first. Ids are UUIDv7, so they sort by time.
func (d *Device) Transactions(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT payload FROM transaction_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction log: %w", err)
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx, err := domain.DecodeTransaction([]byte(payload))
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return txs, nil
}

func (d *Device) Transaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var payload string
	err := d.db.QueryRowContext(ctx,
		`SELECT payload FROM transaction_log WHERE id = ?`, id.String()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	return domain.DecodeTransaction([]byte(payload))
}
