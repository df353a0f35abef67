package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Shibarkan/cafe/internal/domain"
	"github.com/google/uuid"
)

// InsertTransaction writes the transaction header. Inserting an id that already exists is a
// no-op, so a retried checkout never duplicates the record.
func (r *Repository) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `INSERT INTO transactions (id, total, created_at) VALUES ($1, $2, $3)
	          ON CONFLICT (id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, tx.ID, tx.Total, tx.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// InsertTransactionItems writes one row per line in a single database transaction.
func (r *Repository) InsertTransactionItems(ctx context.Context, tx *domain.Transaction) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction items: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, `
		INSERT INTO transaction_items (transaction_id, line_no, product_id, product_name, category, price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (transaction_id, line_no) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare transaction items: %w", err)
	}
	defer stmt.Close()

	for i, l := range tx.Lines {
		if _, err := stmt.ExecContext(ctx, tx.ID, i, l.ProductID, l.Name, string(l.Category), l.UnitPrice, l.Quantity); err != nil {
			return fmt.Errorf("insert transaction item %d: %w", i, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction items: %w", err)
	}
	return nil
}

func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := r.db.QueryRowContext(ctx,
		`SELECT id, total, created_at FROM transactions WHERE id = $1`, id).
		Scan(&tx.ID, &tx.Total, &tx.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query transaction by id: %w", err)
	}

	lines, err := r.transactionItems(ctx, id)
	if err != nil {
		return nil, err
	}
	tx.Lines = lines
	tx.CreatedAt = tx.CreatedAt.UTC()
	return &tx, nil
}

// ListRecentTransactions returns up to limit transactions, newest first.
func (r *Repository) ListRecentTransactions(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, total, created_at FROM transactions ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent transactions: %w", err)
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(&tx.ID, &tx.Total, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		tx.CreatedAt = tx.CreatedAt.UTC()
		txs = append(txs, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	for _, tx := range txs {
		lines, err := r.transactionItems(ctx, tx.ID)
		if err != nil {
			return nil, err
		}
		tx.Lines = lines
	}
	return txs, nil
}

func (r *Repository) transactionItems(ctx context.Context, id uuid.UUID) ([]domain.CartLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, product_name, category, price, quantity
		FROM transaction_items WHERE transaction_id = $1 ORDER BY line_no`, id)
	if err != nil {
		return nil, fmt.Errorf("query transaction items: %w", err)
	}
	defer rows.Close()

	lines := []domain.CartLine{}
	for rows.Next() {
		var l domain.CartLine
		var category string
		if err := rows.Scan(&l.ProductID, &l.Name, &category, &l.UnitPrice, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scan transaction item: %w", err)
		}
		l.Category = domain.Category(category)
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return lines, nil
}
