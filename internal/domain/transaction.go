package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Transaction is the permanent record of one checkout. It is never mutated after creation.
type Transaction struct {
	ID        uuid.UUID  `json:"id"`
	Lines     []CartLine `json:"items"`
	Total     int64      `json:"total"`
	CreatedAt time.Time  `json:"date"`
}

// NewTransaction snapshots lines under a fresh time-ordered id.
func NewTransaction(lines []CartLine, now time.Time) (*Transaction, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate transaction id: %w", err)
	}

	return &Transaction{
		ID:        id,
		Lines:     CloneLines(lines),
		Total:     Total(lines),
		CreatedAt: now,
	}, nil
}
