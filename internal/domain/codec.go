package domain

import (
	"encoding/json"
	"fmt"
)

// EncodeOrder produces the order document shared by the local store and the remote channels.
func EncodeOrder(state *SharedOrderState) ([]byte, error) {
	doc := SharedOrderState{
		ID:        SharedOrderID,
		Lines:     CloneLines(state.Lines),
		UpdatedAt: state.UpdatedAt.UTC(),
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal order failed: %w", err)
	}
	return data, nil
}

// DecodeOrder parses an order document. Lines with a non-positive quantity are dropped.
func DecodeOrder(data []byte) (*SharedOrderState, error) {
	var doc SharedOrderState
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal order failed: %w", err)
	}
	return normalizeOrder(&doc)
}

func normalizeOrder(doc *SharedOrderState) (*SharedOrderState, error) {
	if doc.ID == 0 {
		doc.ID = SharedOrderID
	}
	if doc.ID != SharedOrderID {
		return nil, fmt.Errorf("unexpected order id %d", doc.ID)
	}

	lines := make([]CartLine, 0, len(doc.Lines))
	for _, l := range doc.Lines {
		if l.Quantity <= 0 {
			continue
		}
		lines = append(lines, l)
	}
	doc.Lines = lines
	return doc, nil
}

// NormalizeOrder applies the decode invariants to a document read through another codec (bson).
func NormalizeOrder(doc *SharedOrderState) (*SharedOrderState, error) {
	return normalizeOrder(doc)
}

func EncodeTransaction(tx *Transaction) ([]byte, error) {
	data, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("marshal transaction failed: %w", err)
	}
	return data, nil
}

func DecodeTransaction(data []byte) (*Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("unmarshal transaction failed: %w", err)
	}
	if tx.Lines == nil {
		tx.Lines = []CartLine{}
	}
	return &tx, nil
}
