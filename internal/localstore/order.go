package localstore

import (
	"fmt"
	"time"

	"github.com/Shibarkan/cafe/internal/domain"
)

const (
	// KeySharedOrder holds the device's mirror of the shared order document.
	KeySharedOrder = "current_orders_local"
	// KeyPaymentSuccess is the one-shot "payment succeeded" flag.
	KeyPaymentSuccess = "paymentSuccess"

	paymentFlagValue = "1"
)

func (t *Tab) SaveOrder(state *domain.SharedOrderState) error {
	data, err := domain.EncodeOrder(state)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrLocalStore, err)
	}
	if err := t.Set(KeySharedOrder, string(data)); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrLocalStore, err)
	}
	return nil
}

// MirrorOrder saves state unless the device already holds a newer order, and reports
// whether it was written. A stored value that cannot be read is overwritten.
func (t *Tab) MirrorOrder(state *domain.SharedOrderState) (bool, error) {
	data, err := domain.EncodeOrder(state)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrLocalStore, err)
	}
	written, err := t.SetIf(KeySharedOrder, string(data), func(old string) bool {
		stored, err := domain.DecodeOrder([]byte(old))
		return err == nil && stored.UpdatedAt.After(state.UpdatedAt)
	})
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrLocalStore, err)
	}
	return written, nil
}

// LoadOrder returns the mirrored order, or an empty one when nothing was saved yet.
func (t *Tab) LoadOrder() (*domain.SharedOrderState, error) {
	raw, ok, err := t.Get(KeySharedOrder)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLocalStore, err)
	}
	if !ok {
		empty := domain.NewSharedOrder(nil, time.Time{})
		return &empty, nil
	}

	state, err := domain.DecodeOrder([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLocalStore, err)
	}
	return state, nil
}

func (t *Tab) RaisePaymentFlag() error {
	if err := t.Set(KeyPaymentSuccess, paymentFlagValue); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrLocalStore, err)
	}
	return nil
}

// ConsumePaymentFlag clears the flag and reports whether this call was the one that saw it.
func (t *Tab) ConsumePaymentFlag() (bool, error) {
	value, ok, err := t.Take(KeyPaymentSuccess)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrLocalStore, err)
	}
	return ok && value == paymentFlagValue, nil
}
