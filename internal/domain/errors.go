package domain

import "errors"

var (
	// ErrLocalStore covers quota and serialization failures of the device store.
	ErrLocalStore = errors.New("local store failure")
	// ErrRemoteWrite is a failed upsert of the shared order; the next mutation supersedes it.
	ErrRemoteWrite = errors.New("remote write failure")
	// ErrSubscriptionDropped ends a push subscription; callers reconnect with backoff.
	ErrSubscriptionDropped = errors.New("subscription dropped")

	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrCheckoutPersist   = errors.New("checkout could not be persisted")
	ErrIllegalTransition = errors.New("illegal transition of checkout status")

	ErrOrderNotFound       = errors.New("shared order not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrProductNotFound     = errors.New("product not found")
)
