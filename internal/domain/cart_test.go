package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotal(t *testing.T) {
	lines := []CartLine{
		{ProductID: 1, Name: "A", UnitPrice: 1000, Quantity: 2},
		{ProductID: 2, Name: "B", UnitPrice: 500, Quantity: 1},
	}
	assert.Equal(t, int64(2500), Total(lines))
	assert.Equal(t, int64(0), Total(nil))
}

func TestNewSharedOrder_CopiesLines(t *testing.T) {
	lines := []CartLine{{ProductID: 1, UnitPrice: 100, Quantity: 1}}
	order := NewSharedOrder(lines, time.Now())

	lines[0].Quantity = 9
	assert.Equal(t, 1, order.Lines[0].Quantity)
	assert.Equal(t, SharedOrderID, order.ID)
}

func TestCloneLines_NeverNil(t *testing.T) {
	assert.NotNil(t, CloneLines(nil))
}

func TestCategoryValid(t *testing.T) {
	assert.True(t, CategoryFood.Valid())
	assert.True(t, CategoryDrink.Valid())
	assert.True(t, CategorySnack.Valid())
	assert.False(t, Category("makanan").Valid())
}

func TestNewTransaction_TimeOrderedIDs(t *testing.T) {
	lines := []CartLine{{ProductID: 1, UnitPrice: 1000, Quantity: 2}}

	first, err := NewTransaction(lines, time.Now())
	require.NoError(t, err)
	second, err := NewTransaction(lines, time.Now())
	require.NoError(t, err)

	assert.Equal(t, uuid.Version(7), first.ID.Version())
	assert.Less(t, first.ID.String(), second.ID.String())
	assert.Equal(t, int64(2000), first.Total)
}

func TestCanTransitionTo(t *testing.T) {
	assert.True(t, CanTransitionTo(CheckoutStatusIdle, CheckoutStatusCommitting))
	assert.True(t, CanTransitionTo(CheckoutStatusCommitting, CheckoutStatusSettled))
	assert.True(t, CanTransitionTo(CheckoutStatusCommitting, CheckoutStatusIdle))
	assert.True(t, CanTransitionTo(CheckoutStatusSettled, CheckoutStatusIdle))

	assert.False(t, CanTransitionTo(CheckoutStatusIdle, CheckoutStatusSettled))
	assert.False(t, CanTransitionTo(CheckoutStatusSettled, CheckoutStatusCommitting))
	assert.True(t, CheckoutStatusSettled.IsTerminal())
}
