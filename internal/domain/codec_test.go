package domain

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

func sampleOrder() *SharedOrderState {
	return &SharedOrderState{
		ID: SharedOrderID,
		Lines: []CartLine{
			{ProductID: 1, Name: "Nasi Goreng", UnitPrice: 15000, Quantity: 2, Category: CategoryFood},
			{ProductID: 2, Name: "Es Teh", UnitPrice: 5000, Quantity: 1, Category: CategoryDrink},
		},
		UpdatedAt: testTime,
	}
}

func TestEncodeOrder_Golden(t *testing.T) {
	data, err := EncodeOrder(sampleOrder())
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "shared_order", data)
}

func TestEncodeDecodeOrder_PreservesLinesAndOrder(t *testing.T) {
	order := sampleOrder()

	data, err := EncodeOrder(order)
	require.NoError(t, err)

	decoded, err := DecodeOrder(data)
	require.NoError(t, err)
	assert.Equal(t, order.Lines, decoded.Lines)
	assert.True(t, order.UpdatedAt.Equal(decoded.UpdatedAt))
	assert.Equal(t, SharedOrderID, decoded.ID)
}

func TestEncodeOrder_EmptyCartIsArray(t *testing.T) {
	data, err := EncodeOrder(&SharedOrderState{UpdatedAt: testTime})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"cart":[]`)
}

func TestDecodeOrder_DropsNonPositiveQuantities(t *testing.T) {
	raw := `{"id":1,"cart":[{"id":1,"name":"A","price":1000,"quantity":0,"category":"food"},` +
		`{"id":2,"name":"B","price":500,"quantity":3,"category":"snack"}],"updated_at":"2026-10-16T09:30:00Z"}`

	decoded, err := DecodeOrder([]byte(raw))
	require.NoError(t, err)
	require.Len(t, decoded.Lines, 1)
	assert.Equal(t, int64(2), decoded.Lines[0].ProductID)
}

func TestDecodeOrder_MissingIDDefaultsToSingleton(t *testing.T) {
	decoded, err := DecodeOrder([]byte(`{"cart":null}`))
	require.NoError(t, err)
	assert.Equal(t, SharedOrderID, decoded.ID)
	assert.NotNil(t, decoded.Lines)
	assert.Empty(t, decoded.Lines)
}

func TestDecodeOrder_RejectsForeignID(t *testing.T) {
	_, err := DecodeOrder([]byte(`{"id":7,"cart":[]}`))
	assert.Error(t, err)
}

func TestDecodeOrder_InvalidJSON(t *testing.T) {
	_, err := DecodeOrder([]byte(`{"id":1,"ca`))
	require.ErrorContains(t, err, "unmarshal order failed")
}

func TestTransactionRoundTrip(t *testing.T) {
	tx, err := NewTransaction(sampleOrder().Lines, testTime)
	require.NoError(t, err)

	data, err := EncodeTransaction(tx)
	require.NoError(t, err)

	decoded, err := DecodeTransaction(data)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, decoded.ID)
	assert.Equal(t, tx.Lines, decoded.Lines)
	assert.Equal(t, int64(35000), decoded.Total)
	assert.True(t, tx.CreatedAt.Equal(decoded.CreatedAt))
}
