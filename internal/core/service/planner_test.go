package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendoro/order-fanout/internal/core/domain"
)

func paidTransaction(id string, items ...domain.CartItem) domain.Transaction {
	return domain.Transaction{
		ID:     id,
		Status: domain.TransactionPaid,
		Buyer:  domain.BuyerContact{Email: "buyer@example.com", Name: "Buyer"},
		Items:  items,
	}
}

func TestPlan_GroupsByStorePreservingCartOrder(t *testing.T) {
	tx := paidTransaction("tx-1",
		domain.CartItem{StoreDomain: "alpha.example", ProductRef: "p1", Quantity: 1},
		domain.CartItem{StoreDomain: "beta.example", ProductRef: "p2", Quantity: 2},
		domain.CartItem{StoreDomain: "alpha.example", ProductRef: "p3", Quantity: 1},
		domain.CartItem{StoreDomain: "gamma.example", ProductRef: "p4", Quantity: 5},
	)

	intents, err := Plan(tx)
	require.NoError(t, err)
	require.Len(t, intents, 3)

	assert.Equal(t, "alpha.example", intents[0].StoreDomain)
	assert.Equal(t, "beta.example", intents[1].StoreDomain)
	assert.Equal(t, "gamma.example", intents[2].StoreDomain)

	require.Len(t, intents[0].Items, 2)
	assert.Equal(t, "p1", intents[0].Items[0].ProductRef)
	assert.Equal(t, "p3", intents[0].Items[1].ProductRef)

	for _, intent := range intents {
		assert.Equal(t, "tx-1", intent.TransactionID)
		assert.Equal(t, tx.Buyer, intent.Buyer)
	}
}

func TestPlan_Deterministic(t *testing.T) {
	tx := paidTransaction("tx-2",
		domain.CartItem{StoreDomain: "z.example", ProductRef: "p1", Quantity: 1},
		domain.CartItem{StoreDomain: "a.example", ProductRef: "p2", Quantity: 1},
	)

	first, err := Plan(tx)
	require.NoError(t, err)
	second, err := Plan(tx)
	require.NoError(t, err)

	// Cart order wins over lexical order, every time.
	assert.Equal(t, first, second)
	assert.Equal(t, "z.example", first[0].StoreDomain)
}

func TestPlan_EmptyCart(t *testing.T) {
	intents, err := Plan(paidTransaction("tx-3"))
	require.NoError(t, err)
	assert.Empty(t, intents)
}

func TestPlan_RequiresPaidTransaction(t *testing.T) {
	for _, status := range []domain.TransactionStatus{
		domain.TransactionPending,
		domain.TransactionFulfilled,
		domain.TransactionPartiallyFulfilled,
		domain.TransactionFailed,
	} {
		tx := paidTransaction("tx-4", domain.CartItem{StoreDomain: "alpha.example", Quantity: 1})
		tx.Status = status

		_, err := Plan(tx)
		assert.True(t, errors.Is(err, domain.ErrInvalidState), "status %s should be rejected", status)
	}
}
