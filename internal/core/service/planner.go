package service

import (
	"fmt"

	"github.com/vendoro/order-fanout/internal/core/domain"
)

// Plan groups a paid transaction's cart items into one order intent
// per distinct store. Stores keep the order they first appear in the
// cart, so a given transaction always plans the same sequence. An
// empty cart plans to an empty sequence, not an error.
func Plan(tx domain.Transaction) ([]domain.OrderIntent, error) {
	if tx.Status != domain.TransactionPaid {
		return nil, fmt.Errorf("plan transaction %s in status %s: %w", tx.ID, tx.Status, domain.ErrInvalidState)
	}
	return groupByStore(tx), nil
}

func groupByStore(tx domain.Transaction) []domain.OrderIntent {
	intents := make([]domain.OrderIntent, 0)
	index := make(map[string]int)

	for _, item := range tx.Items {
		i, seen := index[item.StoreDomain]
		if !seen {
			i = len(intents)
			index[item.StoreDomain] = i
			intents = append(intents, domain.OrderIntent{
				TransactionID: tx.ID,
				StoreDomain:   item.StoreDomain,
				Buyer:         tx.Buyer,
			})
		}
		intents[i].Items = append(intents[i].Items, item)
	}

	return intents
}
