package port

import (
	"context"

	"github.com/vendoro/order-fanout/internal/core/domain"
)

type CommerceClient interface {
	// CreateOrder performs exactly one order-creation call against
	// the store's backend. Failures are *domain.RemoteError when the
	// backend answered, plain errors for transport problems.
	CreateOrder(ctx context.Context, store domain.Store, intent domain.OrderIntent) (*domain.RemoteOrder, error)
}
