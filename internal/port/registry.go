package port

import (
	"context"

	"github.com/vendoro/order-fanout/internal/core/domain"
)

type StoreRegistry interface {
	// Resolve returns the store for a domain, including credentials,
	// or domain.ErrStoreNotFound. Credentials are resolved fresh per
	// orchestration run; implementations must not cache across runs.
	Resolve(ctx context.Context, storeDomain string) (*domain.Store, error)
}
