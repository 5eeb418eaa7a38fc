package port

import "context"

type DispatchGuard interface {
	// TryAcquire claims the (transaction, store) pair for one owner,
	// returns false if another submission is already in flight
	TryAcquire(ctx context.Context, transactionID, storeDomain, owner string) (bool, error)

	// Release frees the pair, only if still held by owner
	Release(ctx context.Context, transactionID, storeDomain, owner string) error
}
