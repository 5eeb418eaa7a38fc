package port

import (
	"context"
	"time"

	"github.com/vendoro/order-fanout/internal/core/domain"
)

type TransactionRepository interface {
	// GetByID loads a transaction with its cart items, nil if absent
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)

	// MarkPaid moves a pending transaction to paid, recording the
	// payment reference; no-op when the transaction is already paid
	MarkPaid(ctx context.Context, id, paymentReference string, paidAt time.Time) error

	// UpdateStatus applies from->to conditionally, returns false if
	// the transaction was not in the expected from state
	UpdateStatus(ctx context.Context, id string, from, to domain.TransactionStatus) (bool, error)

	// ListTransactionsByStatus returns transactions in the given
	// state, newest first
	ListTransactionsByStatus(ctx context.Context, status domain.TransactionStatus) ([]domain.Transaction, error)
}

type OrderLedger interface {
	// EnsurePending creates the pending row for a pair if none exists
	EnsurePending(ctx context.Context, transactionID, storeDomain string) error

	// UpsertTerminal records a terminal outcome for a pair; a row
	// already confirmed is never downgraded
	UpsertTerminal(ctx context.Context, order domain.StoreOrder) error

	// ListByTransaction returns all rows for one transaction
	ListByTransaction(ctx context.Context, transactionID string) ([]domain.StoreOrder, error)

	// ListByDomain returns all rows targeting one store
	ListByDomain(ctx context.Context, storeDomain string) ([]domain.StoreOrder, error)

	// ListByStatus returns all rows in the given state
	ListByStatus(ctx context.Context, status domain.StoreOrderStatus) ([]domain.StoreOrder, error)
}
