package domain

import "time"

type TransactionStatus string

const (
	TransactionPending            TransactionStatus = "pending"
	TransactionPaid               TransactionStatus = "paid"
	TransactionPartiallyFulfilled TransactionStatus = "partially_fulfilled"
	TransactionFulfilled          TransactionStatus = "fulfilled"
	TransactionFailed             TransactionStatus = "failed"
)

// BuyerContact is forwarded to each store's order-creation request.
type BuyerContact struct {
	Email string
	Name  string
	Phone string
}

// CartItem references the store it originates from by domain.
// Amounts are in minor units of the transaction currency.
type CartItem struct {
	StoreDomain string
	ProductRef  string
	VariantRef  string
	Quantity    int
	UnitPrice   int64
}

// Transaction is one paid checkout spanning any number of stores.
// Items are immutable once the transaction is paid.
type Transaction struct {
	ID               string
	Status           TransactionStatus
	TotalAmount      int64
	Currency         string
	Buyer            BuyerContact
	Items            []CartItem
	PaymentReference string
	CreatedAt        time.Time
	PaidAt           time.Time
}

// Terminal reports whether no further automatic transition exists.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case TransactionFulfilled, TransactionPartiallyFulfilled, TransactionFailed:
		return true
	}
	return false
}

// CanTransition encodes the forward-only transaction state machine.
// The transitions out of terminal states cover explicit resubmission
// only; nothing moves a transaction backwards.
func CanTransition(from, to TransactionStatus) bool {
	switch from {
	case TransactionPending:
		return to == TransactionPaid
	case TransactionPaid:
		return to == TransactionFulfilled || to == TransactionPartiallyFulfilled || to == TransactionFailed
	case TransactionPartiallyFulfilled:
		return to == TransactionFulfilled
	case TransactionFailed:
		return to == TransactionPartiallyFulfilled || to == TransactionFulfilled
	}
	return false
}

// DeriveStatus computes the aggregate transaction status from its
// ledger rows alone. It is only meaningful for a paid transaction: an
// empty row set means an empty fan-out plan, which is vacuous success.
// If any row is still non-terminal the transaction stays paid.
func DeriveStatus(orders []StoreOrder) TransactionStatus {
	confirmed, failed := 0, 0
	for _, o := range orders {
		switch o.Status {
		case StoreOrderConfirmed:
			confirmed++
		case StoreOrderFailed:
			failed++
		default:
			return TransactionPaid
		}
	}
	switch {
	case failed == 0:
		return TransactionFulfilled
	case confirmed == 0:
		return TransactionFailed
	default:
		return TransactionPartiallyFulfilled
	}
}
