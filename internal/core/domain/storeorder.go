package domain

import "time"

type StoreOrderStatus string

const (
	StoreOrderPending   StoreOrderStatus = "pending"
	StoreOrderSubmitted StoreOrderStatus = "submitted"
	StoreOrderConfirmed StoreOrderStatus = "confirmed"
	StoreOrderFailed    StoreOrderStatus = "failed"
)

// StoreOrder is the ledger row for one (transaction, store) pair.
// At most one exists per pair; RemoteOrderID is set iff confirmed.
type StoreOrder struct {
	TransactionID     string
	StoreDomain       string
	Status            StoreOrderStatus
	RemoteOrderID     string
	RemoteOrderNumber string
	ErrorMessage      string
	AttemptCount      int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Terminal reports whether the row needs no further submission work.
func (s StoreOrderStatus) Terminal() bool {
	return s == StoreOrderConfirmed || s == StoreOrderFailed
}

// OrderIntent is the planned, not-yet-submitted order for one store.
type OrderIntent struct {
	TransactionID string
	StoreDomain   string
	Items         []CartItem
	Buyer         BuyerContact
}

// RemoteOrder is the identity a store's backend assigns on success.
type RemoteOrder struct {
	ID     string
	Number string
}
