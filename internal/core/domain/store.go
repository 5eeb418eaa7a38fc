package domain

import "time"

// Store is a long-lived registry entry shared by many transactions.
// AdminToken may be empty: such a store can never receive fan-out
// orders and every submission to it fails with ErrMissingCredential.
type Store struct {
	Domain          string
	DisplayName     string
	StorefrontToken string
	AdminToken      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CanReceiveOrders reports whether the store holds the write
// credential required for order creation.
func (s Store) CanReceiveOrders() bool {
	return s.AdminToken != ""
}
