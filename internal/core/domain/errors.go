package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when an operation requires a
	// transaction state it is not in. Never retried.
	ErrInvalidState = errors.New("transaction not in required state")

	// ErrMissingCredential marks a store without an admin token.
	// Terminal for that store, does not block others.
	ErrMissingCredential = errors.New("store has no admin credential")

	// ErrUnknownTransaction rejects a trigger for an id with no
	// matching transaction.
	ErrUnknownTransaction = errors.New("unknown transaction")

	// ErrAmountMismatch rejects a trigger whose paid amount differs
	// from the transaction total.
	ErrAmountMismatch = errors.New("paid amount does not match transaction total")

	// ErrStoreNotFound is returned by the registry for an unknown
	// store domain.
	ErrStoreNotFound = errors.New("store not found")
)

// RemoteError is a failure reported by a store's order-creation API.
// Message holds the remote error text verbatim.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote store error (status %d): %s", e.StatusCode, e.Message)
}

// Transient reports whether the failure is worth retrying: 5xx and
// rate limiting are, other 4xx validation failures are not.
func (e *RemoteError) Transient() bool {
	if e.StatusCode == 429 {
		return true
	}
	return e.StatusCode >= 500
}

// IsTransient classifies any submission error. Remote errors carry
// their own class; everything else (network failure, timeout) is
// treated as transient.
func IsTransient(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Transient()
	}
	return true
}
