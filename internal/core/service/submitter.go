package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vendoro/order-fanout/internal/core/domain"
	"github.com/vendoro/order-fanout/internal/port"
)

const defaultAttemptTimeout = 15 * time.Second

// Submitter executes one order intent against one store's backend.
// It owns the single ledger row keyed by its (transaction, store)
// pair and writes it exactly once, when the outcome is terminal.
type Submitter struct {
	client  port.CommerceClient
	ledger  port.OrderLedger
	policy  RetryPolicy
	timeout time.Duration
	logger  *zap.Logger

	// sleep is ctx-aware and replaceable in tests
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSubmitter(client port.CommerceClient, ledger port.OrderLedger, policy RetryPolicy, timeout time.Duration, logger *zap.Logger) *Submitter {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	return &Submitter{
		client:  client,
		ledger:  ledger,
		policy:  policy,
		timeout: timeout,
		logger:  logger,
		sleep:   sleepCtx,
	}
}

// Submit runs the intent to a terminal outcome and records it. A nil
// error means the returned row is terminal (confirmed or failed); the
// only error case is shutdown during backoff, which leaves the row
// pending for a later run.
func (s *Submitter) Submit(ctx context.Context, intent domain.OrderIntent, store domain.Store) (domain.StoreOrder, error) {
	row := domain.StoreOrder{
		TransactionID: intent.TransactionID,
		StoreDomain:   intent.StoreDomain,
		Status:        domain.StoreOrderPending,
	}

	if !store.CanReceiveOrders() {
		row.Status = domain.StoreOrderFailed
		row.ErrorMessage = domain.ErrMissingCredential.Error()
		if err := s.ledger.UpsertTerminal(ctx, row); err != nil {
			return row, fmt.Errorf("record missing credential for %s: %w", store.Domain, err)
		}
		s.logger.Warn("store order failed without dispatch",
			zap.String("transaction_id", intent.TransactionID),
			zap.String("store_domain", store.Domain),
			zap.String("reason", row.ErrorMessage),
		)
		return row, nil
	}

	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		row.AttemptCount = attempt

		remote, err := s.attempt(ctx, intent, store)
		if err == nil {
			row.Status = domain.StoreOrderConfirmed
			row.RemoteOrderID = remote.ID
			row.RemoteOrderNumber = remote.Number
			row.ErrorMessage = ""
			if err := s.ledger.UpsertTerminal(ctx, row); err != nil {
				return row, fmt.Errorf("record confirmed order for %s: %w", store.Domain, err)
			}
			s.logger.Info("store order confirmed",
				zap.String("transaction_id", intent.TransactionID),
				zap.String("store_domain", store.Domain),
				zap.String("remote_order_id", remote.ID),
				zap.Int("attempt", attempt),
			)
			return row, nil
		}

		lastErr = err
		if !domain.IsTransient(err) {
			break
		}

		s.logger.Warn("store order attempt failed",
			zap.Error(err),
			zap.String("transaction_id", intent.TransactionID),
			zap.String("store_domain", store.Domain),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.policy.MaxAttempts),
		)

		if attempt < s.policy.MaxAttempts {
			if err := s.sleep(ctx, s.policy.Delay(attempt)); err != nil {
				// Shutting down mid-backoff: no terminal write, the
				// pending row is picked up by a later run.
				return row, err
			}
		}
	}

	row.Status = domain.StoreOrderFailed
	row.ErrorMessage = errorText(lastErr)
	if err := s.ledger.UpsertTerminal(ctx, row); err != nil {
		return row, fmt.Errorf("record failed order for %s: %w", store.Domain, err)
	}
	s.logger.Error("store order failed",
		zap.String("transaction_id", intent.TransactionID),
		zap.String("store_domain", store.Domain),
		zap.Int("attempts", row.AttemptCount),
		zap.String("error", row.ErrorMessage),
	)
	return row, nil
}

// attempt makes exactly one remote call. The call runs on a context
// detached from shutdown cancellation so an in-flight order creation
// always completes or times out, never dies half-recorded.
func (s *Submitter) attempt(ctx context.Context, intent domain.OrderIntent, store domain.Store) (*domain.RemoteOrder, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	return s.client.CreateOrder(callCtx, store, intent)
}

// errorText prefers the remote message verbatim over the wrapper.
func errorText(err error) string {
	if err == nil {
		return ""
	}
	var re *domain.RemoteError
	if errors.As(err, &re) {
		return re.Message
	}
	return err.Error()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
