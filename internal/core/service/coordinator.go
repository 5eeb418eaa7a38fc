package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vendoro/order-fanout/internal/core/domain"
	"github.com/vendoro/order-fanout/internal/port"
)

// PaymentConfirmation is the trigger event: an external payment
// provider reports a transaction as paid.
type PaymentConfirmation struct {
	TransactionID    string
	PaymentReference string
	PaidAmount       int64
	PaidAt           time.Time
}

// Coordinator fans a paid transaction out into per-store submissions,
// one concurrent task per distinct store, and derives the aggregate
// transaction status from the ledger once every task is terminal.
type Coordinator struct {
	transactions port.TransactionRepository
	ledger       port.OrderLedger
	registry     port.StoreRegistry
	guard        port.DispatchGuard
	submitter    *Submitter
	logger       *zap.Logger
}

func NewCoordinator(
	transactions port.TransactionRepository,
	ledger port.OrderLedger,
	registry port.StoreRegistry,
	guard port.DispatchGuard,
	submitter *Submitter,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		transactions: transactions,
		ledger:       ledger,
		registry:     registry,
		guard:        guard,
		submitter:    submitter,
		logger:       logger,
	}
}

// HandlePaymentConfirmation validates the trigger, marks the
// transaction paid and runs the fan-out. Redelivery of the event for
// a transaction that already reached a terminal state is a no-op.
func (c *Coordinator) HandlePaymentConfirmation(ctx context.Context, evt PaymentConfirmation) error {
	tx, err := c.transactions.GetByID(ctx, evt.TransactionID)
	if err != nil {
		return fmt.Errorf("load transaction %s: %w", evt.TransactionID, err)
	}
	if tx == nil {
		return fmt.Errorf("transaction %s: %w", evt.TransactionID, domain.ErrUnknownTransaction)
	}
	if evt.PaidAmount != tx.TotalAmount {
		return fmt.Errorf("transaction %s: paid %d, expected %d: %w",
			tx.ID, evt.PaidAmount, tx.TotalAmount, domain.ErrAmountMismatch)
	}

	if tx.Status.Terminal() {
		c.logger.Info("payment confirmation for settled transaction ignored",
			zap.String("transaction_id", tx.ID),
			zap.String("status", string(tx.Status)),
		)
		return nil
	}

	if tx.Status == domain.TransactionPending {
		if err := c.transactions.MarkPaid(ctx, tx.ID, evt.PaymentReference, evt.PaidAt); err != nil {
			return fmt.Errorf("mark transaction %s paid: %w", tx.ID, err)
		}
		tx.Status = domain.TransactionPaid
		tx.PaymentReference = evt.PaymentReference
		tx.PaidAt = evt.PaidAt
	}

	intents, err := Plan(*tx)
	if err != nil {
		return err
	}
	return c.run(ctx, tx, intents)
}

// Resubmit re-runs the fan-out for a transaction whose earlier run
// left failed or pending pairs. It is an explicitly invoked operation,
// never scheduled; confirmed pairs are left untouched.
func (c *Coordinator) Resubmit(ctx context.Context, transactionID string) error {
	tx, err := c.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("load transaction %s: %w", transactionID, err)
	}
	if tx == nil {
		return fmt.Errorf("transaction %s: %w", transactionID, domain.ErrUnknownTransaction)
	}
	if tx.Status == domain.TransactionPending {
		return fmt.Errorf("resubmit transaction %s in status %s: %w", tx.ID, tx.Status, domain.ErrInvalidState)
	}
	if tx.Status == domain.TransactionFulfilled {
		return nil
	}

	return c.run(ctx, tx, groupByStore(*tx))
}

func (c *Coordinator) run(ctx context.Context, tx *domain.Transaction, intents []domain.OrderIntent) error {
	if len(intents) == 0 {
		// Empty cart: vacuous success, zero ledger rows.
		return c.settle(ctx, tx, true)
	}

	existing, err := c.ledgerByDomain(ctx, tx.ID)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	log := c.logger.With(
		zap.String("transaction_id", tx.ID),
		zap.String("run_id", runID),
	)
	log.Info("dispatching fan-out", zap.Int("stores", len(intents)))

	var (
		wg       sync.WaitGroup
		complete atomic.Bool
		runErr   error
	)
	complete.Store(true)

	for _, intent := range intents {
		if row, ok := existing[intent.StoreDomain]; ok && row.Status == domain.StoreOrderConfirmed {
			continue
		}

		acquired, err := c.guard.TryAcquire(ctx, tx.ID, intent.StoreDomain, runID)
		if err != nil {
			runErr = fmt.Errorf("acquire dispatch guard for %s/%s: %w", tx.ID, intent.StoreDomain, err)
			break
		}
		if !acquired {
			// Another run owns this pair; its outcome will settle the
			// transaction, not ours.
			log.Info("submission already in flight, skipping",
				zap.String("store_domain", intent.StoreDomain))
			complete.Store(false)
			continue
		}

		if err := c.ledger.EnsurePending(ctx, tx.ID, intent.StoreDomain); err != nil {
			c.releaseGuard(tx.ID, intent.StoreDomain, runID)
			runErr = fmt.Errorf("ensure pending row for %s/%s: %w", tx.ID, intent.StoreDomain, err)
			break
		}

		wg.Add(1)
		go func(intent domain.OrderIntent) {
			defer wg.Done()
			defer c.releaseGuard(tx.ID, intent.StoreDomain, runID)

			if !c.dispatch(ctx, intent, log) {
				complete.Store(false)
			}
		}(intent)
	}

	// Already-spawned submissions run to their terminal outcome even
	// when a later pair errored; the run just never settles on them.
	wg.Wait()
	if runErr != nil {
		return runErr
	}
	return c.settle(ctx, tx, complete.Load())
}

// dispatch resolves the store and submits one intent. Returns whether
// the pair reached a terminal state.
func (c *Coordinator) dispatch(ctx context.Context, intent domain.OrderIntent, log *zap.Logger) bool {
	store, err := c.registry.Resolve(ctx, intent.StoreDomain)
	if err != nil {
		// An unresolvable store fails its own pair only, like a
		// missing credential; other stores proceed.
		row := domain.StoreOrder{
			TransactionID: intent.TransactionID,
			StoreDomain:   intent.StoreDomain,
			Status:        domain.StoreOrderFailed,
			ErrorMessage:  err.Error(),
		}
		if uerr := c.ledger.UpsertTerminal(ctx, row); uerr != nil {
			log.Error("failed to record unresolvable store",
				zap.Error(uerr), zap.String("store_domain", intent.StoreDomain))
			return false
		}
		log.Warn("store unresolvable, pair failed",
			zap.Error(err), zap.String("store_domain", intent.StoreDomain))
		return true
	}

	row, err := c.submitter.Submit(ctx, intent, *store)
	if err != nil {
		log.Warn("submission did not reach a terminal state",
			zap.Error(err), zap.String("store_domain", intent.StoreDomain))
		return false
	}
	return row.Status.Terminal()
}

// settle derives the aggregate status from the ledger and applies it.
// It only acts when every dispatched pair is terminal; partial result
// sets never move the transaction.
func (c *Coordinator) settle(ctx context.Context, tx *domain.Transaction, complete bool) error {
	if !complete {
		c.logger.Info("fan-out incomplete, transaction left as is",
			zap.String("transaction_id", tx.ID),
			zap.String("status", string(tx.Status)),
		)
		return nil
	}

	rows, err := c.ledger.ListByTransaction(ctx, tx.ID)
	if err != nil {
		return fmt.Errorf("list ledger for %s: %w", tx.ID, err)
	}

	derived := domain.DeriveStatus(rows)
	if derived == tx.Status || !domain.CanTransition(tx.Status, derived) {
		return nil
	}

	applied, err := c.transactions.UpdateStatus(ctx, tx.ID, tx.Status, derived)
	if err != nil {
		return fmt.Errorf("update transaction %s status: %w", tx.ID, err)
	}
	if !applied {
		c.logger.Warn("transaction status changed concurrently, not applied",
			zap.String("transaction_id", tx.ID),
			zap.String("derived", string(derived)),
		)
		return nil
	}

	c.logger.Info("transaction settled",
		zap.String("transaction_id", tx.ID),
		zap.String("status", string(derived)),
		zap.Int("store_orders", len(rows)),
	)
	return nil
}

func (c *Coordinator) ledgerByDomain(ctx context.Context, transactionID string) (map[string]domain.StoreOrder, error) {
	rows, err := c.ledger.ListByTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list ledger for %s: %w", transactionID, err)
	}
	byDomain := make(map[string]domain.StoreOrder, len(rows))
	for _, r := range rows {
		byDomain[r.StoreDomain] = r
	}
	return byDomain, nil
}

// releaseGuard runs on a fresh context so shutdown does not leave the
// pair locked until the guard TTL expires.
func (c *Coordinator) releaseGuard(transactionID, storeDomain, owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.guard.Release(ctx, transactionID, storeDomain, owner); err != nil {
		c.logger.Warn("failed to release dispatch guard",
			zap.Error(err),
			zap.String("transaction_id", transactionID),
			zap.String("store_domain", storeDomain),
		)
	}
}
