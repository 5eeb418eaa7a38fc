package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vendoro/order-fanout/internal/core/domain"
)

// MySQLAdapter implements the transaction repository, the store
// registry and the order ledger on one database handle.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	var (
		tx     domain.Transaction
		paidAt sql.NullTime
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, status, total_amount, currency, buyer_email, buyer_name, buyer_phone,
		       payment_reference, created_at, paid_at
		FROM transactions WHERE id = ?`, id,
	).Scan(&tx.ID, &tx.Status, &tx.TotalAmount, &tx.Currency,
		&tx.Buyer.Email, &tx.Buyer.Name, &tx.Buyer.Phone,
		&tx.PaymentReference, &tx.CreatedAt, &paidAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query transaction: %w", err)
	}
	if paidAt.Valid {
		tx.PaidAt = paidAt.Time
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT store_domain, product_ref, variant_ref, quantity, unit_price
		FROM cart_items WHERE transaction_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.StoreDomain, &item.ProductRef, &item.VariantRef,
			&item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		tx.Items = append(tx.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart items: %w", err)
	}

	return &tx, nil
}

func (m *MySQLAdapter) MarkPaid(ctx context.Context, id, paymentReference string, paidAt time.Time) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = ?, payment_reference = ?, paid_at = ?
		WHERE id = ? AND status = ?`,
		domain.TransactionPaid, paymentReference, paidAt, id, domain.TransactionPending,
	)
	if err != nil {
		return fmt.Errorf("mark paid: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Already paid or further along; redelivered confirmations
		// must not rewind anything.
		var status string
		err := m.db.QueryRowContext(ctx,
			`SELECT status FROM transactions WHERE id = ?`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrUnknownTransaction
		}
		if err != nil {
			return fmt.Errorf("check transaction status: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) UpdateStatus(ctx context.Context, id string, from, to domain.TransactionStatus) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE transactions SET status = ? WHERE id = ? AND status = ?`,
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("update transaction status: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (m *MySQLAdapter) ListTransactionsByStatus(ctx context.Context, status domain.TransactionStatus) ([]domain.Transaction, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, status, total_amount, currency, buyer_email, buyer_name, buyer_phone,
		       payment_reference, created_at, paid_at
		FROM transactions WHERE status = ? ORDER BY created_at DESC`, status,
	)
	if err != nil {
		return nil, fmt.Errorf("query transactions by status: %w", err)
	}
	defer rows.Close()

	txs := make([]domain.Transaction, 0)
	for rows.Next() {
		var (
			tx     domain.Transaction
			paidAt sql.NullTime
		)
		if err := rows.Scan(&tx.ID, &tx.Status, &tx.TotalAmount, &tx.Currency,
			&tx.Buyer.Email, &tx.Buyer.Name, &tx.Buyer.Phone,
			&tx.PaymentReference, &tx.CreatedAt, &paidAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if paidAt.Valid {
			tx.PaidAt = paidAt.Time
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// Resolve loads a store with its credentials. Called once per
// orchestration run per store; never cached here, so a rotated token
// is picked up by the next run without a restart.
func (m *MySQLAdapter) Resolve(ctx context.Context, storeDomain string) (*domain.Store, error) {
	var (
		store      domain.Store
		adminToken sql.NullString
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT domain, display_name, storefront_token, admin_token, created_at, updated_at
		FROM stores WHERE domain = ?`, storeDomain,
	).Scan(&store.Domain, &store.DisplayName, &store.StorefrontToken,
		&adminToken, &store.CreatedAt, &store.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store %s: %w", storeDomain, domain.ErrStoreNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}
	store.AdminToken = adminToken.String
	return &store, nil
}

func (m *MySQLAdapter) EnsurePending(ctx context.Context, transactionID, storeDomain string) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO store_orders (transaction_id, store_domain, status, attempt_count, created_at, updated_at)
		VALUES (?, ?, ?, 0, NOW(), NOW())
		ON DUPLICATE KEY UPDATE transaction_id = transaction_id`,
		transactionID, storeDomain, domain.StoreOrderPending,
	)
	if err != nil {
		return fmt.Errorf("ensure pending store order: %w", err)
	}
	return nil
}

// UpsertTerminal records a terminal outcome for one pair. The unique
// (transaction_id, store_domain) key makes re-dispatch idempotent and
// the status guards keep a confirmed row from ever being downgraded.
// The status column is assigned last so every guard compares against
// the stored value.
func (m *MySQLAdapter) UpsertTerminal(ctx context.Context, order domain.StoreOrder) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO store_orders
			(transaction_id, store_domain, status, remote_order_id, remote_order_number,
			 error_message, attempt_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE
			remote_order_id     = IF(status = 'confirmed', remote_order_id, VALUES(remote_order_id)),
			remote_order_number = IF(status = 'confirmed', remote_order_number, VALUES(remote_order_number)),
			error_message       = IF(status = 'confirmed', error_message, VALUES(error_message)),
			attempt_count       = IF(status = 'confirmed', attempt_count, VALUES(attempt_count)),
			updated_at          = IF(status = 'confirmed', updated_at, NOW()),
			status              = IF(status = 'confirmed', status, VALUES(status))`,
		order.TransactionID, order.StoreDomain, order.Status,
		nullable(order.RemoteOrderID), nullable(order.RemoteOrderNumber),
		nullable(order.ErrorMessage), order.AttemptCount,
	)
	if err != nil {
		return fmt.Errorf("upsert store order: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListByTransaction(ctx context.Context, transactionID string) ([]domain.StoreOrder, error) {
	return m.listStoreOrders(ctx,
		`SELECT transaction_id, store_domain, status, remote_order_id, remote_order_number,
		        error_message, attempt_count, created_at, updated_at
		 FROM store_orders WHERE transaction_id = ? ORDER BY created_at`, transactionID)
}

func (m *MySQLAdapter) ListByDomain(ctx context.Context, storeDomain string) ([]domain.StoreOrder, error) {
	return m.listStoreOrders(ctx,
		`SELECT transaction_id, store_domain, status, remote_order_id, remote_order_number,
		        error_message, attempt_count, created_at, updated_at
		 FROM store_orders WHERE store_domain = ? ORDER BY created_at DESC`, storeDomain)
}

func (m *MySQLAdapter) ListByStatus(ctx context.Context, status domain.StoreOrderStatus) ([]domain.StoreOrder, error) {
	return m.listStoreOrders(ctx,
		`SELECT transaction_id, store_domain, status, remote_order_id, remote_order_number,
		        error_message, attempt_count, created_at, updated_at
		 FROM store_orders WHERE status = ? ORDER BY created_at DESC`, string(status))
}

func (m *MySQLAdapter) listStoreOrders(ctx context.Context, query string, arg any) ([]domain.StoreOrder, error) {
	rows, err := m.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query store orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.StoreOrder, 0)
	for rows.Next() {
		var (
			o                        domain.StoreOrder
			remoteID, remoteNum, msg sql.NullString
		)
		if err := rows.Scan(&o.TransactionID, &o.StoreDomain, &o.Status,
			&remoteID, &remoteNum, &msg, &o.AttemptCount,
			&o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan store order: %w", err)
		}
		o.RemoteOrderID = remoteID.String
		o.RemoteOrderNumber = remoteNum.String
		o.ErrorMessage = msg.String
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
