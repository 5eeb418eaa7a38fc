package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vendoro/order-fanout/internal/core/domain"
)

// In-memory fakes for the ports, shared by the submitter and
// coordinator tests.

type memTransactions struct {
	mu  sync.Mutex
	txs map[string]*domain.Transaction
}

func newMemTransactions(txs ...domain.Transaction) *memTransactions {
	m := &memTransactions{txs: make(map[string]*domain.Transaction)}
	for i := range txs {
		tx := txs[i]
		m.txs[tx.ID] = &tx
	}
	return m
}

func (m *memTransactions) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok {
		return nil, nil
	}
	cp := *tx
	return &cp, nil
}

func (m *memTransactions) MarkPaid(ctx context.Context, id, paymentReference string, paidAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok {
		return domain.ErrUnknownTransaction
	}
	if tx.Status == domain.TransactionPending {
		tx.Status = domain.TransactionPaid
		tx.PaymentReference = paymentReference
		tx.PaidAt = paidAt
	}
	return nil
}

func (m *memTransactions) UpdateStatus(ctx context.Context, id string, from, to domain.TransactionStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok || tx.Status != from {
		return false, nil
	}
	tx.Status = to
	return true, nil
}

func (m *memTransactions) ListTransactionsByStatus(ctx context.Context, status domain.TransactionStatus) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Transaction, 0)
	for _, tx := range m.txs {
		if tx.Status == status {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (m *memTransactions) status(id string) domain.TransactionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txs[id].Status
}

type memLedger struct {
	mu   sync.Mutex
	rows map[string]domain.StoreOrder
}

func newMemLedger() *memLedger {
	return &memLedger{rows: make(map[string]domain.StoreOrder)}
}

func ledgerKey(transactionID, storeDomain string) string {
	return transactionID + "|" + storeDomain
}

func (m *memLedger) EnsurePending(ctx context.Context, transactionID, storeDomain string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ledgerKey(transactionID, storeDomain)
	if _, ok := m.rows[key]; !ok {
		m.rows[key] = domain.StoreOrder{
			TransactionID: transactionID,
			StoreDomain:   storeDomain,
			Status:        domain.StoreOrderPending,
		}
	}
	return nil
}

func (m *memLedger) UpsertTerminal(ctx context.Context, order domain.StoreOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ledgerKey(order.TransactionID, order.StoreDomain)
	if existing, ok := m.rows[key]; ok && existing.Status == domain.StoreOrderConfirmed {
		return nil
	}
	m.rows[key] = order
	return nil
}

func (m *memLedger) ListByTransaction(ctx context.Context, transactionID string) ([]domain.StoreOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.StoreOrder, 0)
	for _, r := range m.rows {
		if r.TransactionID == transactionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memLedger) ListByDomain(ctx context.Context, storeDomain string) ([]domain.StoreOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.StoreOrder, 0)
	for _, r := range m.rows {
		if r.StoreDomain == storeDomain {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memLedger) ListByStatus(ctx context.Context, status domain.StoreOrderStatus) ([]domain.StoreOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.StoreOrder, 0)
	for _, r := range m.rows {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memLedger) row(transactionID, storeDomain string) (domain.StoreOrder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[ledgerKey(transactionID, storeDomain)]
	return r, ok
}

func (m *memLedger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memRegistry struct {
	stores map[string]domain.Store
}

func newMemRegistry(stores ...domain.Store) *memRegistry {
	m := &memRegistry{stores: make(map[string]domain.Store)}
	for _, s := range stores {
		m.stores[s.Domain] = s
	}
	return m
}

func (m *memRegistry) Resolve(ctx context.Context, storeDomain string) (*domain.Store, error) {
	s, ok := m.stores[storeDomain]
	if !ok {
		return nil, fmt.Errorf("store %s: %w", storeDomain, domain.ErrStoreNotFound)
	}
	return &s, nil
}

type memGuard struct {
	mu     sync.Mutex
	held   map[string]string
	denied map[string]bool
	fail   map[string]error
}

func newMemGuard() *memGuard {
	return &memGuard{
		held:   make(map[string]string),
		denied: make(map[string]bool),
		fail:   make(map[string]error),
	}
}

func (m *memGuard) TryAcquire(ctx context.Context, transactionID, storeDomain, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ledgerKey(transactionID, storeDomain)
	if err := m.fail[key]; err != nil {
		return false, err
	}
	if m.denied[key] {
		return false, nil
	}
	if _, ok := m.held[key]; ok {
		return false, nil
	}
	m.held[key] = owner
	return true, nil
}

func (m *memGuard) Release(ctx context.Context, transactionID, storeDomain, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ledgerKey(transactionID, storeDomain)
	if m.held[key] == owner {
		delete(m.held, key)
	}
	return nil
}

// fakeClient scripts per-store responses and counts remote calls.
type fakeClient struct {
	mu        sync.Mutex
	calls     map[string]int
	responses map[string][]fakeResponse
}

type fakeResponse struct {
	order *domain.RemoteOrder
	err   error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		calls:     make(map[string]int),
		responses: make(map[string][]fakeResponse),
	}
}

func (f *fakeClient) succeed(storeDomain, remoteID, remoteNumber string) {
	f.responses[storeDomain] = append(f.responses[storeDomain], fakeResponse{
		order: &domain.RemoteOrder{ID: remoteID, Number: remoteNumber},
	})
}

func (f *fakeClient) fail(storeDomain string, err error) {
	f.responses[storeDomain] = append(f.responses[storeDomain], fakeResponse{err: err})
}

func (f *fakeClient) CreateOrder(ctx context.Context, store domain.Store, intent domain.OrderIntent) (*domain.RemoteOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.calls[store.Domain]
	f.calls[store.Domain] = n + 1

	queue := f.responses[store.Domain]
	if len(queue) == 0 {
		return nil, fmt.Errorf("unscripted call to %s", store.Domain)
	}
	resp := queue[0]
	if len(queue) > 1 {
		f.responses[store.Domain] = queue[1:]
	}
	return resp.order, resp.err
}

func (f *fakeClient) callCount(storeDomain string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[storeDomain]
}

func (f *fakeClient) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}
