package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vendoro/order-fanout/internal/core/domain"
	"github.com/vendoro/order-fanout/internal/core/service"
	"github.com/vendoro/order-fanout/internal/port"
)

// HTTPHandler exposes the read-only diagnostic surface over the
// transaction and ledger records, plus the explicit resubmit trigger.
type HTTPHandler struct {
	transactions port.TransactionRepository
	ledger       port.OrderLedger
	coordinator  *service.Coordinator
	logger       *zap.Logger
}

func NewHTTPHandler(transactions port.TransactionRepository, ledger port.OrderLedger, coordinator *service.Coordinator, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		transactions: transactions,
		ledger:       ledger,
		coordinator:  coordinator,
		logger:       logger,
	}
}

// Register wires routes onto the mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /api/transactions", h.ListTransactions)
	mux.HandleFunc("GET /api/transactions/{id}", h.GetTransaction)
	mux.HandleFunc("POST /api/transactions/{id}/resubmit", h.Resubmit)
	mux.HandleFunc("GET /api/store-orders", h.ListStoreOrders)
}

type storeOrderResponse struct {
	TransactionID     string    `json:"transaction_id"`
	StoreDomain       string    `json:"store_domain"`
	Status            string    `json:"status"`
	RemoteOrderID     string    `json:"remote_order_id,omitempty"`
	RemoteOrderNumber string    `json:"remote_order_number,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	AttemptCount      int       `json:"attempt_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type cartItemResponse struct {
	StoreDomain string `json:"store_domain"`
	ProductRef  string `json:"product_ref"`
	VariantRef  string `json:"variant_ref"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
}

type transactionResponse struct {
	ID               string               `json:"id"`
	Status           string               `json:"status"`
	DerivedStatus    string               `json:"derived_status"`
	TotalAmount      int64                `json:"total_amount"`
	Currency         string               `json:"currency"`
	PaymentReference string               `json:"payment_reference,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	PaidAt           *time.Time           `json:"paid_at,omitempty"`
	Items            []cartItemResponse   `json:"items"`
	StoreOrders      []storeOrderResponse `json:"store_orders"`
}

type transactionSummary struct {
	ID               string     `json:"id"`
	Status           string     `json:"status"`
	TotalAmount      int64      `json:"total_amount"`
	Currency         string     `json:"currency"`
	PaymentReference string     `json:"payment_reference,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "status query parameter required"})
		return
	}

	txs, err := h.transactions.ListTransactionsByStatus(r.Context(), domain.TransactionStatus(status))
	if err != nil {
		h.logger.Error("failed to list transactions", zap.Error(err), zap.String("status", status))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	resp := make([]transactionSummary, 0, len(txs))
	for _, tx := range txs {
		s := transactionSummary{
			ID:               tx.ID,
			Status:           string(tx.Status),
			TotalAmount:      tx.TotalAmount,
			Currency:         tx.Currency,
			PaymentReference: tx.PaymentReference,
			CreatedAt:        tx.CreatedAt,
		}
		if !tx.PaidAt.IsZero() {
			paidAt := tx.PaidAt
			s.PaidAt = &paidAt
		}
		resp = append(resp, s)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	tx, err := h.transactions.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load transaction", zap.Error(err), zap.String("id", id))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	if tx == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "transaction not found"})
		return
	}

	orders, err := h.ledger.ListByTransaction(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load store orders", zap.Error(err), zap.String("id", id))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	// The ledger derivation is only meaningful once the transaction is
	// paid; before that an empty row set would read as fulfilled.
	derived := tx.Status
	if tx.Status != domain.TransactionPending {
		derived = domain.DeriveStatus(orders)
	}

	resp := transactionResponse{
		ID:               tx.ID,
		Status:           string(tx.Status),
		DerivedStatus:    string(derived),
		TotalAmount:      tx.TotalAmount,
		Currency:         tx.Currency,
		PaymentReference: tx.PaymentReference,
		CreatedAt:        tx.CreatedAt,
		Items:            make([]cartItemResponse, 0, len(tx.Items)),
		StoreOrders:      make([]storeOrderResponse, 0, len(orders)),
	}
	if !tx.PaidAt.IsZero() {
		paidAt := tx.PaidAt
		resp.PaidAt = &paidAt
	}
	for _, item := range tx.Items {
		resp.Items = append(resp.Items, cartItemResponse{
			StoreDomain: item.StoreDomain,
			ProductRef:  item.ProductRef,
			VariantRef:  item.VariantRef,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	for _, o := range orders {
		resp.StoreOrders = append(resp.StoreOrders, toStoreOrderResponse(o))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	err := h.coordinator.Resubmit(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownTransaction) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "transaction not found"})
			return
		}
		if errors.Is(err, domain.ErrInvalidState) {
			writeJSON(w, http.StatusConflict, errorResponse{Error: "transaction is not paid yet"})
			return
		}
		h.logger.Error("resubmit failed", zap.Error(err), zap.String("id", id))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "resubmitted"})
}

func (h *HTTPHandler) ListStoreOrders(w http.ResponseWriter, r *http.Request) {
	storeDomain := r.URL.Query().Get("domain")
	status := r.URL.Query().Get("status")

	var (
		orders []domain.StoreOrder
		err    error
	)
	switch {
	case storeDomain != "":
		orders, err = h.ledger.ListByDomain(r.Context(), storeDomain)
	case status != "":
		orders, err = h.ledger.ListByStatus(r.Context(), domain.StoreOrderStatus(status))
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "domain or status query parameter required"})
		return
	}
	if err != nil {
		h.logger.Error("failed to list store orders", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	resp := make([]storeOrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toStoreOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toStoreOrderResponse(o domain.StoreOrder) storeOrderResponse {
	return storeOrderResponse{
		TransactionID:     o.TransactionID,
		StoreDomain:       o.StoreDomain,
		Status:            string(o.Status),
		RemoteOrderID:     o.RemoteOrderID,
		RemoteOrderNumber: o.RemoteOrderNumber,
		ErrorMessage:      o.ErrorMessage,
		AttemptCount:      o.AttemptCount,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
