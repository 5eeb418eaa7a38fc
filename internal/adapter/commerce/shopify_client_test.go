package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendoro/order-fanout/internal/core/domain"
)

func testStore() domain.Store {
	return domain.Store{
		Domain:     "alpha.example",
		AdminToken: "shpat_test_token",
	}
}

func testIntent() domain.OrderIntent {
	return domain.OrderIntent{
		TransactionID: "tx-1",
		StoreDomain:   "alpha.example",
		Items: []domain.CartItem{
			{StoreDomain: "alpha.example", ProductRef: "prod-1", VariantRef: "var-1", Quantity: 2},
			{StoreDomain: "alpha.example", ProductRef: "prod-2", VariantRef: "var-2", Quantity: 1},
		},
		Buyer: domain.BuyerContact{Email: "buyer@example.com", Name: "Buyer", Phone: "+1555"},
	}
}

func newTestClient(srv *httptest.Server) *ShopifyClient {
	c := NewShopifyClient(time.Second)
	c.baseURL = srv.URL
	return c
}

func TestCreateOrder_Success(t *testing.T) {
	var gotPath, gotToken string
	var gotBody createOrderRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("X-Shopify-Access-Token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"order":{"id":123456789,"order_number":1033}}`))
	}))
	defer srv.Close()

	remote, err := newTestClient(srv).CreateOrder(context.Background(), testStore(), testIntent())
	require.NoError(t, err)

	assert.Equal(t, "123456789", remote.ID)
	assert.Equal(t, "1033", remote.Number)
	assert.Equal(t, "/admin/api/2024-01/orders.json", gotPath)
	assert.Equal(t, "shpat_test_token", gotToken)
	assert.Equal(t, "buyer@example.com", gotBody.Order.Email)
	require.Len(t, gotBody.Order.LineItems, 2)
	assert.Equal(t, "var-1", gotBody.Order.LineItems[0].VariantRef)
	assert.Equal(t, 2, gotBody.Order.LineItems[0].Quantity)
}

func TestCreateOrder_ValidationFailureIsPermanentWithVerbatimBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"errors":{"line_items":"variant is out of stock"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).CreateOrder(context.Background(), testStore(), testIntent())
	require.Error(t, err)

	var re *domain.RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusUnprocessableEntity, re.StatusCode)
	assert.Equal(t, `{"errors":{"line_items":"variant is out of stock"}}`, re.Message)
	assert.False(t, re.Transient())
}

func TestCreateOrder_RateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("throttled"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).CreateOrder(context.Background(), testStore(), testIntent())
	require.Error(t, err)

	var re *domain.RemoteError
	require.True(t, errors.As(err, &re))
	assert.True(t, re.Transient())
}

func TestCreateOrder_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).CreateOrder(context.Background(), testStore(), testIntent())
	require.Error(t, err)

	var re *domain.RemoteError
	require.True(t, errors.As(err, &re))
	assert.True(t, re.Transient())
	assert.True(t, domain.IsTransient(err))
}

func TestCreateOrder_TimeoutSurfacesAsPlainError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewShopifyClient(20 * time.Millisecond)
	c.baseURL = srv.URL

	_, err := c.CreateOrder(context.Background(), testStore(), testIntent())
	require.Error(t, err)

	var re *domain.RemoteError
	assert.False(t, errors.As(err, &re))
	assert.True(t, domain.IsTransient(err), "timeouts count as transient")
}
