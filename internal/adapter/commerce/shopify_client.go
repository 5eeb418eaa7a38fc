package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vendoro/order-fanout/internal/core/domain"
)

const defaultAPIVersion = "2024-01"

// ShopifyClient creates orders through a store's admin API. One call
// per attempt; retry is the submitter's job, not the client's.
type ShopifyClient struct {
	http       *http.Client
	apiVersion string

	// baseURL overrides the per-store URL; tests point it at a local
	// server, production leaves it empty.
	baseURL string
}

func NewShopifyClient(timeout time.Duration) *ShopifyClient {
	return &ShopifyClient{
		http:       &http.Client{Timeout: timeout},
		apiVersion: defaultAPIVersion,
	}
}

type lineItemPayload struct {
	ProductRef string `json:"product_ref"`
	VariantRef string `json:"variant_ref"`
	Quantity   int    `json:"quantity"`
}

type orderPayload struct {
	Email     string            `json:"email"`
	Phone     string            `json:"phone,omitempty"`
	Note      string            `json:"note,omitempty"`
	LineItems []lineItemPayload `json:"line_items"`
}

type createOrderRequest struct {
	Order orderPayload `json:"order"`
}

type createOrderResponse struct {
	Order struct {
		ID          int64 `json:"id"`
		OrderNumber int64 `json:"order_number"`
	} `json:"order"`
}

func (c *ShopifyClient) CreateOrder(ctx context.Context, store domain.Store, intent domain.OrderIntent) (*domain.RemoteOrder, error) {
	items := make([]lineItemPayload, 0, len(intent.Items))
	for _, item := range intent.Items {
		items = append(items, lineItemPayload{
			ProductRef: item.ProductRef,
			VariantRef: item.VariantRef,
			Quantity:   item.Quantity,
		})
	}

	body, err := json.Marshal(createOrderRequest{Order: orderPayload{
		Email:     intent.Buyer.Email,
		Phone:     intent.Buyer.Phone,
		Note:      fmt.Sprintf("fan-out for transaction %s, buyer %s", intent.TransactionID, intent.Buyer.Name),
		LineItems: items,
	}})
	if err != nil {
		return nil, fmt.Errorf("encode order request: %w", err)
	}

	url := c.orderURL(store.Domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", store.AdminToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", store.Domain, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", store.Domain, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// The body text travels verbatim into the ledger row.
		return nil, &domain.RemoteError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(raw)),
		}
	}

	var parsed createOrderResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode order response from %s: %w", store.Domain, err)
	}

	return &domain.RemoteOrder{
		ID:     strconv.FormatInt(parsed.Order.ID, 10),
		Number: strconv.FormatInt(parsed.Order.OrderNumber, 10),
	}, nil
}

func (c *ShopifyClient) orderURL(storeDomain string) string {
	if c.baseURL != "" {
		return fmt.Sprintf("%s/admin/api/%s/orders.json", c.baseURL, c.apiVersion)
	}
	return fmt.Sprintf("https://%s/admin/api/%s/orders.json", storeDomain, c.apiVersion)
}
