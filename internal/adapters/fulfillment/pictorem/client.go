// Package pictorem submits print orders to the Pictorem order API.
package pictorem

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/phenrril/printshop/internal/domain"
)

const DefaultBaseURL = "https://www.pictorem.com/artflow"

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

type orderItem struct {
	Preorder string `json:"preordercode"`
	Quantity int64  `json:"quantity"`
	ImageURL string `json:"imageurl"`
	Ref      string `json:"ref"`
}

type delivery struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2,omitempty"`
	City      string `json:"city"`
	Province  string `json:"province"`
	Country   string `json:"country"`
	Postal    string `json:"postalcode"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email"`
}

type orderRequest struct {
	OrderRef string      `json:"orderref"`
	Delivery delivery    `json:"delivery"`
	Items    []orderItem `json:"orderitems"`
}

type orderResponse struct {
	Status  bool     `json:"status"`
	OrderID string   `json:"orderid"`
	Msg     []string `json:"msg"`
}

// SubmitOrder places one partner order. Reference and IdempotencyKey are both
// derived from the payment session, so resubmitting a failed order is safe.
func (c *Client) SubmitOrder(ctx context.Context, o domain.FulfillmentOrder) (*domain.PartnerReceipt, error) {
	if c.apiKey == "" {
		return nil, errors.New("pictorem: api key missing (PICTOREM_API_KEY)")
	}
	if len(o.Prints) == 0 {
		return nil, errors.New("pictorem: order has no prints")
	}
	first, last := splitName(o.Shipping.Name)
	req := orderRequest{
		OrderRef: o.Reference,
		Delivery: delivery{
			FirstName: first,
			LastName:  last,
			Address1:  o.Shipping.Line1,
			Address2:  o.Shipping.Line2,
			City:      o.Shipping.City,
			Province:  o.Shipping.State,
			Country:   o.Shipping.Country,
			Postal:    o.Shipping.PostalCode,
			Phone:     o.Shipping.Phone,
			Email:     o.CustomerEmail,
		},
	}
	for i, p := range o.Prints {
		req.Items = append(req.Items, orderItem{
			Preorder: p.PreorderCode,
			Quantity: p.Quantity,
			ImageURL: p.SourceURL,
			Ref:      fmt.Sprintf("%s-%d", o.Reference, i+1),
		})
	}
	buf, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("pictorem: encode order: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/0.1/sendorder", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("artFlowKey", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if o.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", o.IdempotencyKey)
	}
	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("pictorem: connect: %w", err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("pictorem: read response: %w", err)
	}
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("pictorem: status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	var out orderResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("pictorem: decode response: %w", err)
	}
	if !out.Status || out.OrderID == "" {
		msg := strings.Join(out.Msg, "; ")
		if msg == "" {
			msg = "order rejected"
		}
		return nil, fmt.Errorf("pictorem: %s", msg)
	}
	return &domain.PartnerReceipt{OrderID: out.OrderID}, nil
}

func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	i := strings.LastIndex(full, " ")
	if i < 0 {
		return full, ""
	}
	return full[:i], full[i+1:]
}
