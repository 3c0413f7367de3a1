package domain

import (
	"context"
	"time"
)

// ACPStatus is the lifecycle of an agentic commerce checkout session.
type ACPStatus string

const (
	ACPNotReady        ACPStatus = "not_ready"
	ACPReadyForPayment ACPStatus = "ready_for_payment"
	ACPCompleted       ACPStatus = "completed"
	ACPCanceled        ACPStatus = "canceled"
	ACPExpired         ACPStatus = "expired"
)

// Final reports whether the session no longer accepts changes.
func (s ACPStatus) Final() bool {
	return s == ACPCompleted || s == ACPCanceled || s == ACPExpired
}

type ACPItem struct {
	ID       string `json:"id" validate:"required"`
	Quantity int64  `json:"quantity" validate:"min=1,max=10"`
}

type ACPLineItem struct {
	ID         string  `json:"id"`
	Item       ACPItem `json:"item"`
	BaseAmount int64   `json:"base_amount"`
	Discount   int64   `json:"discount"`
	Subtotal   int64   `json:"subtotal"`
	Tax        int64   `json:"tax"`
	Total      int64   `json:"total"`
	Title      string  `json:"title,omitempty"`
}

type ACPAddress struct {
	Name       string `json:"name" validate:"required"`
	LineOne    string `json:"line_one" validate:"required"`
	LineTwo    string `json:"line_two,omitempty"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country" validate:"required,len=2"`
	PostalCode string `json:"postal_code" validate:"required"`
}

func (a ACPAddress) Shipping() ShippingAddress {
	return ShippingAddress{
		Name:       a.Name,
		Line1:      a.LineOne,
		Line2:      a.LineTwo,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

type ACPBuyer struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email" validate:"omitempty,email"`
}

type ACPFulfillmentOption struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Subtotal int64  `json:"subtotal"`
	Tax      int64  `json:"tax"`
	Total    int64  `json:"total"`
}

type ACPTotal struct {
	Type        string `json:"type"`
	DisplayText string `json:"display_text"`
	Amount      int64  `json:"amount"`
}

type ACPMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Content string `json:"content"`
}

type ACPLink struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type ACPOrder struct {
	ID                string `json:"id"`
	CheckoutSessionID string `json:"checkout_session_id"`
	PermalinkURL      string `json:"permalink_url"`
}

type ACPPaymentProvider struct {
	Provider                string   `json:"provider"`
	SupportedPaymentMethods []string `json:"supported_payment_methods"`
}

type ACPSession struct {
	ID                  string                 `json:"id"`
	Status              ACPStatus              `json:"status"`
	Currency            string                 `json:"currency"`
	Buyer               *ACPBuyer              `json:"buyer,omitempty"`
	PaymentProvider     ACPPaymentProvider     `json:"payment_provider"`
	LineItems           []ACPLineItem          `json:"line_items"`
	FulfillmentAddress  *ACPAddress            `json:"fulfillment_address,omitempty"`
	FulfillmentOptions  []ACPFulfillmentOption `json:"fulfillment_options"`
	FulfillmentOptionID string                 `json:"fulfillment_option_id,omitempty"`
	Totals              []ACPTotal             `json:"totals"`
	Messages            []ACPMessage           `json:"messages"`
	Links               []ACPLink              `json:"links"`
	Order               *ACPOrder              `json:"order,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
	ExpiresAt           time.Time              `json:"expires_at"`
}

// TotalAmount returns the "total" entry of Totals.
func (s *ACPSession) TotalAmount() int64 {
	for _, t := range s.Totals {
		if t.Type == "total" {
			return t.Amount
		}
	}
	return 0
}

type ACPSessionStore interface {
	Get(ctx context.Context, id string) (*ACPSession, error)
	Put(ctx context.Context, s *ACPSession) error
}
