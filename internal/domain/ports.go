package domain

import (
	"context"
	"time"
)

// CheckoutLine is a line item as sent to the payment provider.
type CheckoutLine struct {
	Name        string
	Description string
	UnitAmount  int64
	Quantity    int64
	Metadata    map[string]string
}

type CheckoutSessionRequest struct {
	Lines           []CheckoutLine
	SuccessURL      string
	CancelURL       string
	CollectShipping bool
	CustomerEmail   string
	Metadata        map[string]string
	IdempotencyKey  string
}

type CheckoutSessionResult struct {
	ID  string
	URL string
}

// ChargeRequest charges a delegated payment token (ACP completion).
type ChargeRequest struct {
	Amount         int64
	Currency       string
	Token          string
	Email          string
	Shipping       *ShippingAddress
	Metadata       map[string]string
	IdempotencyKey string
}

type ChargeResult struct {
	ID     string
	Status string
}

type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSessionResult, error)
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// OriginalsStore is the blob store holding full-resolution originals.
// Exists returns (false, nil) only for a confirmed-missing key.
type OriginalsStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type FulfillmentPartner interface {
	SubmitOrder(ctx context.Context, order FulfillmentOrder) (*PartnerReceipt, error)
}

// FulfillmentLedger records each session once. Begin stores rec when no record
// exists for rec.SessionID and reports started=true; otherwise it returns the
// existing record and started=false.
type FulfillmentLedger interface {
	Begin(ctx context.Context, rec *FulfillmentRecord) (existing *FulfillmentRecord, started bool, err error)
	Update(ctx context.Context, rec *FulfillmentRecord) error
	Get(ctx context.Context, sessionID string) (*FulfillmentRecord, error)
	// Retryable lists records for which FulfillmentRecord.Retryable(staleBefore)
	// holds, oldest first.
	Retryable(ctx context.Context, staleBefore time.Time, limit int) ([]FulfillmentRecord, error)
}

type NotificationDispatcher interface {
	Dispatch(ctx context.Context, n OrderNotification) error
}
