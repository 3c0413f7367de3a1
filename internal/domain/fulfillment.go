package domain

import (
	"time"

	"github.com/google/uuid"
)

// FulfillmentState tracks one paid session through fulfillment.
// received -> mapped -> submitted -> notified, with submitted_failed and
// notified_failed as terminal failures.
type FulfillmentState string

const (
	StateReceived        FulfillmentState = "received"
	StateMapped          FulfillmentState = "mapped"
	StateSubmitted       FulfillmentState = "submitted"
	StateNotified        FulfillmentState = "notified"
	StateSubmittedFailed FulfillmentState = "submitted_failed"
	StateNotifiedFailed  FulfillmentState = "notified_failed"
)

// Submitted reports whether the partner order was already placed.
func (s FulfillmentState) Submitted() bool {
	switch s {
	case StateSubmitted, StateNotified, StateNotifiedFailed:
		return true
	}
	return false
}

// Retryable reports whether an operator may resubmit the record. A failed
// partner call always qualifies; a record that stopped before submission
// qualifies once it has been idle since staleBefore.
func (r FulfillmentRecord) Retryable(staleBefore time.Time) bool {
	switch r.State {
	case StateSubmittedFailed:
		return true
	case StateReceived, StateMapped:
		return r.UpdatedAt.Before(staleBefore)
	}
	return false
}

// PaymentEvent is a verified completed-payment notification.
type PaymentEvent struct {
	EventID       string
	SessionID     string
	Livemode      bool
	Paid          bool
	Metadata      map[string]string
	CustomerEmail string
	CustomerName  string
	Shipping      *ShippingAddress
	AmountTotal   int64
	Currency      string
}

// PrintJob is one print line mapped for the fulfillment partner.
type PrintJob struct {
	PhotoID      string    `json:"photoId"`
	Material     Material  `json:"material"`
	Size         PrintSize `json:"size"`
	Quantity     int64     `json:"quantity"`
	PreorderCode string    `json:"preorderCode"`
	OriginalKey  string    `json:"originalKey"`
	SourceURL    string    `json:"-"`
}

// LicenseDelivery describes a digital download owed to the buyer.
type LicenseDelivery struct {
	PhotoID        string `json:"photoId"`
	Tier           string `json:"tier"`
	Format         string `json:"format"`
	Classification string `json:"classification"`
	Resolution     string `json:"resolution"`
	OriginalKey    string `json:"originalKey"`
}

// FulfillmentOrder is what gets sent to the print partner.
type FulfillmentOrder struct {
	Reference      string
	IdempotencyKey string
	CustomerEmail  string
	Shipping       ShippingAddress
	Prints         []PrintJob
}

type PartnerReceipt struct {
	OrderID string
}

// FulfillmentRecord is the idempotency ledger entry, keyed by provider session id.
type FulfillmentRecord struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID      string            `gorm:"size:200;uniqueIndex" json:"sessionId"`
	State          FulfillmentState  `gorm:"type:varchar(30);index" json:"state"`
	OrderType      OrderType         `gorm:"type:varchar(20)" json:"orderType"`
	Metadata       map[string]string `gorm:"type:jsonb;serializer:json" json:"metadata"`
	Shipping       *ShippingAddress  `gorm:"type:jsonb;serializer:json" json:"shipping,omitempty"`
	CustomerEmail  string            `gorm:"size:140" json:"customerEmail"`
	CustomerName   string            `gorm:"size:140" json:"customerName"`
	AmountTotal    int64             `json:"amountTotal"`
	Currency       string            `gorm:"size:8" json:"currency"`
	PartnerOrderID string            `gorm:"size:140" json:"partnerOrderId,omitempty"`
	LastError      string            `gorm:"type:text" json:"lastError,omitempty"`
	Attempts       int               `gorm:"not null;default:0" json:"attempts"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// OrderNotification is handed to the notification dispatcher after submission.
type OrderNotification struct {
	SessionID         string            `json:"sessionId"`
	OrderType         OrderType         `json:"orderType"`
	CustomerEmail     string            `json:"customerEmail"`
	CustomerName      string            `json:"customerName"`
	Items             []OrderItem       `json:"items"`
	Prints            []PrintJob        `json:"prints"`
	Licenses          []LicenseDelivery `json:"licenses"`
	Shipping          *ShippingAddress  `json:"shipping,omitempty"`
	AmountTotal       int64             `json:"amountTotal"`
	Currency          string            `json:"currency"`
	PartnerOrderID    string            `json:"partnerOrderId,omitempty"`
	FulfillmentFailed bool              `json:"fulfillmentFailed"`
	FailureReason     string            `json:"failureReason,omitempty"`
}
