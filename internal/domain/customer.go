package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Customer is a buyer seen on a completed payment.
type Customer struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email         string    `gorm:"size:140;uniqueIndex"`
	Name          string    `gorm:"size:140"`
	Country       string    `gorm:"size:4"`
	OrderCount    int       `gorm:"not null;default:0"`
	LastSessionID string    `gorm:"size:140"`
	LastOrderAt   time.Time
	CreatedAt     time.Time
}

// CustomerOrder is one paid session attributed to a buyer. Email is already
// normalized.
type CustomerOrder struct {
	Email     string
	Name      string
	Country   string
	SessionID string
	At        time.Time
}

type CustomerRepo interface {
	// RecordOrder creates the customer on first purchase and counts each
	// session once.
	RecordOrder(ctx context.Context, o CustomerOrder) error
}
