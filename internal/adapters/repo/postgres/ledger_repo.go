package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/phenrril/printshop/internal/domain"
)

// LedgerRepo is the fulfillment ledger used when Redis is not configured. The
// unique index on session_id makes Begin race-free across instances.
type LedgerRepo struct{ db *gorm.DB }

func NewLedgerRepo(db *gorm.DB) *LedgerRepo { return &LedgerRepo{db: db} }

func (r *LedgerRepo) Begin(ctx context.Context, rec *domain.FulfillmentRecord) (*domain.FulfillmentRecord, bool, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now()
	rec.CreatedAt, rec.UpdatedAt = now, now
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "session_id"}}, DoNothing: true}).
		Create(rec)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return nil, true, nil
	}
	existing, err := r.Get(ctx, rec.SessionID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *LedgerRepo) Update(ctx context.Context, rec *domain.FulfillmentRecord) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

func (r *LedgerRepo) Get(ctx context.Context, sessionID string) (*domain.FulfillmentRecord, error) {
	var rec domain.FulfillmentRecord
	if err := r.db.WithContext(ctx).First(&rec, "session_id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Retryable lists failed submissions and records stuck in received or
// mapped since before staleBefore, oldest first.
func (r *LedgerRepo) Retryable(ctx context.Context, staleBefore time.Time, limit int) ([]domain.FulfillmentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var list []domain.FulfillmentRecord
	err := r.db.WithContext(ctx).
		Where("state = ?", domain.StateSubmittedFailed).
		Or("state IN ? AND updated_at < ?", []domain.FulfillmentState{domain.StateReceived, domain.StateMapped}, staleBefore).
		Order("created_at asc").Limit(limit).
		Find(&list).Error
	return list, err
}
