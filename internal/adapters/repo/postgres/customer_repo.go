package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/phenrril/printshop/internal/domain"
)

type CustomerRepo struct{ db *gorm.DB }

func NewCustomerRepo(db *gorm.DB) *CustomerRepo { return &CustomerRepo{db: db} }

// RecordOrder upserts on email in one statement, so concurrent first orders
// from the same buyer cannot collide. A replayed session id is not counted.
func (r *CustomerRepo) RecordOrder(ctx context.Context, o domain.CustomerOrder) error {
	if o.Email == "" {
		return errors.New("customer order without email")
	}
	c := domain.Customer{
		ID:            uuid.New(),
		Email:         o.Email,
		Name:          o.Name,
		Country:       o.Country,
		OrderCount:    1,
		LastSessionID: o.SessionID,
		LastOrderAt:   o.At,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "order_count"}, Value: gorm.Expr("customers.order_count + CASE WHEN customers.last_session_id = excluded.last_session_id THEN 0 ELSE 1 END")},
			{Column: clause.Column{Name: "name"}, Value: gorm.Expr("COALESCE(NULLIF(excluded.name, ''), customers.name)")},
			{Column: clause.Column{Name: "country"}, Value: gorm.Expr("COALESCE(NULLIF(excluded.country, ''), customers.country)")},
			{Column: clause.Column{Name: "last_session_id"}, Value: gorm.Expr("excluded.last_session_id")},
			{Column: clause.Column{Name: "last_order_at"}, Value: gorm.Expr("excluded.last_order_at")},
		},
	}).Create(&c).Error
}
