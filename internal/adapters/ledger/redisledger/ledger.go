// Package redisledger keeps the fulfillment ledger in Redis. SETNX on the
// session key is the idempotency guard.
package redisledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/phenrril/printshop/internal/domain"
)

// DefaultRetention keeps records well past the provider's redelivery window.
const DefaultRetention = 90 * 24 * time.Hour

type Ledger struct {
	rdb       redis.UniversalClient
	prefix    string
	retention time.Duration
}

func New(rdb redis.UniversalClient, prefix string) *Ledger {
	if prefix == "" {
		prefix = "printshop"
	}
	return &Ledger{rdb: rdb, prefix: prefix, retention: DefaultRetention}
}

func (l *Ledger) key(sessionID string) string { return l.prefix + ":fulfillment:" + sessionID }

// openKey indexes every session not yet submitted to the partner, scored by
// creation time.
func (l *Ledger) openKey() string { return l.prefix + ":fulfillment:open" }

func (l *Ledger) Begin(ctx context.Context, rec *domain.FulfillmentRecord) (*domain.FulfillmentRecord, bool, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, false, err
	}
	// index first so a started record is never missing from Retryable
	err = l.rdb.ZAddNX(ctx, l.openKey(), redis.Z{Score: float64(now.Unix()), Member: rec.SessionID}).Err()
	if err != nil {
		return nil, false, fmt.Errorf("redisledger: begin %s: %w", rec.SessionID, err)
	}
	ok, err := l.rdb.SetNX(ctx, l.key(rec.SessionID), b, l.retention).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redisledger: begin %s: %w", rec.SessionID, err)
	}
	if ok {
		return nil, true, nil
	}
	existing, err := l.Get(ctx, rec.SessionID)
	if err != nil {
		return nil, false, err
	}
	if existing.State.Submitted() {
		l.rdb.ZRem(ctx, l.openKey(), rec.SessionID)
	}
	return existing, false, nil
}

func (l *Ledger) Update(ctx context.Context, rec *domain.FulfillmentRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, l.key(rec.SessionID), b, redis.KeepTTL)
		if rec.State.Submitted() {
			p.ZRem(ctx, l.openKey(), rec.SessionID)
		} else {
			p.ZAdd(ctx, l.openKey(), redis.Z{Score: float64(rec.CreatedAt.Unix()), Member: rec.SessionID})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisledger: update %s: %w", rec.SessionID, err)
	}
	return nil
}

func (l *Ledger) Get(ctx context.Context, sessionID string) (*domain.FulfillmentRecord, error) {
	b, err := l.rdb.Get(ctx, l.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisledger: get %s: %w", sessionID, err)
	}
	var rec domain.FulfillmentRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("redisledger: decode %s: %w", sessionID, err)
	}
	return &rec, nil
}

func (l *Ledger) Retryable(ctx context.Context, staleBefore time.Time, limit int) ([]domain.FulfillmentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := l.rdb.ZRange(ctx, l.openKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redisledger: retryable: %w", err)
	}
	out := make([]domain.FulfillmentRecord, 0, min(limit, len(ids)))
	for _, id := range ids {
		rec, err := l.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			// expired record, drop the stale index entry
			l.rdb.ZRem(ctx, l.openKey(), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if rec.State.Submitted() {
			l.rdb.ZRem(ctx, l.openKey(), id)
			continue
		}
		if !rec.Retryable(staleBefore) {
			continue
		}
		out = append(out, *rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
