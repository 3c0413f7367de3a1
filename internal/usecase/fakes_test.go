package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/phenrril/printshop/internal/catalog"
	"github.com/phenrril/printshop/internal/domain"
	"github.com/phenrril/printshop/internal/pricing"
)

var testPhotos = []domain.Photo{
	{ID: "dune_sunrise", Title: "Dune Sunrise", CollectionID: "deserts", CollectionTitle: "Deserts", Filename: "dune-sunrise.jpg", PixelWidth: 6000, PixelHeight: 4000},
	{ID: "harbor-fog", Title: "Harbor Fog", CollectionID: "coast", Filename: "harbor-fog.tif", PixelWidth: 4000, PixelHeight: 6000},
	{ID: "tiny", Title: "Tiny", CollectionID: "coast", Filename: "tiny.jpg", PixelWidth: 800, PixelHeight: 600},
}

type photoRepo struct{ photos []domain.Photo }

func (r *photoRepo) List(context.Context) ([]domain.Photo, error) {
	return append([]domain.Photo(nil), r.photos...), nil
}

func (r *photoRepo) FindByID(_ context.Context, id string) (*domain.Photo, error) {
	for _, p := range r.photos {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func newCatalogUC() *CatalogUC {
	return &CatalogUC{
		Photos:    &photoRepo{photos: testPhotos},
		Projector: catalog.NewProjector(pricing.DefaultTable(), "https://shop.test"),
	}
}

type gateway struct {
	mu       sync.Mutex
	name     string
	sessions []domain.CheckoutSessionRequest
	charges  []domain.ChargeRequest
	err      error
	status   string
}

func (g *gateway) CreateCheckoutSession(_ context.Context, req domain.CheckoutSessionRequest) (*domain.CheckoutSessionResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.sessions = append(g.sessions, req)
	return &domain.CheckoutSessionResult{ID: "cs_" + g.name, URL: "https://pay.test/" + g.name}, nil
}

func (g *gateway) Charge(_ context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.charges = append(g.charges, req)
	status := g.status
	if status == "" {
		status = "succeeded"
	}
	return &domain.ChargeResult{ID: "pi_" + g.name, Status: status}, nil
}

type originals struct {
	missing map[string]bool
	err     error
	checked []string
}

func (o *originals) Exists(_ context.Context, key string) (bool, error) {
	o.checked = append(o.checked, key)
	if o.err != nil {
		return false, o.err
	}
	return !o.missing[key], nil
}

func (o *originals) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if o.err != nil {
		return "", o.err
	}
	return "https://originals.test/" + key + "?sig=1", nil
}

type ledger struct {
	mu      sync.Mutex
	records map[string]domain.FulfillmentRecord
	err     error
}

func newLedger() *ledger { return &ledger{records: map[string]domain.FulfillmentRecord{}} }

func (l *ledger) Begin(_ context.Context, rec *domain.FulfillmentRecord) (*domain.FulfillmentRecord, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, false, l.err
	}
	if cur, ok := l.records[rec.SessionID]; ok {
		return &cur, false, nil
	}
	l.records[rec.SessionID] = *rec
	return nil, true, nil
}

// Update fails on a done context, like a network-backed ledger.
func (l *ledger) Update(ctx context.Context, rec *domain.FulfillmentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[rec.SessionID] = *rec
	return nil
}

func (l *ledger) Get(_ context.Context, id string) (*domain.FulfillmentRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (l *ledger) Retryable(_ context.Context, staleBefore time.Time, _ int) ([]domain.FulfillmentRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.FulfillmentRecord
	for _, r := range l.records {
		if r.Retryable(staleBefore) {
			out = append(out, r)
		}
	}
	return out, nil
}

type partner struct {
	mu       sync.Mutex
	orders   []domain.FulfillmentOrder
	err      error
	onSubmit func(ctx context.Context)
}

func (p *partner) SubmitOrder(ctx context.Context, o domain.FulfillmentOrder) (*domain.PartnerReceipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.onSubmit != nil {
		p.onSubmit(ctx)
	}
	p.orders = append(p.orders, o)
	if p.err != nil {
		return nil, p.err
	}
	return &domain.PartnerReceipt{OrderID: "PO-1"}, nil
}

type dispatcher struct {
	mu   sync.Mutex
	sent []domain.OrderNotification
	err  error
}

func (d *dispatcher) Dispatch(_ context.Context, n domain.OrderNotification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	return d.err
}

type customers struct {
	byEmail map[string]domain.Customer
}

func (c *customers) RecordOrder(_ context.Context, o domain.CustomerOrder) error {
	cu, ok := c.byEmail[o.Email]
	if !ok {
		cu = domain.Customer{Email: o.Email}
	}
	if o.Name != "" {
		cu.Name = o.Name
	}
	if o.Country != "" {
		cu.Country = o.Country
	}
	if cu.LastSessionID != o.SessionID {
		cu.OrderCount++
		cu.LastSessionID = o.SessionID
	}
	cu.LastOrderAt = o.At
	c.byEmail[o.Email] = cu
	return nil
}

type sessionStore struct {
	m map[string]domain.ACPSession
}

func (s *sessionStore) Get(_ context.Context, id string) (*domain.ACPSession, error) {
	v, ok := s.m[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &v, nil
}

func (s *sessionStore) Put(_ context.Context, v *domain.ACPSession) error {
	s.m[v.ID] = *v
	return nil
}

var errBoom = errors.New("boom")
