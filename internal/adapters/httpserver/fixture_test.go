package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/printshop/internal/adapters/acpstore"
	"github.com/phenrril/printshop/internal/adapters/ledger/redisledger"
	"github.com/phenrril/printshop/internal/adapters/payments/stripepay"
	"github.com/phenrril/printshop/internal/catalog"
	"github.com/phenrril/printshop/internal/domain"
	"github.com/phenrril/printshop/internal/pricing"
	"github.com/phenrril/printshop/internal/usecase"
)

const (
	webhookSecret = "whsec_test"
	adminKey      = "admin-secret"
	acpKey        = "acp-secret"
)

var photos = []domain.Photo{
	{ID: "dune_sunrise", Title: "Dune Sunrise", CollectionID: "deserts", CollectionTitle: "Deserts", Filename: "dune-sunrise.jpg", PixelWidth: 6000, PixelHeight: 4000},
	{ID: "harbor-fog", Title: "Harbor Fog", CollectionID: "coast", Filename: "harbor-fog.tif", PixelWidth: 4000, PixelHeight: 6000},
}

type photoRepo struct{}

func (photoRepo) List(context.Context) ([]domain.Photo, error) {
	return append([]domain.Photo(nil), photos...), nil
}

func (photoRepo) FindByID(_ context.Context, id string) (*domain.Photo, error) {
	for _, p := range photos {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

type gateway struct {
	mu       sync.Mutex
	sessions []domain.CheckoutSessionRequest
	charges  []domain.ChargeRequest
}

func (g *gateway) CreateCheckoutSession(_ context.Context, req domain.CheckoutSessionRequest) (*domain.CheckoutSessionResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions = append(g.sessions, req)
	return &domain.CheckoutSessionResult{ID: "cs_live_1", URL: "https://checkout.stripe.test/cs_live_1"}, nil
}

func (g *gateway) Charge(_ context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges = append(g.charges, req)
	return &domain.ChargeResult{ID: "pi_1", Status: "succeeded"}, nil
}

type originals struct{ missing map[string]bool }

func (o *originals) Exists(_ context.Context, key string) (bool, error) { return !o.missing[key], nil }

func (o *originals) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://originals.test/" + key, nil
}

type partner struct {
	mu     sync.Mutex
	orders []domain.FulfillmentOrder
	err    error
}

func (p *partner) SubmitOrder(_ context.Context, o domain.FulfillmentOrder) (*domain.PartnerReceipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, o)
	if p.err != nil {
		return nil, p.err
	}
	return &domain.PartnerReceipt{OrderID: "PO-9"}, nil
}

func (p *partner) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.orders)
}

type dispatcher struct {
	mu   sync.Mutex
	sent []domain.OrderNotification
}

func (d *dispatcher) Dispatch(_ context.Context, n domain.OrderNotification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	return nil
}

type customers struct {
	mu sync.Mutex
	m  map[string]domain.Customer
}

func (c *customers) RecordOrder(_ context.Context, o domain.CustomerOrder) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cu := c.m[o.Email]
	cu.Email = o.Email
	if cu.LastSessionID != o.SessionID {
		cu.OrderCount++
		cu.LastSessionID = o.SessionID
	}
	c.m[o.Email] = cu
	return nil
}

type fixture struct {
	handler   http.Handler
	gateway   *gateway
	originals *originals
	partner   *partner
	notify    *dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{
		gateway:   &gateway{},
		originals: &originals{missing: map[string]bool{}},
		partner:   &partner{},
		notify:    &dispatcher{},
	}
	projector := catalog.NewProjector(pricing.DefaultTable(), "https://shop.test")
	cat := &usecase.CatalogUC{Photos: photoRepo{}, Projector: projector}
	gws := usecase.Gateways{Live: f.gateway}

	f.handler = New(Deps{
		Catalog:  cat,
		Checkout: &usecase.CheckoutUC{Gateways: gws, Originals: f.originals, Projector: projector},
		Fulfillment: &usecase.FulfillmentUC{
			Ledger:     redisledger.New(rdb, "test"),
			Partner:    f.partner,
			Originals:  f.originals,
			Customers:  &customers{m: map[string]domain.Customer{}},
			Dispatcher: f.notify,
		},
		ACP: &usecase.ACPUC{
			Catalog:   cat,
			Sessions:  acpstore.NewMemoryStore(),
			Gateways:  gws,
			Originals: f.originals,
			Config: usecase.ACPConfig{
				MerchantName:  "Dunes Studio",
				Currency:      "usd",
				TaxRate:       decimal.Zero,
				ShippingCents: 1500,
				BaseURL:       "https://shop.test",
			},
		},
		Webhooks:    stripepay.NewWebhookVerifier(webhookSecret),
		AdminAPIKey: adminKey,
		ACPAPIKey:   acpKey,
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "203.0.113.7:4444"
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}
