// Package httpserver exposes the storefront API, the payment webhook, the
// agentic commerce endpoints and the admin API over net/http.
package httpserver

import (
	"net/http"
	"net/netip"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/phenrril/printshop/internal/adapters/payments/stripepay"
	"github.com/phenrril/printshop/internal/usecase"
)

type Deps struct {
	Catalog     *usecase.CatalogUC
	Checkout    *usecase.CheckoutUC
	Fulfillment *usecase.FulfillmentUC
	ACP         *usecase.ACPUC
	Webhooks    *stripepay.WebhookVerifier
	AdminAPIKey string
	ACPAPIKey   string
	// TrustedProxies may set the client address through X-Forwarded-For.
	TrustedProxies []netip.Prefix
}

type Server struct {
	mux         *http.ServeMux
	catalog     *usecase.CatalogUC
	checkout    *usecase.CheckoutUC
	fulfillment *usecase.FulfillmentUC
	acp         *usecase.ACPUC
	webhooks    *stripepay.WebhookVerifier
	adminKey    string
	acpKey      string
	validator   *validator.Validate
}

func New(d Deps) http.Handler {
	s := &Server{
		mux:         http.NewServeMux(),
		catalog:     d.Catalog,
		checkout:    d.Checkout,
		fulfillment: d.Fulfillment,
		acp:         d.ACP,
		webhooks:    d.Webhooks,
		adminKey:    d.AdminAPIKey,
		acpKey:      d.ACPAPIKey,
		validator:   newValidator(),
	}
	if s.webhooks == nil {
		s.webhooks = stripepay.NewWebhookVerifier()
	}
	s.routes()
	return Chain(s.mux,
		RealIP(d.TrustedProxies),
		RequestID,
		Recovery,
		Logging,
		SecurityHeaders,
		RateLimit(120),
		PublicRateLimit(map[string]int{
			"/api/checkout":      10,
			"/webhooks/stripe":   120,
			"/checkout_sessions": 30,
		}),
	)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.mux.HandleFunc("GET /api/products", s.apiProducts)
	s.mux.HandleFunc("GET /api/products/{id}", s.apiProductByID)
	s.mux.HandleFunc("GET /api/collections", s.apiCollections)
	s.mux.HandleFunc("POST /api/checkout", s.apiCheckout)

	s.mux.HandleFunc("POST /webhooks/stripe", s.webhookStripe)

	s.mux.HandleFunc("GET /acp/feed.json", s.acpFeed)
	s.mux.Handle("POST /checkout_sessions", s.requireACP(s.acpCreate))
	s.mux.Handle("GET /checkout_sessions/{id}", s.requireACP(s.acpGet))
	s.mux.Handle("POST /checkout_sessions/{id}", s.requireACP(s.acpUpdate))
	s.mux.Handle("POST /checkout_sessions/{id}/complete", s.requireACP(s.acpComplete))
	s.mux.Handle("POST /checkout_sessions/{id}/cancel", s.requireACP(s.acpCancel))

	s.mux.Handle("GET /admin/fulfillments", s.requireAdmin(s.adminFailedFulfillments))
	s.mux.Handle("GET /admin/fulfillments/{id}", s.requireAdmin(s.adminFulfillment))
	s.mux.Handle("POST /admin/fulfillments/{id}/retry", s.requireAdmin(s.adminRetryFulfillment))
	s.mux.Handle("GET /admin/export/variants.xlsx", s.requireAdmin(s.adminExportVariants))
}
