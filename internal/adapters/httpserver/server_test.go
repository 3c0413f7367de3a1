package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80/webhook"
	"github.com/xuri/excelize/v2"

	"github.com/phenrril/printshop/internal/catalog"
	"github.com/phenrril/printshop/internal/domain"
)

func TestProducts(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=900", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	var p catalog.Projection
	decodeBody(t, rec, &p)
	require.Len(t, p.Products, 2)
	assert.NotEmpty(t, p.Products[0].Variants)
	assert.Len(t, p.Collections, 2)

	rec = f.do(t, http.MethodGet, "/api/collections", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cols map[string][]catalog.Collection
	decodeBody(t, rec, &cols)
	assert.Equal(t, "deserts", cols["collections"][0].ID)

	rec = f.do(t, http.MethodGet, "/api/products/harbor-fog", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var prod catalog.Product
	decodeBody(t, rec, &prod)
	assert.Equal(t, "https://shop.test/collections/coast/harbor-fog", prod.URL)

	rec = f.do(t, http.MethodGet, "/api/products/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var eb errorBody
	decodeBody(t, rec, &eb)
	assert.Equal(t, "photo_not_found", eb.Error)
}

const checkoutBody = `{
  "items": [{
    "name": "Dune Sunrise canvas 24x16", "unitAmount": 29700, "quantity": 1,
    "metadata": {"kind": "print", "photoId": "dune_sunrise", "filename": "dune-sunrise.jpg", "collection": "deserts",
      "originalWidth": 6000, "originalHeight": 4000, "material": "canvas", "width": 24, "height": 16}
  }],
  "successUrl": "https://shop.test/thanks",
  "cancelUrl": "https://shop.test/cart",
  "pictoremMeta": {"finish": "semigloss"}
}`

func TestCheckout(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/checkout", checkoutBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	var res map[string]string
	decodeBody(t, rec, &res)
	assert.Equal(t, "cs_live_1", res["sessionId"])
	assert.Equal(t, "live", res["mode"])
	assert.Equal(t, "print", res["orderType"])

	f.do(t, http.MethodPost, "/api/checkout", checkoutBody)
	require.Len(t, f.gateway.sessions, 2)
	first := f.gateway.sessions[0]
	assert.True(t, strings.HasPrefix(first.IdempotencyKey, "checkout_"))
	assert.Equal(t, first.IdempotencyKey, f.gateway.sessions[1].IdempotencyKey)
	assert.True(t, first.CollectShipping)
	assert.Equal(t, int64(29700), first.Lines[0].UnitAmount)
}

func TestCheckout_MissingOriginal(t *testing.T) {
	f := newFixture(t)
	f.originals.missing["deserts/dune-sunrise.jpg"] = true

	rec := f.do(t, http.MethodPost, "/api/checkout", checkoutBody)
	require.Equal(t, http.StatusConflict, rec.Code)
	var eb errorBody
	decodeBody(t, rec, &eb)
	assert.Equal(t, "asset_unavailable", eb.Error)
	assert.Equal(t, "deserts/dune-sunrise.jpg", eb.Key)
	assert.NotContains(t, eb.Message, "dune-sunrise")
	assert.Empty(t, f.gateway.sessions)
}

func TestCheckout_BadRequests(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name, body, code string
	}{
		{"not json", `{`, "invalid_json"},
		{"missing urls", `{"items": []}`, "invalid_request"},
		{"empty cart", `{"items": [], "successUrl": "https://a.test/s", "cancelUrl": "https://a.test/c"}`, "empty_cart"},
		{"bad kind", strings.Replace(checkoutBody, `"kind": "print"`, `"kind": "poster"`, 1), "invalid_request"},
		{"ineligible size", strings.Replace(checkoutBody, `"originalWidth": 6000, "originalHeight": 4000`, `"originalWidth": 800, "originalHeight": 600`, 1), "variant_ineligible"},
		{"unknown material", strings.Replace(checkoutBody, `"material": "canvas"`, `"material": "glass"`, 1), "unknown_material"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/checkout", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			var eb errorBody
			decodeBody(t, rec, &eb)
			assert.Equal(t, tc.code, eb.Error)
		})
	}
	assert.Empty(t, f.gateway.sessions)
}

func signedSessionEvent(t *testing.T, sessionID string) (payload []byte, header string) {
	t.Helper()
	items := []domain.OrderItem{{
		Kind: domain.ItemPrint, PhotoID: "dune_sunrise", Filename: "dune-sunrise.jpg", Collection: "deserts",
		PixelWidth: 6000, PixelHeight: 4000, Material: domain.MaterialCanvas,
		Size: domain.PrintSize{Width: 24, Height: 16}, Quantity: 1, UnitAmount: 29700,
	}}
	meta, err := domain.OrderIntent{
		Type: domain.DeriveOrderType(items), Mode: domain.ModeLive, Channel: domain.ChannelCheckout, Items: items,
	}.Flatten()
	require.NoError(t, err)

	evt := map[string]any{
		"id": "evt_" + sessionID, "object": "event", "type": "checkout.session.completed", "livemode": true,
		"data": map[string]any{"object": map[string]any{
			"id": sessionID, "object": "checkout.session", "payment_status": "paid",
			"amount_total": 29700, "currency": "usd", "metadata": meta,
			"customer_details": map[string]any{"email": "ada@example.com", "name": "Ada Buyer"},
			"shipping_details": map[string]any{"name": "Ada Buyer", "address": map[string]any{
				"line1": "1 Main St", "city": "Austin", "state": "TX", "postal_code": "78701", "country": "US",
			}},
		}},
	}
	raw, err := json.Marshal(evt)
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: raw, Secret: webhookSecret})
	return signed.Payload, signed.Header
}

func TestWebhook_FulfillsOnce(t *testing.T) {
	f := newFixture(t)
	payload, header := signedSessionEvent(t, "cs_live_42")

	rec := f.do(t, http.MethodPost, "/webhooks/stripe", string(payload), "Stripe-Signature", header)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ack webhookAck
	decodeBody(t, rec, &ack)
	assert.True(t, ack.Received)
	assert.Equal(t, domain.StateNotified, ack.State)
	assert.False(t, ack.Duplicate)

	rec = f.do(t, http.MethodPost, "/webhooks/stripe", string(payload), "Stripe-Signature", header)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &ack)
	assert.True(t, ack.Duplicate)

	assert.Equal(t, 1, f.partner.count())
	assert.Equal(t, "https://originals.test/deserts/dune-sunrise.jpg", f.partner.orders[0].Prints[0].SourceURL)
	assert.Len(t, f.notify.sent, 1)
}

func TestWebhook_BadSignature(t *testing.T) {
	f := newFixture(t)
	payload, _ := signedSessionEvent(t, "cs_live_1")
	forged := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: "whsec_other"})

	rec := f.do(t, http.MethodPost, "/webhooks/stripe", string(payload), "Stripe-Signature", forged.Header)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, f.partner.count())
}

func TestWebhook_IgnoresOtherEvents(t *testing.T) {
	f := newFixture(t)
	raw := []byte(`{"id": "evt_x", "object": "event", "type": "customer.created", "data": {"object": {"id": "cus_1", "object": "customer"}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: raw, Secret: webhookSecret})

	rec := f.do(t, http.MethodPost, "/webhooks/stripe", string(signed.Payload), "Stripe-Signature", signed.Header)
	require.Equal(t, http.StatusOK, rec.Code)
	var ack webhookAck
	decodeBody(t, rec, &ack)
	assert.True(t, ack.Ignored)
}

func TestAdmin_FailedAndRetry(t *testing.T) {
	f := newFixture(t)
	f.partner.err = errors.New("pictorem: status 503")
	payload, header := signedSessionEvent(t, "cs_live_7")

	rec := f.do(t, http.MethodPost, "/webhooks/stripe", string(payload), "Stripe-Signature", header)
	require.Equal(t, http.StatusOK, rec.Code, "the provider is always acknowledged")
	var ack webhookAck
	decodeBody(t, rec, &ack)
	assert.Equal(t, domain.StateSubmittedFailed, ack.State)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/admin/fulfillments", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/admin/fulfillments", "", "Authorization", "Bearer wrong").Code)

	auth := []string{"Authorization", "Bearer " + adminKey}
	rec = f.do(t, http.MethodGet, "/admin/fulfillments", "", auth...)
	require.Equal(t, http.StatusOK, rec.Code)
	var list map[string][]domain.FulfillmentRecord
	decodeBody(t, rec, &list)
	require.Len(t, list["fulfillments"], 1)
	assert.Equal(t, "cs_live_7", list["fulfillments"][0].SessionID)

	f.partner.err = nil
	rec = f.do(t, http.MethodPost, "/admin/fulfillments/cs_live_7/retry", "", auth...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got domain.FulfillmentRecord
	decodeBody(t, rec, &got)
	assert.Equal(t, domain.StateNotified, got.State)
	assert.Equal(t, 2, got.Attempts)

	rec = f.do(t, http.MethodPost, "/admin/fulfillments/cs_live_7/retry", "", auth...)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/admin/fulfillments/cs_live_7", "", auth...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/admin/fulfillments/cs_nope", "", auth...).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/admin/fulfillments?limit=0", "", auth...).Code)
}

func TestAdmin_ExportVariants(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/admin/export/variants.xlsx", "", "Authorization", "Bearer "+adminKey)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "variants.xlsx")

	x, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer x.Close()
	rows, err := x.GetRows("Variants")
	require.NoError(t, err)
	assert.Greater(t, len(rows), 1)
}

func TestACP(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/acp/feed.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var feed map[string]any
	decodeBody(t, rec, &feed)
	assert.NotEmpty(t, feed["variants"])

	create := `{"items": [{"id": "dune_sunrise_canvas_24x16", "quantity": 1}]}`
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/checkout_sessions", create).Code)

	auth := []string{"Authorization", "Bearer " + acpKey}
	rec = f.do(t, http.MethodPost, "/checkout_sessions", create, auth...)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sess domain.ACPSession
	decodeBody(t, rec, &sess)
	assert.Equal(t, domain.ACPNotReady, sess.Status)

	rec = f.do(t, http.MethodGet, "/checkout_sessions/"+sess.ID, "", auth...)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/checkout_sessions", `{"items": []}`, auth...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/checkout_sessions/"+sess.ID+"/cancel", "", auth...)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &sess)
	assert.Equal(t, domain.ACPCanceled, sess.Status)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/checkout_sessions/acp_missing", "", auth...).Code)
}

func TestPublicRateLimit(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Chain(ok, RequestID, PublicRateLimit(map[string]int{"/api/checkout": 2}))

	hit := func(path string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "198.51.100.1:1000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusNoContent, hit("/api/checkout"))
	assert.Equal(t, http.StatusNoContent, hit("/api/checkout"))
	assert.Equal(t, http.StatusTooManyRequests, hit("/api/checkout"))
	assert.Equal(t, http.StatusNoContent, hit("/api/products"))
}

func TestRecoveryAndRequestID(t *testing.T) {
	boom := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("kaboom") })
	h := Chain(boom, RequestID, Recovery, Logging)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Body.String(), "internal_error")
}

func TestRealIP(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
	resolve := func(remote, xff string) string {
		var got string
		inner := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) { got = clientIP(r) })
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		Chain(inner, RealIP(trusted)).ServeHTTP(httptest.NewRecorder(), req)
		return got
	}

	// direct clients cannot pick their own address
	assert.Equal(t, "192.0.2.1", resolve("192.0.2.1:5555", "203.0.113.9"))
	// behind the proxy the last untrusted hop wins, spoofed leftmost entries do not
	assert.Equal(t, "203.0.113.9", resolve("10.0.0.2:443", "198.51.100.66, 203.0.113.9, 10.0.0.5"))
	assert.Equal(t, "10.0.0.2", resolve("10.0.0.2:443", ""))
	assert.Equal(t, "10.0.0.2", resolve("10.0.0.2:443", "garbage"))
}

func TestRealIP_NoTrustedProxiesIgnoresHeader(t *testing.T) {
	var got string
	h := Chain(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) { got = clientIP(r) }), RealIP(nil))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "192.0.2.1", got)
}

func TestPublicRateLimit_SpoofedForwardedForShareBudget(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Chain(ok, RealIP(nil), RequestID, PublicRateLimit(map[string]int{"/api/checkout": 1}))

	hit := func(xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil)
		req.RemoteAddr = "198.51.100.1:1000"
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusNoContent, hit("203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("203.0.113.2"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", clientIP(req))
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "192.0.2.1", clientIP(req))
}
