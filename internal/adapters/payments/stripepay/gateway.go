// Package stripepay implements the payment gateway and webhook verification
// on Stripe.
package stripepay

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"

	"github.com/phenrril/printshop/internal/domain"
)

var DefaultShippingCountries = []string{"US", "CA", "GB", "AU", "NZ", "IE", "DE", "FR", "NL"}

type Gateway struct {
	api               *client.API
	currency          string
	shippingCountries []string
}

// NewGateway builds a gateway for one secret key. backends may be nil.
func NewGateway(secretKey string, backends *stripe.Backends) *Gateway {
	return &Gateway{
		api:               client.New(secretKey, backends),
		currency:          string(stripe.CurrencyUSD),
		shippingCountries: DefaultShippingCountries,
	}
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, req domain.CheckoutSessionRequest) (*domain.CheckoutSessionResult, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(withSessionID(req.SuccessURL)),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	for _, l := range req.Lines {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:     stripe.String(l.Name),
			Metadata: l.Metadata,
		}
		if l.Description != "" {
			product.Description = stripe.String(l.Description)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(g.currency),
				UnitAmount:  stripe.Int64(l.UnitAmount),
				ProductData: product,
			},
			Quantity: stripe.Int64(l.Quantity),
		})
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.CollectShipping {
		params.ShippingAddressCollection = &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(g.shippingCountries),
		}
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, mapError(err)
	}
	return &domain.CheckoutSessionResult{ID: s.ID, URL: s.URL}, nil
}

// Charge confirms a PaymentIntent against a delegated payment token.
func (g *Gateway) Charge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	currency := req.Currency
	if currency == "" {
		currency = g.currency
	}
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(strings.ToLower(currency)),
		PaymentMethod: stripe.String(req.Token),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}
	if s := req.Shipping; s != nil {
		params.Shipping = &stripe.ShippingDetailsParams{
			Name: stripe.String(s.Name),
			Address: &stripe.AddressParams{
				Line1:      stripe.String(s.Line1),
				Line2:      stripe.String(s.Line2),
				City:       stripe.String(s.City),
				State:      stripe.String(s.State),
				PostalCode: stripe.String(s.PostalCode),
				Country:    stripe.String(s.Country),
			},
		}
		if s.Phone != "" {
			params.Shipping.Phone = stripe.String(s.Phone)
		}
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, mapError(err)
	}
	return &domain.ChargeResult{ID: pi.ID, Status: string(pi.Status)}, nil
}

func withSessionID(u string) string {
	if u == "" || strings.Contains(u, "{CHECKOUT_SESSION_ID}") {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "session_id={CHECKOUT_SESSION_ID}"
}

// mapError keeps Stripe's own message. Card declines are the buyer's problem,
// everything else is upstream.
func mapError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		if se.Type == stripe.ErrorTypeCard {
			return domain.Validation("payment_declined", se.Msg)
		}
		if se.Msg != "" {
			return domain.Upstream("stripe", errors.New(se.Msg))
		}
	}
	return domain.Upstream("stripe", err)
}
