package stripepay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"

	"github.com/phenrril/printshop/internal/domain"
)

var ErrBadSignature = errors.New("stripe: webhook signature verification failed")

// WebhookVerifier checks Stripe-Signature against every configured secret, so
// live and test endpoints can share one route.
type WebhookVerifier struct {
	secrets []string
}

func NewWebhookVerifier(secrets ...string) *WebhookVerifier {
	v := &WebhookVerifier{}
	for _, s := range secrets {
		if s != "" {
			v.secrets = append(v.secrets, s)
		}
	}
	return v
}

func (v *WebhookVerifier) Enabled() bool { return len(v.secrets) > 0 }

func (v *WebhookVerifier) Verify(payload []byte, header string) (stripe.Event, error) {
	if !v.Enabled() {
		return stripe.Event{}, errors.New("stripe: no webhook secret configured")
	}
	for _, secret := range v.secrets {
		evt, err := webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err == nil {
			return evt, nil
		}
	}
	return stripe.Event{}, ErrBadSignature
}

// shipping is decoded separately so payloads from newer API versions, which
// moved it under collected_information, still carry an address.
type shippingPayload struct {
	ShippingDetails      *stripe.ShippingDetails `json:"shipping_details"`
	CollectedInformation *struct {
		ShippingDetails *stripe.ShippingDetails `json:"shipping_details"`
	} `json:"collected_information"`
}

// PaymentEvent converts a verified event into a completed-payment notice.
// ok is false for events this service does not act on.
func PaymentEvent(evt stripe.Event) (domain.PaymentEvent, bool, error) {
	switch evt.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &s); err != nil {
			return domain.PaymentEvent{}, false, fmt.Errorf("decode checkout session: %w", err)
		}
		var sp shippingPayload
		if err := json.Unmarshal(evt.Data.Raw, &sp); err != nil {
			return domain.PaymentEvent{}, false, fmt.Errorf("decode shipping: %w", err)
		}
		out := domain.PaymentEvent{
			EventID:       evt.ID,
			SessionID:     s.ID,
			Livemode:      evt.Livemode,
			Paid:          s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid || s.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired,
			Metadata:      s.Metadata,
			CustomerEmail: s.CustomerEmail,
			AmountTotal:   s.AmountTotal,
			Currency:      string(s.Currency),
		}
		if d := s.CustomerDetails; d != nil {
			if d.Email != "" {
				out.CustomerEmail = d.Email
			}
			out.CustomerName = d.Name
		}
		sd := sp.ShippingDetails
		if sd == nil && sp.CollectedInformation != nil {
			sd = sp.CollectedInformation.ShippingDetails
		}
		out.Shipping = shippingAddress(sd)
		return out, true, nil

	case stripe.EventTypePaymentIntentSucceeded:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
			return domain.PaymentEvent{}, false, fmt.Errorf("decode payment intent: %w", err)
		}
		// checkout-originated intents are fulfilled from their session event
		if pi.Metadata[domain.MetaChannel] != domain.ChannelACP {
			return domain.PaymentEvent{}, false, nil
		}
		out := domain.PaymentEvent{
			EventID:       evt.ID,
			SessionID:     pi.ID,
			Livemode:      evt.Livemode,
			Paid:          pi.Status == stripe.PaymentIntentStatusSucceeded,
			Metadata:      pi.Metadata,
			CustomerEmail: pi.ReceiptEmail,
			AmountTotal:   pi.Amount,
			Currency:      string(pi.Currency),
			Shipping:      shippingAddress(pi.Shipping),
		}
		if out.Shipping != nil {
			out.CustomerName = out.Shipping.Name
		}
		return out, true, nil
	}
	return domain.PaymentEvent{}, false, nil
}

func shippingAddress(sd *stripe.ShippingDetails) *domain.ShippingAddress {
	if sd == nil || sd.Address == nil {
		return nil
	}
	return &domain.ShippingAddress{
		Name:       sd.Name,
		Line1:      sd.Address.Line1,
		Line2:      sd.Address.Line2,
		City:       sd.Address.City,
		State:      sd.Address.State,
		PostalCode: sd.Address.PostalCode,
		Country:    sd.Address.Country,
		Phone:      sd.Phone,
	}
}
