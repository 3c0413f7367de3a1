package httpserver

import (
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/phenrril/printshop/internal/adapters/payments/stripepay"
	"github.com/phenrril/printshop/internal/domain"
)

const maxWebhookBody = 1 << 20

type webhookAck struct {
	Received  bool                    `json:"received"`
	Ignored   bool                    `json:"ignored,omitempty"`
	State     domain.FulfillmentState `json:"state,omitempty"`
	Duplicate bool                    `json:"duplicate,omitempty"`
}

// webhookStripe acknowledges every verified event with 200, whatever happens
// downstream. Only a bad signature is rejected.
func (s *Server) webhookStripe(w http.ResponseWriter, r *http.Request) {
	l := log.Ctx(r.Context())
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, r, domain.Validation("invalid_body", "could not read body"))
		return
	}
	if !s.webhooks.Enabled() {
		l.Error().Msg("stripe webhook received but no webhook secret is configured")
	}
	evt, err := s.webhooks.Verify(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		l.Warn().Err(err).Msg("stripe webhook rejected")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_signature", Message: "webhook signature verification failed"})
		return
	}
	l.Info().Str("event_id", evt.ID).Str("event_type", string(evt.Type)).Msg("stripe webhook received")

	pe, ok, err := stripepay.PaymentEvent(evt)
	if err != nil {
		l.Error().Err(err).Str("event_id", evt.ID).Msg("stripe webhook payload could not be decoded")
		writeJSON(w, http.StatusOK, webhookAck{Received: true, Ignored: true})
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, webhookAck{Received: true, Ignored: true})
		return
	}

	out := s.fulfillment.HandlePaymentCompleted(r.Context(), pe)
	if out.Err != nil {
		l.Error().Err(out.Err).Str("session_id", out.SessionID).Str("state", string(out.State)).Msg("fulfillment did not complete")
	}
	writeJSON(w, http.StatusOK, webhookAck{Received: true, Ignored: out.Skipped, State: out.State, Duplicate: out.Duplicate})
}
