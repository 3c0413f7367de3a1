package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/phenrril/printshop/internal/domain"
)

// Notifier renders and sends the customer confirmation and the internal notice
// for one order. Either recipient may be empty.
type Notifier struct {
	Sender     Sender
	Shop       string
	InternalTo string
}

func (n *Notifier) Send(ctx context.Context, on domain.OrderNotification) error {
	var errs []error
	if on.CustomerEmail != "" {
		if err := n.customer(ctx, on); err != nil {
			errs = append(errs, fmt.Errorf("customer email: %w", err))
		}
	}
	if n.InternalTo != "" {
		if err := n.internal(ctx, on); err != nil {
			errs = append(errs, fmt.Errorf("internal email: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	log.Info().Str("session_id", on.SessionID).Bool("fulfillment_failed", on.FulfillmentFailed).Msg("order notifications sent")
	return nil
}

func (n *Notifier) customer(ctx context.Context, on domain.OrderNotification) error {
	d := newOrderEmailData(on, n.Shop)
	d.Title = "Order confirmation"
	d.Heading = "Thanks for your order"
	subject := subjectConfirmation(n.Shop)
	// the buyer paid either way; the failure details stay internal
	if on.FulfillmentFailed {
		d.Title = "Payment received"
		d.Heading = "We received your payment"
		subject = subjectPaymentReceived(n.Shop)
	}
	html, err := render("order_confirmation.html", d)
	if err != nil {
		return err
	}
	return n.Sender.Send(ctx, Message{To: on.CustomerEmail, Subject: subject, HTML: html})
}

func (n *Notifier) internal(ctx context.Context, on domain.OrderNotification) error {
	d := newOrderEmailData(on, n.Shop)
	d.Title = "New order"
	d.Heading = fmt.Sprintf("New %s order", on.OrderType)
	subject := fmt.Sprintf("New %s order %s (%s)", on.OrderType, on.SessionID, d.Total)
	if on.FulfillmentFailed {
		d.Heading = "Fulfillment failed"
		subject = "ACTION REQUIRED: fulfillment failed for " + on.SessionID
	}
	html, err := render("order_internal.html", d)
	if err != nil {
		return err
	}
	return n.Sender.Send(ctx, Message{To: n.InternalTo, Subject: subject, HTML: html})
}

func subjectPaymentReceived(shop string) string {
	if shop == "" {
		return "We received your payment"
	}
	return "We received your " + shop + " payment"
}

func subjectConfirmation(shop string) string {
	if shop == "" {
		return "Your order confirmation"
	}
	return "Your " + shop + " order confirmation"
}
