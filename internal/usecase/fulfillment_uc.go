package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/printshop/internal/domain"
	"github.com/phenrril/printshop/internal/preorder"
)

// WebLicenseEdge is the long edge, in pixels, of a web-tier license file.
const WebLicenseEdge = 2048

// Outcome reports what one webhook delivery did.
type Outcome struct {
	SessionID string
	State     domain.FulfillmentState
	Duplicate bool
	Skipped   bool
	Err       error
}

type FulfillmentUC struct {
	Ledger     domain.FulfillmentLedger
	Partner    domain.FulfillmentPartner
	Originals  domain.OriginalsStore
	Customers  domain.CustomerRepo
	Dispatcher domain.NotificationDispatcher

	// SourceURLTTL is how long the partner may fetch originals.
	SourceURLTTL  time.Duration
	SubmitTimeout time.Duration
	// ProcessTimeout bounds one fulfillment run, which is detached from the
	// caller's context.
	ProcessTimeout time.Duration
	// StaleAfter is how long a record may sit in received or mapped before an
	// operator can retry it. Keep it well above ProcessTimeout.
	StaleAfter time.Duration
	Now        func() time.Time
}

const (
	defaultProcessTimeout = 2 * time.Minute
	defaultStaleAfter     = 10 * time.Minute
)

func (uc *FulfillmentUC) now() time.Time {
	if uc.Now != nil {
		return uc.Now()
	}
	return time.Now()
}

func (uc *FulfillmentUC) staleBefore() time.Time {
	d := uc.StaleAfter
	if d <= 0 {
		d = defaultStaleAfter
	}
	return uc.now().Add(-d)
}

func (uc *FulfillmentUC) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	d := uc.ProcessTimeout
	if d <= 0 {
		d = defaultProcessTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), d)
}

// HandlePaymentCompleted fulfills a paid session at most once. Failures are
// recorded in the ledger and logged; they are never returned to the caller as
// a reason to reject the delivery.
func (uc *FulfillmentUC) HandlePaymentCompleted(ctx context.Context, evt domain.PaymentEvent) Outcome {
	out := Outcome{SessionID: evt.SessionID}
	if !evt.Paid {
		log.Info().Str("session_id", evt.SessionID).Msg("session not paid, ignoring")
		out.Skipped = true
		return out
	}
	if evt.SessionID == "" {
		out.Skipped = true
		out.Err = domain.Validation("invalid_event", "event has no session id")
		return out
	}
	intent, err := domain.UnflattenIntent(evt.Metadata)
	if err != nil {
		log.Error().Err(err).Str("session_id", evt.SessionID).Msg("paid session without a readable order intent")
		out.Skipped = true
		out.Err = err
		return out
	}

	rec := &domain.FulfillmentRecord{
		ID:            uuid.New(),
		SessionID:     evt.SessionID,
		State:         domain.StateReceived,
		OrderType:     intent.Type,
		Metadata:      evt.Metadata,
		Shipping:      evt.Shipping,
		CustomerEmail: evt.CustomerEmail,
		CustomerName:  evt.CustomerName,
		AmountTotal:   evt.AmountTotal,
		Currency:      evt.Currency,
	}
	existing, started, err := uc.Ledger.Begin(ctx, rec)
	if err != nil {
		log.Error().Err(err).Str("session_id", evt.SessionID).Str("event_id", evt.EventID).
			Msg("fulfillment ledger unavailable, event must be replayed")
		out.Err = err
		return out
	}
	if !started {
		log.Info().Str("session_id", evt.SessionID).Str("state", string(existing.State)).
			Msg("duplicate delivery ignored")
		out.Duplicate = true
		out.State = existing.State
		return out
	}
	log.Info().Str("session_id", rec.SessionID).Str("state", string(rec.State)).
		Str("order_type", string(rec.OrderType)).Msg("fulfillment received")

	pctx, cancel := uc.detach(ctx)
	defer cancel()
	return uc.process(pctx, rec, intent)
}

// Retry resubmits a record whose partner submission failed, or one that
// stalled before submission. The partner idempotency key is the same as on
// the first attempt.
func (uc *FulfillmentUC) Retry(ctx context.Context, sessionID string) (*domain.FulfillmentRecord, error) {
	rec, err := uc.Record(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !rec.Retryable(uc.staleBefore()) {
		return rec, domain.Conflict("not_retryable", fmt.Sprintf("fulfillment is %s and cannot be retried", rec.State))
	}
	intent, err := domain.UnflattenIntent(rec.Metadata)
	if err != nil {
		return rec, err
	}
	log.Info().Str("session_id", sessionID).Str("state", string(rec.State)).Int("attempts", rec.Attempts).Msg("retrying fulfillment")
	pctx, cancel := uc.detach(ctx)
	defer cancel()
	uc.process(pctx, rec, intent)
	return rec, nil
}

func (uc *FulfillmentUC) Record(ctx context.Context, sessionID string) (*domain.FulfillmentRecord, error) {
	rec, err := uc.Ledger.Get(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFound("fulfillment_not_found", "no fulfillment for session "+sessionID)
	}
	return rec, err
}

// Failed lists fulfillments waiting for an operator: failed submissions and
// records stuck before submission.
func (uc *FulfillmentUC) Failed(ctx context.Context, limit int) ([]domain.FulfillmentRecord, error) {
	return uc.Ledger.Retryable(ctx, uc.staleBefore(), limit)
}

func (uc *FulfillmentUC) process(ctx context.Context, rec *domain.FulfillmentRecord, intent domain.OrderIntent) Outcome {
	out := Outcome{SessionID: rec.SessionID}

	prints, licenses, err := MapOrder(intent)
	if err != nil {
		uc.fail(ctx, rec, nil, nil, intent, err)
		out.State, out.Err = rec.State, err
		return out
	}
	uc.transition(ctx, rec, domain.StateMapped)

	if len(prints) > 0 {
		receipt, err := uc.submit(ctx, rec, prints)
		if err != nil {
			uc.fail(ctx, rec, prints, licenses, intent, err)
			out.State, out.Err = rec.State, err
			return out
		}
		rec.PartnerOrderID = receipt.OrderID
	}
	rec.LastError = ""
	uc.transition(ctx, rec, domain.StateSubmitted)

	uc.recordCustomer(ctx, rec)

	n := uc.notification(rec, intent, prints, licenses)
	if err := uc.dispatch(ctx, n); err != nil {
		rec.LastError = "notify: " + err.Error()
		uc.transition(ctx, rec, domain.StateNotifiedFailed)
		out.State, out.Err = rec.State, err
		return out
	}
	uc.transition(ctx, rec, domain.StateNotified)
	out.State = rec.State
	return out
}

func (uc *FulfillmentUC) submit(ctx context.Context, rec *domain.FulfillmentRecord, prints []domain.PrintJob) (*domain.PartnerReceipt, error) {
	rec.Attempts++
	if uc.Partner == nil {
		return nil, errors.New("fulfillment partner not configured")
	}
	if rec.Shipping == nil {
		return nil, errors.New("paid print order has no shipping address")
	}
	if uc.Originals == nil {
		return nil, errors.New("originals store not configured")
	}
	ttl := uc.SourceURLTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	for i := range prints {
		u, err := uc.Originals.PresignedURL(ctx, prints[i].OriginalKey, ttl)
		if err != nil {
			return nil, fmt.Errorf("presign %s: %w", prints[i].OriginalKey, err)
		}
		prints[i].SourceURL = u
	}

	timeout := uc.SubmitTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	receipt, err := uc.Partner.SubmitOrder(sctx, domain.FulfillmentOrder{
		Reference:      rec.SessionID,
		IdempotencyKey: "fulfill_" + rec.SessionID,
		CustomerEmail:  rec.CustomerEmail,
		Shipping:       *rec.Shipping,
		Prints:         prints,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("session_id", rec.SessionID).Str("partner_order_id", receipt.OrderID).
		Int("prints", len(prints)).Msg("partner order submitted")
	return receipt, nil
}

// fail records a submission failure and tells the shop about it.
func (uc *FulfillmentUC) fail(ctx context.Context, rec *domain.FulfillmentRecord, prints []domain.PrintJob, licenses []domain.LicenseDelivery, intent domain.OrderIntent, cause error) {
	rec.LastError = cause.Error()
	uc.transition(ctx, rec, domain.StateSubmittedFailed)
	log.Error().Err(cause).Str("session_id", rec.SessionID).Int("attempts", rec.Attempts).
		Msg("fulfillment submission failed, manual retry required")

	n := uc.notification(rec, intent, prints, licenses)
	n.FulfillmentFailed = true
	n.FailureReason = cause.Error()
	if err := uc.dispatch(ctx, n); err != nil {
		log.Error().Err(err).Str("session_id", rec.SessionID).Msg("failure notification not sent")
	}
}

func (uc *FulfillmentUC) transition(ctx context.Context, rec *domain.FulfillmentRecord, state domain.FulfillmentState) {
	rec.State = state
	rec.UpdatedAt = uc.now()
	if err := uc.Ledger.Update(ctx, rec); err != nil {
		log.Error().Err(err).Str("session_id", rec.SessionID).Str("state", string(state)).Msg("ledger update failed")
		return
	}
	log.Info().Str("session_id", rec.SessionID).Str("state", string(state)).
		Str("order_type", string(rec.OrderType)).Msg("fulfillment state")
}

func (uc *FulfillmentUC) dispatch(ctx context.Context, n domain.OrderNotification) error {
	if uc.Dispatcher == nil {
		return errors.New("no notification dispatcher")
	}
	return uc.Dispatcher.Dispatch(ctx, n)
}

func (uc *FulfillmentUC) recordCustomer(ctx context.Context, rec *domain.FulfillmentRecord) {
	email := strings.ToLower(strings.TrimSpace(rec.CustomerEmail))
	if uc.Customers == nil || email == "" {
		return
	}
	o := domain.CustomerOrder{Email: email, Name: rec.CustomerName, SessionID: rec.SessionID, At: uc.now()}
	if rec.Shipping != nil {
		o.Country = rec.Shipping.Country
	}
	if err := uc.Customers.RecordOrder(ctx, o); err != nil {
		log.Warn().Err(err).Str("session_id", rec.SessionID).Msg("customer not recorded")
	}
}

func (uc *FulfillmentUC) notification(rec *domain.FulfillmentRecord, intent domain.OrderIntent, prints []domain.PrintJob, licenses []domain.LicenseDelivery) domain.OrderNotification {
	return domain.OrderNotification{
		SessionID:      rec.SessionID,
		OrderType:      intent.Type,
		CustomerEmail:  rec.CustomerEmail,
		CustomerName:   rec.CustomerName,
		Items:          intent.Items,
		Prints:         prints,
		Licenses:       licenses,
		Shipping:       rec.Shipping,
		AmountTotal:    rec.AmountTotal,
		Currency:       rec.Currency,
		PartnerOrderID: rec.PartnerOrderID,
	}
}

// MapOrder turns the intent's items into partner print jobs and license
// deliveries.
func MapOrder(intent domain.OrderIntent) ([]domain.PrintJob, []domain.LicenseDelivery, error) {
	var prints []domain.PrintJob
	var licenses []domain.LicenseDelivery
	for i, it := range intent.Items {
		switch it.Kind {
		case domain.ItemPrint:
			code, err := preorder.Build(it.Material, it.Size.Width, it.Size.Height, intent.Print)
			if err != nil {
				return nil, nil, fmt.Errorf("item %d: %w", i, err)
			}
			prints = append(prints, domain.PrintJob{
				PhotoID:      it.PhotoID,
				Material:     it.Material,
				Size:         it.Size,
				Quantity:     it.Quantity,
				PreorderCode: code,
				OriginalKey:  it.OriginalKey(),
			})
		case domain.ItemLicense:
			licenses = append(licenses, ResolveLicense(it, intent.License))
		default:
			return nil, nil, fmt.Errorf("item %d: unknown kind %q", i, it.Kind)
		}
	}
	return prints, licenses, nil
}

// ResolveLicense describes the file owed for a license item. The web tier is
// delivered downscaled; every other tier gets the full original.
func ResolveLicense(it domain.OrderItem, opts *domain.LicenseOptions) domain.LicenseDelivery {
	d := domain.LicenseDelivery{
		PhotoID:        it.PhotoID,
		Tier:           "personal",
		Format:         "jpeg",
		Classification: "editorial",
		OriginalKey:    it.OriginalKey(),
	}
	if opts != nil {
		if opts.Tier != "" {
			d.Tier = opts.Tier
		}
		if opts.Format != "" {
			d.Format = opts.Format
		}
		if opts.Classification != "" {
			d.Classification = opts.Classification
		}
	}
	w, h := it.PixelWidth, it.PixelHeight
	switch {
	case w <= 0 || h <= 0:
		d.Resolution = "original"
	case d.Tier == "web" && (w > WebLicenseEdge || h > WebLicenseEdge):
		if w >= h {
			h = (h*WebLicenseEdge + w/2) / w
			w = WebLicenseEdge
		} else {
			w = (w*WebLicenseEdge + h/2) / h
			h = WebLicenseEdge
		}
		d.Resolution = fmt.Sprintf("%dx%d", w, h)
	default:
		d.Resolution = fmt.Sprintf("%dx%d", w, h)
	}
	return d
}
