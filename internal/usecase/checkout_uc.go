package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/phenrril/printshop/internal/catalog"
	"github.com/phenrril/printshop/internal/domain"
)

// Gateways holds one payment gateway per credential set. Either may be nil.
type Gateways struct {
	Live domain.PaymentGateway
	Test domain.PaymentGateway
}

// Select picks the gateway for a request. A test request without test
// credentials runs on live credentials and reports ModeLive.
func (g Gateways) Select(testMode bool) (domain.PaymentGateway, domain.PaymentMode, error) {
	if testMode && g.Test != nil {
		return g.Test, domain.ModeTest, nil
	}
	if g.Live != nil {
		if testMode {
			log.Warn().Msg("test checkout requested without test credentials, using live")
		}
		return g.Live, domain.ModeLive, nil
	}
	return nil, "", domain.Unavailable("payments_unavailable", "payments are not configured")
}

type CheckoutItem struct {
	Name        string
	Description string
	UnitAmount  int64
	Quantity    int64
	Kind        domain.ItemKind
	PhotoID     string
	Filename    string
	Collection  string
	PixelWidth  int
	PixelHeight int
	Material    domain.Material
	Size        domain.PrintSize
}

type CheckoutRequest struct {
	Items          []CheckoutItem
	SuccessURL     string
	CancelURL      string
	Print          *domain.PrintOptions
	License        *domain.LicenseOptions
	TestMode       bool
	CustomerEmail  string
	IdempotencyKey string
}

type CheckoutResult struct {
	SessionID string             `json:"sessionId"`
	URL       string             `json:"url"`
	Mode      domain.PaymentMode `json:"mode"`
	OrderType domain.OrderType   `json:"orderType"`
}

type CheckoutUC struct {
	Gateways  Gateways
	Originals domain.OriginalsStore
	Projector *catalog.Projector
	// CheckTimeout bounds each originals existence check.
	CheckTimeout time.Duration
}

// CreateSession validates the cart, verifies every original exists and only
// then opens a payment session.
func (uc *CheckoutUC) CreateSession(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if len(req.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	if len(req.Items) > domain.MaxOrderItems {
		return nil, domain.Validation("too_many_items", fmt.Sprintf("at most %d items per order", domain.MaxOrderItems))
	}
	items := make([]domain.OrderItem, 0, len(req.Items))
	for i, it := range req.Items {
		oi, err := uc.validateItem(i, it, req.License)
		if err != nil {
			return nil, err
		}
		items = append(items, oi)
	}

	gw, mode, err := uc.Gateways.Select(req.TestMode)
	if err != nil {
		return nil, err
	}
	// pre-flight follows the credential actually charged, not the request
	if mode != domain.ModeTest {
		if err := uc.preflight(ctx, items); err != nil {
			return nil, err
		}
	}

	intent := domain.OrderIntent{
		Type:    domain.DeriveOrderType(items),
		Mode:    mode,
		Channel: domain.ChannelCheckout,
		Items:   items,
	}
	if intent.HasPrints() && req.Print != nil {
		p := *req.Print
		intent.Print = &p
	}
	if intent.Type != domain.OrderTypePrint && req.License != nil {
		l := *req.License
		intent.License = &l
	}
	meta, err := intent.Flatten()
	if err != nil {
		return nil, err
	}

	lines := make([]domain.CheckoutLine, 0, len(req.Items))
	for i, it := range req.Items {
		lm := map[string]string{"photo_id": it.PhotoID, "kind": string(it.Kind)}
		if it.Kind == domain.ItemPrint {
			lm["material"] = string(it.Material)
			lm["size"] = it.Size.String()
		}
		lines = append(lines, domain.CheckoutLine{
			Name:        it.Name,
			Description: it.Description,
			UnitAmount:  items[i].UnitAmount,
			Quantity:    items[i].Quantity,
			Metadata:    lm,
		})
	}

	sess, err := gw.CreateCheckoutSession(ctx, domain.CheckoutSessionRequest{
		Lines:           lines,
		SuccessURL:      req.SuccessURL,
		CancelURL:       req.CancelURL,
		CollectShipping: intent.HasPrints(),
		CustomerEmail:   req.CustomerEmail,
		Metadata:        meta,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		if de, ok := domain.AsError(err); ok {
			return nil, de
		}
		return nil, domain.Upstream("stripe", err)
	}
	log.Info().
		Str("session_id", sess.ID).
		Str("mode", string(mode)).
		Str("order_type", string(intent.Type)).
		Int("items", len(items)).
		Msg("checkout session created")
	return &CheckoutResult{SessionID: sess.ID, URL: sess.URL, Mode: mode, OrderType: intent.Type}, nil
}

func (uc *CheckoutUC) validateItem(i int, it CheckoutItem, lic *domain.LicenseOptions) (domain.OrderItem, error) {
	bad := func(code, msg string) error {
		return domain.Validation(code, fmt.Sprintf("item %d: %s", i, msg))
	}
	if it.Quantity < 1 {
		return domain.OrderItem{}, bad("invalid_quantity", "quantity must be at least 1")
	}
	if it.UnitAmount <= 0 {
		return domain.OrderItem{}, bad("invalid_price", "price must be positive")
	}
	if it.PhotoID == "" || it.Filename == "" {
		return domain.OrderItem{}, bad("invalid_item", "photo id and filename are required")
	}
	oi := domain.OrderItem{
		Kind:        it.Kind,
		Name:        it.Name,
		PhotoID:     it.PhotoID,
		Filename:    it.Filename,
		Collection:  it.Collection,
		PixelWidth:  it.PixelWidth,
		PixelHeight: it.PixelHeight,
		Quantity:    it.Quantity,
		UnitAmount:  it.UnitAmount,
	}
	switch it.Kind {
	case domain.ItemPrint:
		if !it.Material.Valid() {
			return domain.OrderItem{}, domain.UnknownMaterial(string(it.Material))
		}
		if it.PixelWidth <= 0 || it.PixelHeight <= 0 {
			return domain.OrderItem{}, bad("invalid_item", "original pixel dimensions are required for prints")
		}
		if _, ok := uc.Projector.Offered(it.Material, it.Size, it.PixelWidth, it.PixelHeight); !ok {
			return domain.OrderItem{}, bad("variant_ineligible", fmt.Sprintf("%s %s is not offered for this photo", it.Material, it.Size))
		}
		oi.Material = it.Material
		oi.Size = it.Size
	case domain.ItemLicense:
		if lic == nil || lic.Tier == "" {
			return domain.OrderItem{}, bad("invalid_license", "license tier is required")
		}
	default:
		return domain.OrderItem{}, bad("invalid_item", fmt.Sprintf("unknown item kind %q", it.Kind))
	}
	return oi, nil
}

// preflight refuses checkout when an original is confirmed missing. Errors
// from the store itself do not block.
func (uc *CheckoutUC) preflight(ctx context.Context, items []domain.OrderItem) error {
	return checkOriginals(ctx, uc.Originals, uc.CheckTimeout, items)
}

func checkOriginals(ctx context.Context, store domain.OriginalsStore, timeout time.Duration, items []domain.OrderItem) error {
	if store == nil {
		log.Warn().Msg("originals store not configured, skipping pre-flight check")
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	seen := map[string]bool{}
	for _, it := range items {
		key := it.OriginalKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		cctx, cancel := context.WithTimeout(ctx, timeout)
		ok, err := store.Exists(cctx, key)
		cancel()
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return ctx.Err()
			}
			log.Warn().Err(err).Str("key", key).Msg("pre-flight check failed, allowing checkout")
			continue
		}
		if !ok {
			log.Error().Str("key", key).Str("photo_id", it.PhotoID).Msg("original missing, checkout refused")
			return domain.AssetUnavailable(key)
		}
	}
	return nil
}
