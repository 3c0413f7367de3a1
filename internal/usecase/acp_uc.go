package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/phenrril/printshop/internal/catalog"
	"github.com/phenrril/printshop/internal/domain"
)

// DefaultACPSessionTTL is how long an untouched session stays open.
const DefaultACPSessionTTL = 30 * time.Minute

const shippingOptionID = "standard"

type ACPConfig struct {
	MerchantName     string
	Currency         string
	TaxRate          decimal.Decimal
	ShippingCents    int64
	ReturnPolicyURL  string
	ReturnWindowDays int
	BaseURL          string
	SessionTTL       time.Duration
	TestMode         bool
}

type FeedMerchant struct {
	Name             string `json:"name"`
	Currency         string `json:"currency"`
	ReturnPolicyURL  string `json:"return_policy"`
	ReturnWindowDays int    `json:"return_window"`
}

type FeedProduct struct {
	ID          string   `json:"id"`
	ItemGroupID string   `json:"item_group_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Link        string   `json:"link"`
	ImageLink   string   `json:"image_link,omitempty"`
	Collection  string   `json:"collection,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type FeedVariant struct {
	ID           string `json:"id"`
	ItemGroupID  string `json:"item_group_id"`
	Title        string `json:"title"`
	Price        string `json:"price"`
	Availability string `json:"availability"`
	Material     string `json:"material"`
	Size         string `json:"size"`
	Width        int    `json:"width_in"`
	Height       int    `json:"height_in"`
	DPI          int    `json:"dpi"`
	Quality      string `json:"quality"`
	Link         string `json:"link"`
	ImageLink    string `json:"image_link,omitempty"`
}

type Feed struct {
	Merchant    FeedMerchant  `json:"merchant"`
	Products    []FeedProduct `json:"products"`
	Variants    []FeedVariant `json:"variants"`
	GeneratedAt time.Time     `json:"generated_at"`
}

type ACPCreateRequest struct {
	Items              []domain.ACPItem   `json:"items" validate:"required,min=1,max=20,dive"`
	Buyer              *domain.ACPBuyer   `json:"buyer,omitempty" validate:"omitempty"`
	FulfillmentAddress *domain.ACPAddress `json:"fulfillment_address,omitempty" validate:"omitempty"`
}

type ACPUpdateRequest struct {
	Items               []domain.ACPItem   `json:"items,omitempty" validate:"omitempty,max=20,dive"`
	Buyer               *domain.ACPBuyer   `json:"buyer,omitempty" validate:"omitempty"`
	FulfillmentAddress  *domain.ACPAddress `json:"fulfillment_address,omitempty" validate:"omitempty"`
	FulfillmentOptionID string             `json:"fulfillment_option_id,omitempty"`
}

type ACPPaymentData struct {
	Token          string             `json:"token" validate:"required"`
	Provider       string             `json:"provider" validate:"required,eq=stripe"`
	BillingAddress *domain.ACPAddress `json:"billing_address,omitempty" validate:"omitempty"`
}

type ACPCompleteRequest struct {
	Buyer       *domain.ACPBuyer `json:"buyer,omitempty" validate:"omitempty"`
	PaymentData ACPPaymentData   `json:"payment_data" validate:"required"`
}

// ACPUC serves the agentic commerce feed and checkout sessions from the same
// catalog projection the storefront uses.
type ACPUC struct {
	Catalog      *CatalogUC
	Sessions     domain.ACPSessionStore
	Gateways     Gateways
	Originals    domain.OriginalsStore
	CheckTimeout time.Duration
	Config       ACPConfig
	Now          func() time.Time
}

func (uc *ACPUC) now() time.Time {
	if uc.Now != nil {
		return uc.Now().UTC()
	}
	return time.Now().UTC()
}

func (uc *ACPUC) currency() string {
	if uc.Config.Currency == "" {
		return "usd"
	}
	return strings.ToLower(uc.Config.Currency)
}

func (uc *ACPUC) ttl() time.Duration {
	if uc.Config.SessionTTL <= 0 {
		return DefaultACPSessionTTL
	}
	return uc.Config.SessionTTL
}

// FormatPrice renders whole-unit amounts the way the feed expects, "297.00 USD".
func FormatPrice(amount int64, currency string) string {
	return decimal.NewFromInt(amount).StringFixed(2) + " " + strings.ToUpper(currency)
}

func (uc *ACPUC) Feed(ctx context.Context) (*Feed, error) {
	proj, err := uc.Catalog.Products(ctx)
	if err != nil {
		return nil, err
	}
	feed := &Feed{
		Merchant: FeedMerchant{
			Name:             uc.Config.MerchantName,
			Currency:         strings.ToUpper(uc.currency()),
			ReturnPolicyURL:  uc.Config.ReturnPolicyURL,
			ReturnWindowDays: uc.Config.ReturnWindowDays,
		},
		Products:    make([]FeedProduct, 0, len(proj.Products)),
		Variants:    []FeedVariant{},
		GeneratedAt: uc.now(),
	}
	for _, p := range proj.Products {
		feed.Products = append(feed.Products, FeedProduct{
			ID:          p.Photo.ID,
			ItemGroupID: p.Photo.ID,
			Title:       p.Photo.Title,
			Description: p.Photo.Description,
			Link:        p.URL,
			ImageLink:   p.Photo.FullURL,
			Collection:  p.Photo.CollectionID,
			Tags:        p.Photo.Tags,
		})
		for _, v := range p.Variants {
			feed.Variants = append(feed.Variants, FeedVariant{
				ID:           v.ID,
				ItemGroupID:  p.Photo.ID,
				Title:        variantTitle(p.Photo, v),
				Price:        FormatPrice(v.Price, uc.currency()),
				Availability: "in_stock",
				Material:     string(v.Material),
				Size:         v.Size.String(),
				Width:        v.Size.Width,
				Height:       v.Size.Height,
				DPI:          v.DPI,
				Quality:      string(v.Quality),
				Link:         p.URL,
				ImageLink:    p.Photo.FullURL,
			})
		}
	}
	return feed, nil
}

func variantTitle(p domain.Photo, v catalog.Variant) string {
	return fmt.Sprintf("%s (%s %s)", p.Title, v.MaterialName, v.Size)
}

func (uc *ACPUC) Create(ctx context.Context, req ACPCreateRequest) (*domain.ACPSession, error) {
	if len(req.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	now := uc.now()
	s := &domain.ACPSession{
		ID:       "acp_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Currency: uc.currency(),
		Buyer:    req.Buyer,
		PaymentProvider: domain.ACPPaymentProvider{
			Provider:                "stripe",
			SupportedPaymentMethods: []string{"card"},
		},
		FulfillmentAddress: req.FulfillmentAddress,
		CreatedAt:          now,
	}
	if err := uc.price(ctx, s, req.Items); err != nil {
		return nil, err
	}
	uc.refresh(s, now)
	if err := uc.Sessions.Put(ctx, s); err != nil {
		return nil, err
	}
	log.Info().Str("acp_session_id", s.ID).Int("items", len(s.LineItems)).Str("status", string(s.Status)).Msg("acp session created")
	return s, nil
}

// Get loads a session, expiring it when its deadline has passed.
func (uc *ACPUC) Get(ctx context.Context, id string) (*domain.ACPSession, error) {
	s, err := uc.Sessions.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFound("session_not_found", "no checkout session "+id)
	}
	if err != nil {
		return nil, err
	}
	if !s.Status.Final() && uc.now().After(s.ExpiresAt) {
		s.Status = domain.ACPExpired
		s.Messages = append(s.Messages, domain.ACPMessage{Type: "info", Code: "expired", Content: "This checkout session has expired."})
		if err := uc.Sessions.Put(ctx, s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (uc *ACPUC) Update(ctx context.Context, id string, req ACPUpdateRequest) (*domain.ACPSession, error) {
	s, err := uc.mutable(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Buyer != nil {
		s.Buyer = req.Buyer
	}
	if req.FulfillmentAddress != nil {
		s.FulfillmentAddress = req.FulfillmentAddress
	}
	if req.FulfillmentOptionID != "" {
		if req.FulfillmentOptionID != shippingOptionID {
			return nil, domain.Validation("invalid_fulfillment_option", "unknown fulfillment option "+req.FulfillmentOptionID)
		}
		s.FulfillmentOptionID = req.FulfillmentOptionID
	}
	items := itemsOf(s)
	if req.Items != nil {
		items = req.Items
	}
	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	if err := uc.price(ctx, s, items); err != nil {
		return nil, err
	}
	uc.refresh(s, uc.now())
	if err := uc.Sessions.Put(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Complete charges the delegated payment token for the session total. The
// order is fulfilled when the payment webhook arrives.
func (uc *ACPUC) Complete(ctx context.Context, id string, req ACPCompleteRequest) (*domain.ACPSession, error) {
	s, err := uc.mutable(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Buyer != nil {
		s.Buyer = req.Buyer
	}
	if s.Status != domain.ACPReadyForPayment || s.FulfillmentAddress == nil {
		return nil, domain.Validation("session_not_ready", "a fulfillment address is required before payment")
	}
	if strings.TrimSpace(req.PaymentData.Token) == "" {
		return nil, domain.Validation("invalid_payment", "payment token is required")
	}

	// prices may have moved since the session was last priced
	if err := uc.price(ctx, s, itemsOf(s)); err != nil {
		return nil, err
	}
	uc.refresh(s, uc.now())
	items, err := uc.orderItems(ctx, s)
	if err != nil {
		return nil, err
	}

	gw, mode, err := uc.Gateways.Select(uc.Config.TestMode)
	if err != nil {
		return nil, err
	}
	if mode != domain.ModeTest {
		if err := checkOriginals(ctx, uc.Originals, uc.CheckTimeout, items); err != nil {
			return nil, err
		}
	}
	intent := domain.OrderIntent{
		Type:    domain.DeriveOrderType(items),
		Mode:    mode,
		Channel: domain.ChannelACP,
		Items:   items,
	}
	meta, err := intent.Flatten()
	if err != nil {
		return nil, err
	}
	meta["acp_session_id"] = s.ID

	var email string
	if s.Buyer != nil {
		email = s.Buyer.Email
	}
	ship := s.FulfillmentAddress.Shipping()
	res, err := gw.Charge(ctx, domain.ChargeRequest{
		Amount:         s.TotalAmount(),
		Currency:       s.Currency,
		Token:          req.PaymentData.Token,
		Email:          email,
		Shipping:       &ship,
		Metadata:       meta,
		IdempotencyKey: "acp_complete_" + s.ID,
	})
	if err != nil {
		if de, ok := domain.AsError(err); ok {
			return nil, de
		}
		return nil, domain.Upstream("stripe", err)
	}
	switch res.Status {
	case "succeeded", "processing", "requires_capture":
	default:
		log.Warn().Str("acp_session_id", s.ID).Str("payment_intent", res.ID).Str("status", res.Status).Msg("acp payment not accepted")
		return nil, domain.Validation("payment_declined", "payment was not accepted ("+res.Status+")")
	}

	s.Status = domain.ACPCompleted
	s.Order = &domain.ACPOrder{
		ID:                res.ID,
		CheckoutSessionID: s.ID,
		PermalinkURL:      strings.TrimRight(uc.Config.BaseURL, "/") + "/orders/" + s.ID,
	}
	s.Messages = nil
	s.UpdatedAt = uc.now()
	if err := uc.Sessions.Put(ctx, s); err != nil {
		// the charge went through; the webhook still fulfills the order
		log.Error().Err(err).Str("acp_session_id", s.ID).Str("payment_intent", res.ID).Msg("completed session not stored")
	}
	log.Info().Str("acp_session_id", s.ID).Str("payment_intent", res.ID).Str("mode", string(mode)).
		Int64("amount", s.TotalAmount()).Msg("acp session completed")
	return s, nil
}

func (uc *ACPUC) Cancel(ctx context.Context, id string) (*domain.ACPSession, error) {
	s, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch s.Status {
	case domain.ACPCanceled:
		return s, nil
	case domain.ACPCompleted, domain.ACPExpired:
		return nil, domain.Conflict("session_final", "checkout session is "+string(s.Status))
	}
	s.Status = domain.ACPCanceled
	s.UpdatedAt = uc.now()
	if err := uc.Sessions.Put(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (uc *ACPUC) mutable(ctx context.Context, id string) (*domain.ACPSession, error) {
	s, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status.Final() {
		return nil, domain.Conflict("session_final", "checkout session is "+string(s.Status))
	}
	return s, nil
}

// price resolves every item against the catalog and rebuilds the line items.
// Amounts are in minor units.
func (uc *ACPUC) price(ctx context.Context, s *domain.ACPSession, items []domain.ACPItem) error {
	if len(items) > domain.MaxOrderItems {
		return domain.Validation("too_many_items", fmt.Sprintf("at most %d items per session", domain.MaxOrderItems))
	}
	lines := make([]domain.ACPLineItem, 0, len(items))
	for i, it := range items {
		if it.Quantity < 1 {
			return domain.Validation("invalid_quantity", fmt.Sprintf("item %d: quantity must be at least 1", i))
		}
		photo, v, err := uc.Catalog.Variant(ctx, it.ID)
		if err != nil {
			return err
		}
		base := v.Price * 100 * it.Quantity
		tax := uc.tax(base)
		lines = append(lines, domain.ACPLineItem{
			ID:         fmt.Sprintf("li_%d_%s", i, it.ID),
			Item:       it,
			BaseAmount: base,
			Subtotal:   base,
			Tax:        tax,
			Total:      base + tax,
			Title:      variantTitle(*photo, v),
		})
	}
	s.LineItems = lines
	return nil
}

func (uc *ACPUC) orderItems(ctx context.Context, s *domain.ACPSession) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(s.LineItems))
	for _, li := range s.LineItems {
		photo, v, err := uc.Catalog.Variant(ctx, li.Item.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, domain.OrderItem{
			Kind:        domain.ItemPrint,
			Name:        li.Title,
			PhotoID:     photo.ID,
			Filename:    photo.Filename,
			Collection:  photo.CollectionID,
			PixelWidth:  photo.PixelWidth,
			PixelHeight: photo.PixelHeight,
			Material:    v.Material,
			Size:        v.Size,
			Quantity:    li.Item.Quantity,
			UnitAmount:  v.Price * 100,
		})
	}
	return items, nil
}

func itemsOf(s *domain.ACPSession) []domain.ACPItem {
	out := make([]domain.ACPItem, 0, len(s.LineItems))
	for _, li := range s.LineItems {
		out = append(out, li.Item)
	}
	return out
}

func (uc *ACPUC) tax(amount int64) int64 {
	if uc.Config.TaxRate.IsZero() {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(uc.Config.TaxRate).Round(0).IntPart()
}

// refresh recomputes totals, status and the expiry deadline.
func (uc *ACPUC) refresh(s *domain.ACPSession, now time.Time) {
	var base, tax int64
	for _, li := range s.LineItems {
		base += li.BaseAmount
		tax += li.Tax
	}
	ship := uc.Config.ShippingCents
	s.FulfillmentOptions = []domain.ACPFulfillmentOption{{
		Type:     "shipping",
		ID:       shippingOptionID,
		Title:    "Standard shipping",
		Subtitle: "Printed to order, ships in 5-7 business days",
		Subtotal: ship,
		Total:    ship,
	}}
	if s.FulfillmentOptionID == "" {
		s.FulfillmentOptionID = shippingOptionID
	}
	s.Totals = []domain.ACPTotal{
		{Type: "items_base_amount", DisplayText: "Item(s) total", Amount: base},
		{Type: "subtotal", DisplayText: "Subtotal", Amount: base},
		{Type: "tax", DisplayText: "Tax", Amount: tax},
		{Type: "fulfillment", DisplayText: "Shipping", Amount: ship},
		{Type: "total", DisplayText: "Total", Amount: base + tax + ship},
	}
	s.Links = nil
	if uc.Config.ReturnPolicyURL != "" {
		s.Links = append(s.Links, domain.ACPLink{Type: "return_policy", URL: uc.Config.ReturnPolicyURL})
	}
	s.Messages = nil
	if s.FulfillmentAddress == nil {
		s.Status = domain.ACPNotReady
		s.Messages = append(s.Messages, domain.ACPMessage{Type: "info", Code: "missing_address", Content: "A shipping address is required."})
	} else {
		s.Status = domain.ACPReadyForPayment
	}
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(uc.ttl())
}
