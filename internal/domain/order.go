package domain

import "fmt"

type OrderType string

const (
	OrderTypePrint   OrderType = "print"
	OrderTypeLicense OrderType = "license"
	OrderTypeMixed   OrderType = "mixed"
)

type ItemKind string

const (
	ItemPrint   ItemKind = "print"
	ItemLicense ItemKind = "license"
)

// PaymentMode is the credential set a payment was taken with.
type PaymentMode string

const (
	ModeLive PaymentMode = "live"
	ModeTest PaymentMode = "test"
)

const (
	ChannelCheckout = "checkout"
	ChannelACP      = "acp"
)

// PrintSize is a physical print size in whole inches.
type PrintSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s PrintSize) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// AreaSqIn is the print area in square inches.
func (s PrintSize) AreaSqIn() float64 { return float64(s.Width) * float64(s.Height) }

// PrintOptions are the fulfillment sub-options chosen for print items.
type PrintOptions struct {
	SubType   string `json:"subType,omitempty"`
	Finish    string `json:"finish,omitempty"`
	Edge      string `json:"edge,omitempty"`
	Mounting  string `json:"mounting,omitempty"`
	FrameCode string `json:"frameCode,omitempty"`
}

// LicenseOptions describe a digital license purchase.
type LicenseOptions struct {
	Tier           string `json:"tier"`
	Format         string `json:"format,omitempty"`
	Classification string `json:"classification,omitempty"`
}

// OrderItem is one purchased line as recorded on the payment session.
type OrderItem struct {
	Kind        ItemKind  `json:"k"`
	Name        string    `json:"n,omitempty"`
	PhotoID     string    `json:"p"`
	Filename    string    `json:"f"`
	Collection  string    `json:"c,omitempty"`
	PixelWidth  int       `json:"pw,omitempty"`
	PixelHeight int       `json:"ph,omitempty"`
	Material    Material  `json:"m,omitempty"`
	Size        PrintSize `json:"s,omitempty"`
	Quantity    int64     `json:"q"`
	UnitAmount  int64     `json:"a"`
}

func (it OrderItem) OriginalKey() string { return OriginalKey(it.Collection, it.Filename) }

type ShippingAddress struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// OrderIntent is everything the webhook needs to fulfill an order. It travels
// with the payment session as flattened metadata.
type OrderIntent struct {
	Type    OrderType
	Mode    PaymentMode
	Channel string
	Items   []OrderItem
	Print   *PrintOptions
	License *LicenseOptions
}

// DeriveOrderType is mixed iff both print and license items are present.
func DeriveOrderType(items []OrderItem) OrderType {
	var prints, licenses bool
	for _, it := range items {
		switch it.Kind {
		case ItemPrint:
			prints = true
		case ItemLicense:
			licenses = true
		}
	}
	switch {
	case prints && licenses:
		return OrderTypeMixed
	case licenses:
		return OrderTypeLicense
	default:
		return OrderTypePrint
	}
}

func (oi OrderIntent) HasPrints() bool {
	for _, it := range oi.Items {
		if it.Kind == ItemPrint {
			return true
		}
	}
	return false
}

func (oi OrderIntent) Total() int64 {
	var t int64
	for _, it := range oi.Items {
		t += it.UnitAmount * it.Quantity
	}
	return t
}
