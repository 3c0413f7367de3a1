// Package pricing derives print prices and print-quality tiers. Every surface
// that shows or charges a print price goes through this package.
package pricing

import (
	"errors"
	"math"

	"github.com/phenrril/printshop/internal/domain"
)

const (
	// ReferenceAreaSqIn is the area of the 12x8 reference print the base
	// prices are quoted at.
	ReferenceAreaSqIn = 96.0
	// ScaleExponent makes price grow sub-linearly with area.
	ScaleExponent = 0.75
	// MinDPI is the lowest resolution a print is sold at.
	MinDPI = 150
)

var ErrInvalidInput = errors.New("pricing: base price and area must be positive")

// Price scales a base price by area: round(base * (area/96)^0.75).
func Price(basePrice int64, areaSqIn float64) (int64, error) {
	if basePrice <= 0 || !(areaSqIn > 0) || math.IsInf(areaSqIn, 0) {
		return 0, ErrInvalidInput
	}
	ratio := areaSqIn / ReferenceAreaSqIn
	return int64(math.Round(float64(basePrice) * math.Pow(ratio, ScaleExponent))), nil
}

// DPI is the effective resolution of an original printed at size.
func DPI(pixelWidth, pixelHeight int, size domain.PrintSize) int {
	if size.Width <= 0 || size.Height <= 0 || pixelWidth <= 0 || pixelHeight <= 0 {
		return 0
	}
	w := float64(pixelWidth) / float64(size.Width)
	h := float64(pixelHeight) / float64(size.Height)
	return int(math.Floor(math.Min(w, h)))
}

func Eligible(dpi int) bool { return dpi >= MinDPI }

type Tier string

const (
	TierMuseum    Tier = "museum"
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
)

// TierFor labels an eligible dpi.
func TierFor(dpi int) Tier {
	switch {
	case dpi >= 300:
		return TierMuseum
	case dpi >= 200:
		return TierExcellent
	default:
		return TierGood
	}
}

// Orient turns a landscape catalog size to match the photo's orientation.
func Orient(size domain.PrintSize, pixelWidth, pixelHeight int) domain.PrintSize {
	portrait := pixelHeight > pixelWidth
	if portrait == (size.Height > size.Width) {
		return size
	}
	return domain.PrintSize{Width: size.Height, Height: size.Width}
}
