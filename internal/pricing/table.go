package pricing

import (
	"fmt"

	"github.com/phenrril/printshop/internal/domain"
)

// MaterialSpec is a material's catalog entry. BasePrice is in whole dollars
// at the reference size.
type MaterialSpec struct {
	Material  domain.Material `json:"key"`
	Name      string          `json:"name"`
	BasePrice int64           `json:"basePrice"`
}

// Quote is a priced, eligible (photo, material, size) combination.
type Quote struct {
	Material domain.Material  `json:"material"`
	Size     domain.PrintSize `json:"size"`
	Price    int64            `json:"price"`
	DPI      int              `json:"dpi"`
	Tier     Tier             `json:"quality"`
}

// Table holds the material and size catalogs. It is immutable once built.
type Table struct {
	materials []MaterialSpec
	sizes     []domain.PrintSize
}

func NewTable(materials []MaterialSpec, sizes []domain.PrintSize) (Table, error) {
	seen := map[domain.Material]bool{}
	for _, m := range materials {
		if !m.Material.Valid() {
			return Table{}, domain.UnknownMaterial(string(m.Material))
		}
		if seen[m.Material] {
			return Table{}, fmt.Errorf("pricing: duplicate material %s", m.Material)
		}
		if m.BasePrice <= 0 {
			return Table{}, fmt.Errorf("pricing: material %s has no base price", m.Material)
		}
		seen[m.Material] = true
	}
	for _, s := range sizes {
		if s.Width <= 0 || s.Height <= 0 {
			return Table{}, fmt.Errorf("pricing: invalid size %s", s)
		}
	}
	return Table{
		materials: append([]MaterialSpec(nil), materials...),
		sizes:     append([]domain.PrintSize(nil), sizes...),
	}, nil
}

func DefaultMaterials() []MaterialSpec {
	return []MaterialSpec{
		{Material: domain.MaterialCanvas, Name: "Canvas", BasePrice: 105},
		{Material: domain.MaterialMetal, Name: "Metal", BasePrice: 145},
		{Material: domain.MaterialAcrylic, Name: "Acrylic", BasePrice: 165},
		{Material: domain.MaterialPaper, Name: "Fine Art Paper", BasePrice: 55},
		{Material: domain.MaterialWood, Name: "Wood", BasePrice: 125},
	}
}

func DefaultSizes() []domain.PrintSize {
	return []domain.PrintSize{
		{Width: 12, Height: 8}, {Width: 18, Height: 12}, {Width: 24, Height: 16},
		{Width: 30, Height: 20}, {Width: 36, Height: 24}, {Width: 48, Height: 32},
		{Width: 60, Height: 40},
		{Width: 12, Height: 12}, {Width: 20, Height: 20}, {Width: 30, Height: 30},
		{Width: 24, Height: 8}, {Width: 36, Height: 12}, {Width: 48, Height: 16},
	}
}

func DefaultTable() Table {
	t, err := NewTable(DefaultMaterials(), DefaultSizes())
	if err != nil {
		panic(err)
	}
	return t
}

func (t Table) Materials() []MaterialSpec { return append([]MaterialSpec(nil), t.materials...) }

func (t Table) Sizes() []domain.PrintSize { return append([]domain.PrintSize(nil), t.sizes...) }

func (t Table) Material(m domain.Material) (MaterialSpec, bool) {
	for _, spec := range t.materials {
		if spec.Material == m {
			return spec, true
		}
	}
	return MaterialSpec{}, false
}

// Quote prices one combination. ok is false when the material is not in the
// table or the original is too small for the size.
func (t Table) Quote(m domain.Material, size domain.PrintSize, pixelWidth, pixelHeight int) (Quote, bool) {
	spec, found := t.Material(m)
	if !found {
		return Quote{}, false
	}
	dpi := DPI(pixelWidth, pixelHeight, size)
	if !Eligible(dpi) {
		return Quote{}, false
	}
	price, err := Price(spec.BasePrice, size.AreaSqIn())
	if err != nil {
		return Quote{}, false
	}
	return Quote{Material: m, Size: size, Price: price, DPI: dpi, Tier: TierFor(dpi)}, true
}

// Variants lists every eligible quote for an original, material-major in
// table order. Sizes are oriented to the photo.
func (t Table) Variants(pixelWidth, pixelHeight int) []Quote {
	out := make([]Quote, 0, len(t.materials)*len(t.sizes))
	for _, spec := range t.materials {
		for _, s := range t.sizes {
			if q, ok := t.Quote(spec.Material, Orient(s, pixelWidth, pixelHeight), pixelWidth, pixelHeight); ok {
				out = append(out, q)
			}
		}
	}
	return out
}
