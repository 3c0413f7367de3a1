// Package catalog projects photo metadata into collections and priced
// variants. The storefront API, the commerce feed and the spreadsheet export
// all read the same Projection.
package catalog

import (
	"strings"

	"github.com/phenrril/printshop/internal/domain"
	"github.com/phenrril/printshop/internal/pricing"
)

type Collection struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PhotoCount int    `json:"photoCount"`
	URL        string `json:"url"`
}

type Variant struct {
	ID           string           `json:"id"`
	Material     domain.Material  `json:"material"`
	MaterialName string           `json:"materialName"`
	Size         domain.PrintSize `json:"size"`
	Price        int64            `json:"price"`
	DPI          int              `json:"dpi"`
	Quality      pricing.Tier     `json:"quality"`
}

type Product struct {
	Photo    domain.Photo `json:"photo"`
	URL      string       `json:"url"`
	Variants []Variant    `json:"variants"`
}

type Projection struct {
	Collections []Collection `json:"collections"`
	Products    []Product    `json:"products"`
}

type Projector struct {
	table   pricing.Table
	baseURL string
}

func NewProjector(table pricing.Table, baseURL string) *Projector {
	return &Projector{table: table, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *Projector) Table() pricing.Table { return p.table }

func (p *Projector) CollectionURL(id string) string { return p.baseURL + "/collections/" + id }

func (p *Projector) PhotoURL(ph domain.Photo) string {
	return p.baseURL + "/collections/" + ph.CollectionID + "/" + ph.ID
}

// Project builds collections in first-seen order and the eligible variants of
// every photo.
func (p *Projector) Project(photos []domain.Photo) Projection {
	out := Projection{
		Collections: []Collection{},
		Products:    make([]Product, 0, len(photos)),
	}
	idx := map[string]int{}
	for _, ph := range photos {
		if ph.CollectionID != "" {
			if i, ok := idx[ph.CollectionID]; ok {
				out.Collections[i].PhotoCount++
			} else {
				name := ph.CollectionTitle
				if name == "" {
					name = ph.CollectionID
				}
				idx[ph.CollectionID] = len(out.Collections)
				out.Collections = append(out.Collections, Collection{
					ID:         ph.CollectionID,
					Name:       name,
					PhotoCount: 1,
					URL:        p.CollectionURL(ph.CollectionID),
				})
			}
		}
		out.Products = append(out.Products, Product{Photo: ph, URL: p.PhotoURL(ph), Variants: p.Variants(ph)})
	}
	return out
}

func (p *Projector) Variants(ph domain.Photo) []Variant {
	quotes := p.table.Variants(ph.PixelWidth, ph.PixelHeight)
	out := make([]Variant, 0, len(quotes))
	for _, q := range quotes {
		spec, _ := p.table.Material(q.Material)
		out = append(out, Variant{
			ID:           FormatVariantID(ph.ID, q.Material, q.Size),
			Material:     q.Material,
			MaterialName: spec.Name,
			Size:         q.Size,
			Price:        q.Price,
			DPI:          q.DPI,
			Quality:      q.Tier,
		})
	}
	return out
}

// Offered reports whether (m, size) is sold for an original of the given
// pixel dimensions, and prices it.
func (p *Projector) Offered(m domain.Material, size domain.PrintSize, pixelWidth, pixelHeight int) (pricing.Quote, bool) {
	q, ok := p.table.Quote(m, size, pixelWidth, pixelHeight)
	if !ok {
		return pricing.Quote{}, false
	}
	for _, s := range p.table.Sizes() {
		if pricing.Orient(s, pixelWidth, pixelHeight) == size {
			return q, true
		}
	}
	return pricing.Quote{}, false
}

// Resolve prices a variant id against its photo.
func (p *Projector) Resolve(ph domain.Photo, id VariantID) (Variant, error) {
	if id.PhotoID != ph.ID {
		return Variant{}, domain.InvalidVariantID(id.String())
	}
	q, ok := p.Offered(id.Material, id.Size, ph.PixelWidth, ph.PixelHeight)
	if !ok {
		return Variant{}, domain.Validation("variant_ineligible", "variant "+id.String()+" is not offered for this photo")
	}
	spec, _ := p.table.Material(q.Material)
	return Variant{
		ID:           id.String(),
		Material:     q.Material,
		MaterialName: spec.Name,
		Size:         q.Size,
		Price:        q.Price,
		DPI:          q.DPI,
		Quality:      q.Tier,
	}, nil
}
