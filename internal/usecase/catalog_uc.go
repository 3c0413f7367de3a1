package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/phenrril/printshop/internal/catalog"
	"github.com/phenrril/printshop/internal/domain"
)

type CatalogUC struct {
	Photos    domain.PhotoRepo
	Projector *catalog.Projector
}

func (uc *CatalogUC) Products(ctx context.Context) (catalog.Projection, error) {
	photos, err := uc.Photos.List(ctx)
	if err != nil {
		return catalog.Projection{}, err
	}
	return uc.Projector.Project(photos), nil
}

func (uc *CatalogUC) Photo(ctx context.Context, id string) (*domain.Photo, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.Validation("photo_id", "photo id is empty")
	}
	p, err := uc.Photos.FindByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFound("photo_not_found", "no photo "+id)
	}
	return p, err
}

// Product projects a single photo with its eligible variants.
func (uc *CatalogUC) Product(ph domain.Photo) catalog.Product {
	return catalog.Product{Photo: ph, URL: uc.Projector.PhotoURL(ph), Variants: uc.Projector.Variants(ph)}
}

// Variant resolves a variant id to its photo and price.
func (uc *CatalogUC) Variant(ctx context.Context, variantID string) (*domain.Photo, catalog.Variant, error) {
	id, err := catalog.ParseVariantID(variantID)
	if err != nil {
		return nil, catalog.Variant{}, err
	}
	p, err := uc.Photo(ctx, id.PhotoID)
	if err != nil {
		return nil, catalog.Variant{}, err
	}
	v, err := uc.Projector.Resolve(*p, id)
	if err != nil {
		return nil, catalog.Variant{}, err
	}
	return p, v, nil
}
