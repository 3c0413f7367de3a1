package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/phenrril/printshop/internal/domain"
)

type PhotoRepo struct{ db *gorm.DB }

func NewPhotoRepo(db *gorm.DB) *PhotoRepo { return &PhotoRepo{db: db} }

// List returns every photo grouped by collection in display order.
func (r *PhotoRepo) List(ctx context.Context) ([]domain.Photo, error) {
	var list []domain.Photo
	if err := r.db.WithContext(ctx).
		Order("collection_id asc").Order("sort_order asc").Order("id asc").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *PhotoRepo) FindByID(ctx context.Context, id string) (*domain.Photo, error) {
	var p domain.Photo
	if err := r.db.WithContext(ctx).First(&p, "id = ?", strings.TrimSpace(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Upsert writes photos from the ingest manifest, replacing rows with the same id.
func (r *PhotoRepo) Upsert(ctx context.Context, photos []domain.Photo) error {
	if len(photos) == 0 {
		return nil
	}
	now := time.Now()
	for i := range photos {
		if photos[i].ID == "" {
			return errors.New("photo without id")
		}
		if photos[i].CreatedAt.IsZero() {
			photos[i].CreatedAt = now
		}
		photos[i].UpdatedAt = now
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(photoColumns),
		}).CreateInBatches(&photos, 100).Error
	})
}

var photoColumns = []string{
	"title", "description", "collection_id", "collection_title", "location", "year", "tags",
	"filename", "pixel_width", "pixel_height", "thumb_url", "full_url", "sort_order", "updated_at",
}
