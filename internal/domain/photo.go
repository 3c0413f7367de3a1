package domain

import (
	"context"
	"time"
)

// Photo is catalog reference data written by the ingest tool. This service only
// reads it.
type Photo struct {
	ID              string   `gorm:"primaryKey;size:140" json:"id"`
	Title           string   `gorm:"size:180" json:"title"`
	Description     string   `gorm:"type:text" json:"description"`
	CollectionID    string   `gorm:"size:140;index" json:"collection"`
	CollectionTitle string   `gorm:"size:180" json:"collectionTitle"`
	Location        string   `gorm:"size:180" json:"location"`
	Year            int      `json:"year"`
	Tags            []string `gorm:"type:jsonb;serializer:json" json:"tags"`
	Filename        string   `gorm:"size:255" json:"filename"`
	PixelWidth      int      `json:"width"`
	PixelHeight     int      `json:"height"`
	ThumbURL        string   `gorm:"size:255" json:"thumbnail"`
	FullURL         string   `gorm:"size:255" json:"full"`
	SortOrder       int      `gorm:"default:0;index" json:"sortOrder"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OriginalKey is the object key of the full-resolution original.
func (p Photo) OriginalKey() string {
	return OriginalKey(p.CollectionID, p.Filename)
}

func OriginalKey(collection, filename string) string {
	if collection == "" {
		return filename
	}
	return collection + "/" + filename
}

type PhotoRepo interface {
	List(ctx context.Context) ([]Photo, error)
	FindByID(ctx context.Context, id string) (*Photo, error)
}
