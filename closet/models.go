package closet

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// ClothingItem represents one garment in a user's digital closet. ImageURL
// points at the background-processed image; OriginalImageURL keeps the raw
// upload for potential reprocessing.
type ClothingItem struct {
	ID               uint64         `gorm:"primaryKey" json:"id"`
	UserID           uint64         `gorm:"not null;index" json:"user_id"`
	Category         string         `gorm:"size:16;not null" json:"category"`
	ImageURL         string         `gorm:"type:text;not null" json:"image_url"`
	OriginalImageURL string         `gorm:"type:text" json:"original_image_url,omitempty"`
	Color            string         `gorm:"size:32;not null;default:'Unknown'" json:"color"`
	Season           *string        `gorm:"size:16" json:"season,omitempty"`
	Brand            *string        `gorm:"size:64" json:"brand,omitempty"`
	Size             *string        `gorm:"size:32" json:"size,omitempty"`
	Memo             *string        `gorm:"type:text" json:"memo,omitempty"`
	ShoppingURL      *string        `gorm:"size:512" json:"shopping_url,omitempty"`
	Price            *int64         `json:"price,omitempty"`
	IsFavorite       bool           `gorm:"not null;default:false" json:"is_favorite"`
	IsPurchased      bool           `gorm:"not null;default:false" json:"is_purchased"`
	Tags             datatypes.JSON `gorm:"type:json" json:"tags,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// TableName pins the storage table for clothing items.
func (ClothingItem) TableName() string {
	return "clothing_items"
}

// NormalizeCategory lowercases and validates a garment category.
func NormalizeCategory(raw string) (string, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "top", "bottom", "outer", "onepiece", "shoes", "accessory":
		return value, true
	default:
		return "", false
	}
}

// NormalizeSeason validates an optional season value.
func NormalizeSeason(raw string) (string, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "spring", "summer", "fall", "winter", "all":
		return value, true
	default:
		return "", false
	}
}
