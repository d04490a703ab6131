package looks

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Look is a private outfit composition: an ordered set of closet item IDs
// plus per-item layer placement over the owner's avatar.
type Look struct {
	ID              uint64         `gorm:"primaryKey" json:"id"`
	UserID          uint64         `gorm:"not null;index" json:"user_id"`
	Name            string         `gorm:"size:128;not null" json:"name"`
	ItemIDs         datatypes.JSON `gorm:"type:json;not null" json:"item_ids"`
	LayerTransforms datatypes.JSON `gorm:"type:json" json:"layer_transforms,omitempty"`
	SnapshotURL     *string        `gorm:"size:512" json:"snapshot_url,omitempty"`
	IsPublic        bool           `gorm:"not null;default:false" json:"is_public"`
	Tags            datatypes.JSON `gorm:"type:json" json:"tags,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (Look) TableName() string {
	return "looks"
}

// LayerTransform positions one garment layer. Zero values mean "unplaced";
// Scale defaults to 1 on the client.
type LayerTransform struct {
	OffsetX  float64 `json:"offsetX"`
	OffsetY  float64 `json:"offsetY"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"`
	Visible  bool    `json:"visible"`
}

// PublicLook is the published, immutable snapshot of a look. Item data is
// copied at publish time so later closet edits never alter a shared post.
type PublicLook struct {
	ID            uint64         `gorm:"primaryKey" json:"-"`
	PublicID      string         `gorm:"size:36;not null;uniqueIndex" json:"public_id"`
	LookID        uint64         `gorm:"not null;index" json:"-"`
	OwnerID       uint64         `gorm:"not null;index" json:"owner_id"`
	OwnerName     string         `gorm:"size:64;not null" json:"owner_name"`
	Title         string         `gorm:"size:128;not null" json:"title"`
	SnapshotURL   *string        `gorm:"size:512" json:"snapshot_url,omitempty"`
	ItemsSnapshot datatypes.JSON `gorm:"type:json;not null" json:"items"`
	Tags          datatypes.JSON `gorm:"type:json" json:"tags,omitempty"`
	LikeCount     int64          `gorm:"not null;default:0" json:"like_count"`
	BookmarkCount int64          `gorm:"not null;default:0" json:"bookmark_count"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (PublicLook) TableName() string {
	return "public_looks"
}

// Reaction kinds for published looks.
const (
	ReactionLike     = "like"
	ReactionBookmark = "bookmark"
)

// LookReaction records one viewer's like or bookmark on a published look.
// The composite unique index makes each toggle idempotent per viewer.
type LookReaction struct {
	ID           uint64    `gorm:"primaryKey" json:"id"`
	PublicLookID uint64    `gorm:"not null;uniqueIndex:idx_look_reaction" json:"-"`
	ViewerID     uint64    `gorm:"not null;uniqueIndex:idx_look_reaction" json:"viewer_id"`
	Kind         string    `gorm:"size:16;not null;uniqueIndex:idx_look_reaction" json:"kind"`
	CreatedAt    time.Time `json:"created_at"`
}

func (LookReaction) TableName() string {
	return "look_reactions"
}

func decodeItemIDs(raw datatypes.JSON) []uint64 {
	if len(raw) == 0 {
		return nil
	}
	var ids []uint64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil
	}
	return ids
}

func encodeItemIDs(ids []uint64) datatypes.JSON {
	encoded, err := json.Marshal(ids)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(encoded)
}
