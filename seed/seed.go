package seed

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"lookmate_back/ai"
	"lookmate_back/authorization"
	"lookmate_back/closet"
	"lookmate_back/looks"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const demoEmail = "demo@lookmate.app"

// Run populates a demo account with closet items and a published look when
// SEED_DEMO_DATA=true. It is idempotent: an existing demo account short
// circuits the whole seed.
func Run() error {
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SEED_DEMO_DATA")), "true") {
		return nil
	}

	db, err := openDatabaseFromEnv()
	if err != nil {
		return err
	}
	return apply(db)
}

func apply(db *gorm.DB) error {
	var existing int64
	if err := db.Model(&authorization.User{}).Where("email = ?", demoEmail).Count(&existing).Error; err != nil {
		return fmt.Errorf("seed: check demo account: %w", err)
	}
	if existing > 0 {
		log.Printf("seed: demo account already present, skipping")
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		user, err := seedUser(tx)
		if err != nil {
			return err
		}
		items, err := seedCloset(tx, user.ID)
		if err != nil {
			return err
		}
		if err := seedLook(tx, user, items); err != nil {
			return err
		}
		log.Printf("seed: created demo account %s with %d items", demoEmail, len(items))
		return nil
	})
}

func seedUser(tx *gorm.DB) (*authorization.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("demo1234"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("seed: hash demo password: %w", err)
	}

	height := 168.0
	avatar := ai.SVGPlaceholder(400, 800, "woman normal Avatar")
	user := &authorization.User{
		Email:        demoEmail,
		PasswordHash: string(hashed),
		DisplayName:  "LookMate Demo",
		AvatarURL:    &avatar,
		Height:       &height,
		BodyType:     "normal",
		Gender:       "female",
		Status:       "active",
	}
	if err := tx.Create(user).Error; err != nil {
		return nil, fmt.Errorf("seed: create demo user: %w", err)
	}
	return user, nil
}

func seedCloset(tx *gorm.DB, userID uint64) ([]closet.ClothingItem, error) {
	type garment struct {
		category string
		color    string
		label    string
		season   string
	}
	garments := []garment{
		{category: "top", color: "White", label: "White Shirt", season: "all"},
		{category: "bottom", color: "Indigo", label: "Indigo Jeans", season: "all"},
		{category: "outer", color: "Camel", label: "Camel Coat", season: "winter"},
		{category: "shoes", color: "Black", label: "Black Loafers", season: "all"},
		{category: "accessory", color: "Brown", label: "Leather Belt", season: "all"},
	}

	items := make([]closet.ClothingItem, 0, len(garments))
	for _, g := range garments {
		placeholder := ai.SVGPlaceholder(300, 300, g.label)
		season := g.season
		item := closet.ClothingItem{
			UserID:           userID,
			Category:         g.category,
			ImageURL:         placeholder,
			OriginalImageURL: placeholder,
			Color:            g.color,
			Season:           &season,
			Tags:             mustJSON([]string{"demo"}),
		}
		if err := tx.Create(&item).Error; err != nil {
			return nil, fmt.Errorf("seed: create demo item %q: %w", g.label, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func seedLook(tx *gorm.DB, user *authorization.User, items []closet.ClothingItem) error {
	if len(items) < 2 {
		return errors.New("seed: not enough demo items for a look")
	}

	itemIDs := make([]uint64, 0, len(items))
	transforms := make(map[string]looks.LayerTransform, len(items))
	snapshot := make([]map[string]interface{}, 0, len(items))
	for i, item := range items {
		itemIDs = append(itemIDs, item.ID)
		transform := looks.LayerTransform{
			OffsetY: float64(i) * 40,
			Scale:   1,
			Visible: true,
		}
		transforms[strconv.FormatUint(item.ID, 10)] = transform
		snapshot = append(snapshot, map[string]interface{}{
			"id":        item.ID,
			"category":  item.Category,
			"image_url": item.ImageURL,
			"color":     item.Color,
			"transform": transform,
		})
	}

	snapshotURL := ai.SVGPlaceholder(400, 800, "Everyday Layers")
	look := looks.Look{
		UserID:          user.ID,
		Name:            "Everyday Layers",
		ItemIDs:         mustJSON(itemIDs),
		LayerTransforms: mustJSON(transforms),
		SnapshotURL:     &snapshotURL,
		IsPublic:        true,
		Tags:            mustJSON([]string{"casual", "demo"}),
	}
	if err := tx.Create(&look).Error; err != nil {
		return fmt.Errorf("seed: create demo look: %w", err)
	}

	post := looks.PublicLook{
		PublicID:      uuid.NewString(),
		LookID:        look.ID,
		OwnerID:       user.ID,
		OwnerName:     user.DisplayName,
		Title:         look.Name,
		SnapshotURL:   look.SnapshotURL,
		ItemsSnapshot: mustJSON(snapshot),
		Tags:          look.Tags,
		LikeCount:     1,
	}
	if err := tx.Create(&post).Error; err != nil {
		return fmt.Errorf("seed: publish demo look: %w", err)
	}

	// Counters must match reaction rows, so the demo like gets a real row.
	reaction := looks.LookReaction{
		PublicLookID: post.ID,
		ViewerID:     user.ID,
		Kind:         looks.ReactionLike,
	}
	if err := tx.Create(&reaction).Error; err != nil {
		return fmt.Errorf("seed: like demo look: %w", err)
	}
	return nil
}

func mustJSON(value interface{}) datatypes.JSON {
	encoded, err := json.Marshal(value)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(encoded)
}

func openDatabaseFromEnv() (*gorm.DB, error) {
	dsn := strings.TrimSpace(os.Getenv("DATABASE_DSN"))
	if dsn == "" {
		return nil, errors.New("seed: DATABASE_DSN environment variable is required")
	}

	driver := strings.TrimSpace(os.Getenv("DATABASE_DRIVER"))
	if driver == "" {
		driver = inferDriverFromDSN(dsn)
		if driver == "" {
			return nil, errors.New("seed: DATABASE_DRIVER environment variable is required when DSN does not contain a scheme")
		}
	}

	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pg":
		return gorm.Open(postgres.Open(dsn), &gorm.Config{NowFunc: func() time.Time { return time.Now().UTC() }})
	case "mysql":
		return gorm.Open(mysql.Open(dsn), &gorm.Config{NowFunc: func() time.Time { return time.Now().UTC() }})
	case "sqlite", "sqlite3":
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{NowFunc: func() time.Time { return time.Now().UTC() }})
	default:
		return nil, fmt.Errorf("seed: unsupported database driver %q", driver)
	}
}

func inferDriverFromDSN(dsn string) string {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(lower, "mysql://"):
		return "mysql"
	case strings.HasPrefix(lower, "sqlite://"), strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"):
		return "sqlite"
	default:
		return ""
	}
}
