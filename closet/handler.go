package closet

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"lookmate_back/ai"
	"lookmate_back/authorization"
	filestore "lookmate_back/storage"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrInvalidCategory = errors.New("closet: category must be one of top, bottom, outer, onepiece, shoes, accessory")
	ErrInvalidSeason   = errors.New("closet: season must be one of spring, summer, fall, winter, all")
)

// Module aggregates the closet's database, AI facade and image storage
// dependencies.
type Module struct {
	db    *gorm.DB
	ai    ai.Service
	store *filestore.ImageStore
}

// RegisterRoutes initialises the closet module and mounts all item routes.
// Every route requires authentication: the closet is strictly per-user.
func RegisterRoutes(router *gin.Engine, guard *authorization.Guard, svc ai.Service, store *filestore.ImageStore) (*Module, error) {
	db, err := openDatabaseFromEnv()
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&ClothingItem{}); err != nil {
		return nil, err
	}

	module := &Module{db: db, ai: svc, store: store}

	group := router.Group("/closet")
	if guard != nil {
		group.Use(guard.RequireAuthenticated())
	} else {
		group.Use(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization middleware missing"})
		})
	}

	group.POST("/items", module.handleCreateItem)
	group.GET("/items", module.handleListItems)
	group.GET("/items/:id", module.handleGetItem)
	group.PUT("/items/:id", module.handleUpdateItem)
	group.DELETE("/items/:id", module.handleDeleteItem)
	group.POST("/items/:id/favorite", module.handleToggleFavorite)
	group.POST("/items/from-product", module.handleAddFromProduct)
	group.POST("/import", module.handleImportArchive)

	return module, nil
}

type updateItemRequest struct {
	Category    *string   `json:"category"`
	Color       *string   `json:"color"`
	Season      *string   `json:"season"`
	Brand       *string   `json:"brand"`
	Size        *string   `json:"size"`
	Memo        *string   `json:"memo"`
	ShoppingURL *string   `json:"shopping_url"`
	Price       *int64    `json:"price"`
	IsPurchased *bool     `json:"is_purchased"`
	Tags        *[]string `json:"tags"`
}

type addFromProductRequest struct {
	ProductID    string  `json:"product_id"`
	Name         string  `json:"name" binding:"required"`
	Brand        string  `json:"brand"`
	Price        *int64  `json:"price"`
	ThumbnailURL string  `json:"thumbnail_url" binding:"required"`
	ProductURL   string  `json:"product_url"`
	Category     *string `json:"category"`
	Color        *string `json:"color"`
}

// handleCreateItem accepts a multipart garment upload, runs it through the
// background-removal facade and appends the item to the closet. The original
// image URL is stored alongside the processed one.
func (m *Module) handleCreateItem(c *gin.Context) {
	userID := authorization.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	if !filestore.IsImageContentType(file.Header.Get("Content-Type")) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only image files are allowed"})
		return
	}
	if file.Size > filestore.MaxImageBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image exceeds the 5MB limit"})
		return
	}

	category, ok := NormalizeCategory(c.PostForm("category"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidCategory.Error()})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return
	}
	data, err := io.ReadAll(io.LimitReader(src, filestore.MaxImageBytes+1))
	src.Close()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return
	}
	if int64(len(data)) > filestore.MaxImageBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image exceeds the 5MB limit"})
		return
	}

	ctx := ai.WithUser(c.Request.Context(), userID)

	originalURL, err := m.store.SaveBytes(ctx, data, file.Header.Get("Content-Type"), file.Filename, "closet", "originals")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store image"})
		return
	}

	processedURL, err := m.ai.RemoveBackground(ctx, ai.ImageInput{
		Data:        data,
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
	})
	if err != nil {
		// Validation errors only; connectivity failures already fell back.
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Mock strategies answer with inline data URLs; persist those so the row
	// stores a short storage URL instead of megabytes of base64.
	if decoded, contentType, ok := ai.DecodeDataURL(processedURL); ok {
		stored, err := m.store.SaveBytes(ctx, decoded, contentType, file.Filename, "closet", "processed")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store image"})
			return
		}
		processedURL = stored
	}

	item := &ClothingItem{
		UserID:           userID,
		Category:         category,
		ImageURL:         processedURL,
		OriginalImageURL: originalURL,
		Color:            defaultColor(c.PostForm("color")),
		IsPurchased:      strings.EqualFold(strings.TrimSpace(c.PostForm("is_purchased")), "true"),
	}

	if season := strings.TrimSpace(c.PostForm("season")); season != "" {
		normalized, ok := NormalizeSeason(season)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidSeason.Error()})
			return
		}
		item.Season = &normalized
	}
	item.Brand = optionalField(c.PostForm("brand"))
	item.Size = optionalField(c.PostForm("size"))
	item.Memo = optionalField(c.PostForm("memo"))
	item.ShoppingURL = optionalField(c.PostForm("shopping_url"))

	if raw := strings.TrimSpace(c.PostForm("price")); raw != "" {
		if price, err := strconv.ParseInt(strings.ReplaceAll(raw, ",", ""), 10, 64); err == nil && price >= 0 {
			item.Price = &price
		}
	}
	if raw := strings.TrimSpace(c.PostForm("tags")); raw != "" {
		item.Tags = tagsJSON(strings.Split(raw, ","))
	}

	if err := m.db.WithContext(ctx).Create(item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save item"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"item": item})
}

// handleListItems returns the caller's inventory in insertion order,
// optionally filtered by category or favorite flag.
func (m *Module) handleListItems(c *gin.Context) {
	userID := authorization.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	query := m.db.WithContext(c.Request.Context()).Where("user_id = ?", userID).Order("id ASC")

	if raw := strings.TrimSpace(c.Query("category")); raw != "" {
		category, ok := NormalizeCategory(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidCategory.Error()})
			return
		}
		query = query.Where("category = ?", category)
	}
	if raw := strings.TrimSpace(c.Query("favorite")); raw != "" {
		if favorite, err := strconv.ParseBool(raw); err == nil {
			query = query.Where("is_favorite = ?", favorite)
		}
	}

	var items []ClothingItem
	if err := query.Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load items"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

func (m *Module) handleGetItem(c *gin.Context) {
	item, ok := m.loadOwnedItem(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item})
}

func (m *Module) handleUpdateItem(c *gin.Context) {
	item, ok := m.loadOwnedItem(c)
	if !ok {
		return
	}

	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	updates := make(map[string]interface{})

	if req.Category != nil {
		category, ok := NormalizeCategory(*req.Category)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidCategory.Error()})
			return
		}
		updates["category"] = category
	}
	if req.Color != nil {
		updates["color"] = defaultColor(*req.Color)
	}
	if req.Season != nil {
		if strings.TrimSpace(*req.Season) == "" {
			updates["season"] = nil
		} else {
			season, ok := NormalizeSeason(*req.Season)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidSeason.Error()})
				return
			}
			updates["season"] = season
		}
	}
	if req.Brand != nil {
		updates["brand"] = nullableField(*req.Brand)
	}
	if req.Size != nil {
		updates["size"] = nullableField(*req.Size)
	}
	if req.Memo != nil {
		updates["memo"] = nullableField(*req.Memo)
	}
	if req.ShoppingURL != nil {
		updates["shopping_url"] = nullableField(*req.ShoppingURL)
	}
	if req.Price != nil {
		if *req.Price < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price cannot be negative"})
			return
		}
		updates["price"] = *req.Price
	}
	if req.IsPurchased != nil {
		updates["is_purchased"] = *req.IsPurchased
	}
	if req.Tags != nil {
		updates["tags"] = tagsJSON(*req.Tags)
	}

	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	ctx := c.Request.Context()
	if err := m.db.WithContext(ctx).Model(item).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update item"})
		return
	}

	var updated ClothingItem
	if err := m.db.WithContext(ctx).First(&updated, item.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load item"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": updated})
}

func (m *Module) handleDeleteItem(c *gin.Context) {
	item, ok := m.loadOwnedItem(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := m.db.WithContext(ctx).Delete(item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete item"})
		return
	}

	if item.OriginalImageURL != "" {
		if err := m.store.Remove(ctx, item.OriginalImageURL); err != nil {
			log.Printf("closet: remove original image for item %d: %v", item.ID, err)
		}
	}
	if strings.HasPrefix(item.ImageURL, "/uploads/") || strings.Contains(item.ImageURL, "://") {
		if err := m.store.Remove(ctx, item.ImageURL); err != nil {
			log.Printf("closet: remove processed image for item %d: %v", item.ID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (m *Module) handleToggleFavorite(c *gin.Context) {
	item, ok := m.loadOwnedItem(c)
	if !ok {
		return
	}

	item.IsFavorite = !item.IsFavorite
	if err := m.db.WithContext(c.Request.Context()).Model(item).Update("is_favorite", item.IsFavorite).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": item})
}

// handleAddFromProduct converts a shopping search result into an owned
// clothing item. The product thumbnail becomes the item image; no background
// removal runs here.
func (m *Module) handleAddFromProduct(c *gin.Context) {
	userID := authorization.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req addFromProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	category := "top"
	if req.Category != nil {
		normalized, ok := NormalizeCategory(*req.Category)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidCategory.Error()})
			return
		}
		category = normalized
	}

	color := "Unknown"
	if req.Color != nil {
		color = defaultColor(*req.Color)
	}

	memo := strings.TrimSpace(req.Name)
	item := &ClothingItem{
		UserID:           userID,
		Category:         category,
		ImageURL:         req.ThumbnailURL,
		OriginalImageURL: req.ThumbnailURL,
		Color:            color,
		Brand:            optionalField(req.Brand),
		Memo:             &memo,
		ShoppingURL:      optionalField(req.ProductURL),
		Price:            req.Price,
		IsPurchased:      false,
		Tags:             tagsJSON([]string{"shopping"}),
	}

	if err := m.db.WithContext(c.Request.Context()).Create(item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save item"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"item": item})
}

func (m *Module) loadOwnedItem(c *gin.Context) (*ClothingItem, bool) {
	userID := authorization.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return nil, false
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return nil, false
	}

	var item ClothingItem
	result := m.db.WithContext(c.Request.Context()).Where("id = ? AND user_id = ?", id, userID).First(&item)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load item"})
		}
		return nil, false
	}
	return &item, true
}

func defaultColor(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "Unknown"
	}
	return trimmed
}

func optionalField(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func nullableField(raw string) interface{} {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return trimmed
}

func tagsJSON(tags []string) datatypes.JSON {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	encoded, err := json.Marshal(cleaned)
	if err != nil {
		return nil
	}
	return datatypes.JSON(encoded)
}
