package looks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lookmate_back/authorization"
	"lookmate_back/cache"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	feedCacheKeyPrefix = "lookmate:feed:"
	feedCacheTTL       = 30 * time.Second
	feedDefaultLimit   = 50
	feedMaxLimit       = 200
	maxLookItems       = 20
)

var (
	ErrLookNameRequired = errors.New("looks: name is required")
	ErrNoItems          = errors.New("looks: at least one item is required")
	ErrTooManyItems     = fmt.Errorf("looks: a look holds at most %d items", maxLookItems)
	ErrItemNotOwned     = errors.New("looks: one or more items are not in your closet")
)

// Module serves private look composition and the public look feed.
type Module struct {
	db    *gorm.DB
	redis *redis.Client
	hub   *Hub
}

// RegisterRoutes initialises the looks module and mounts both the private
// composition routes and the public feed. Redis is optional: without it the
// feed is served straight from the database.
func RegisterRoutes(router *gin.Engine, guard *authorization.Guard) (*Module, error) {
	db, err := openDatabaseFromEnv()
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Look{}, &PublicLook{}, &LookReaction{}); err != nil {
		return nil, err
	}

	redisClient, err := cache.GetRedisClient()
	if err != nil {
		log.Printf("looks: redis unavailable, feed cache disabled: %v", err)
		redisClient = nil
	}

	module := &Module{db: db, redis: redisClient, hub: NewHub()}

	authed := router.Group("/looks")
	if guard != nil {
		authed.Use(guard.RequireAuthenticated())
	} else {
		authed.Use(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization middleware missing"})
		})
	}
	authed.POST("", module.handleCreateLook)
	authed.GET("", module.handleListLooks)
	authed.GET("/:id", module.handleGetLook)
	authed.PUT("/:id", module.handleUpdateLook)
	authed.DELETE("/:id", module.handleDeleteLook)
	authed.POST("/:id/publish", module.handlePublishLook)
	authed.POST("/:id/unpublish", module.handleUnpublishLook)

	public := router.Group("/looks/public")
	public.GET("", module.handlePublicFeed)
	public.GET("/live", module.handleLiveFeed)
	public.GET("/:publicId", module.handleGetPublicLook)

	reactions := router.Group("/looks/public")
	if guard != nil {
		reactions.Use(guard.RequireAuthenticated())
	}
	reactions.POST("/:publicId/like", module.handleToggleReaction(ReactionLike))
	reactions.POST("/:publicId/bookmark", module.handleToggleReaction(ReactionBookmark))
	reactions.GET("/me/reactions", module.handleMyReactions)

	return module, nil
}

type lookRequest struct {
	Name            string                    `json:"name"`
	ItemIDs         []uint64                  `json:"item_ids"`
	LayerTransforms map[string]LayerTransform `json:"layer_transforms"`
	SnapshotURL     *string                   `json:"snapshot_url"`
	Tags            []string                  `json:"tags"`
}

type snapshotItem struct {
	ID        uint64          `json:"id"`
	Category  string          `json:"category"`
	ImageURL  string          `json:"image_url"`
	Color     string          `json:"color"`
	Transform *LayerTransform `json:"transform,omitempty"`
}

func (m *Module) handleCreateLook(c *gin.Context) {
	userID := authorization.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req lookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	look, err := m.buildLook(c.Request.Context(), userID, req)
	if err != nil {
		m.respondLookError(c, err)
		return
	}

	if err := m.db.WithContext(c.Request.Context()).Create(look).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save look"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"look": look})
}

func (m *Module) handleListLooks(c *gin.Context) {
	userID := authorization.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var items []Look
	err := m.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load looks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"looks": items, "total": len(items)})
}

func (m *Module) handleGetLook(c *gin.Context) {
	look, ok := m.loadOwnedLook(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"look": look})
}

func (m *Module) handleUpdateLook(c *gin.Context) {
	look, ok := m.loadOwnedLook(c)
	if !ok {
		return
	}

	var req lookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	replacement, err := m.buildLook(c.Request.Context(), look.UserID, req)
	if err != nil {
		m.respondLookError(c, err)
		return
	}

	updates := map[string]interface{}{
		"name":             replacement.Name,
		"item_ids":         replacement.ItemIDs,
		"layer_transforms": replacement.LayerTransforms,
		"tags":             replacement.Tags,
	}
	if req.SnapshotURL != nil {
		updates["snapshot_url"] = nullableField(*req.SnapshotURL)
	}

	ctx := c.Request.Context()
	if err := m.db.WithContext(ctx).Model(look).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update look"})
		return
	}

	var updated Look
	if err := m.db.WithContext(ctx).First(&updated, look.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load look"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"look": updated})
}

func (m *Module) handleDeleteLook(c *gin.Context) {
	look, ok := m.loadOwnedLook(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var published []PublicLook
		if err := tx.Where("look_id = ?", look.ID).Find(&published).Error; err != nil {
			return err
		}
		for _, post := range published {
			if err := tx.Where("public_look_id = ?", post.ID).Delete(&LookReaction{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("look_id = ?", look.ID).Delete(&PublicLook{}).Error; err != nil {
			return err
		}
		return tx.Delete(look).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete look"})
		return
	}

	m.invalidateFeedCache(ctx)
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// handlePublishLook copies the look and its current closet item data into an
// immutable PublicLook. Re-publishing an already public look creates a fresh
// snapshot and retires the old post.
func (m *Module) handlePublishLook(c *gin.Context) {
	look, ok := m.loadOwnedLook(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	snapshot, err := m.snapshotItems(ctx, look)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to snapshot look items"})
		return
	}
	if len(snapshot) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "look has no items left to publish"})
		return
	}

	encoded, err := json.Marshal(snapshot)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to snapshot look items"})
		return
	}

	ownerName := authorization.CurrentDisplayName(c)
	if ownerName == "" {
		ownerName = "anonymous"
	}

	post := &PublicLook{
		PublicID:      uuid.NewString(),
		LookID:        look.ID,
		OwnerID:       look.UserID,
		OwnerName:     ownerName,
		Title:         look.Name,
		SnapshotURL:   look.SnapshotURL,
		ItemsSnapshot: datatypes.JSON(encoded),
		Tags:          look.Tags,
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stale []PublicLook
		if err := tx.Where("look_id = ?", look.ID).Find(&stale).Error; err != nil {
			return err
		}
		for _, old := range stale {
			if err := tx.Where("public_look_id = ?", old.ID).Delete(&LookReaction{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("look_id = ?", look.ID).Delete(&PublicLook{}).Error; err != nil {
			return err
		}
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		return tx.Model(look).Update("is_public", true).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to publish look"})
		return
	}

	m.invalidateFeedCache(ctx)
	m.hub.Broadcast(FeedEvent{
		Type:      EventLookPublished,
		PublicID:  post.PublicID,
		OwnerName: post.OwnerName,
		Title:     post.Title,
	})

	c.JSON(http.StatusCreated, gin.H{"public_look": post})
}

func (m *Module) handleUnpublishLook(c *gin.Context) {
	look, ok := m.loadOwnedLook(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var published []PublicLook
		if err := tx.Where("look_id = ?", look.ID).Find(&published).Error; err != nil {
			return err
		}
		for _, post := range published {
			if err := tx.Where("public_look_id = ?", post.ID).Delete(&LookReaction{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("look_id = ?", look.ID).Delete(&PublicLook{}).Error; err != nil {
			return err
		}
		return tx.Model(look).Update("is_public", false).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unpublish look"})
		return
	}

	m.invalidateFeedCache(ctx)
	c.JSON(http.StatusOK, gin.H{"look_id": look.ID, "is_public": false})
}

// handlePublicFeed serves the shared feed, cached briefly in Redis per sort
// mode. No authentication required.
func (m *Module) handlePublicFeed(c *gin.Context) {
	mode := NormalizeSort(strings.TrimSpace(c.Query("sort")))

	limit := feedDefaultLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > feedMaxLimit {
		limit = feedMaxLimit
	}

	ctx := c.Request.Context()

	if cached, ok := m.cachedFeed(ctx, mode); ok {
		if len(cached) > limit {
			cached = cached[:limit]
		}
		c.JSON(http.StatusOK, gin.H{"looks": cached, "total": len(cached), "sort": mode, "cached": true})
		return
	}

	var feed []PublicLook
	if err := m.db.WithContext(ctx).Find(&feed).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load feed"})
		return
	}
	SortPublicLooks(feed, mode)

	m.storeFeedCache(ctx, mode, feed)

	if len(feed) > limit {
		feed = feed[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"looks": feed, "total": len(feed), "sort": mode, "cached": false})
}

func (m *Module) handleGetPublicLook(c *gin.Context) {
	post, ok := m.loadPublicLook(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"look": post})
}

// handleToggleReaction flips a like or bookmark for the caller. Toggling twice
// restores both the membership and the counter, all inside one transaction.
func (m *Module) handleToggleReaction(kind string) gin.HandlerFunc {
	counterColumn := "like_count"
	if kind == ReactionBookmark {
		counterColumn = "bookmark_count"
	}

	return func(c *gin.Context) {
		viewerID := authorization.CurrentUserID(c)
		if viewerID == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		post, ok := m.loadPublicLook(c)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		active := false
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			result := tx.Where("public_look_id = ? AND viewer_id = ? AND kind = ?", post.ID, viewerID, kind).
				Delete(&LookReaction{})
			if result.Error != nil {
				return result.Error
			}

			if result.RowsAffected > 0 {
				return tx.Model(&PublicLook{}).Where("id = ?", post.ID).
					UpdateColumn(counterColumn, gorm.Expr(counterColumn+" - 1")).Error
			}

			reaction := &LookReaction{PublicLookID: post.ID, ViewerID: viewerID, Kind: kind}
			if err := tx.Create(reaction).Error; err != nil {
				return err
			}
			active = true
			return tx.Model(&PublicLook{}).Where("id = ?", post.ID).
				UpdateColumn(counterColumn, gorm.Expr(counterColumn+" + 1")).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update reaction"})
			return
		}

		var refreshed PublicLook
		if err := m.db.WithContext(ctx).First(&refreshed, post.ID).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load look"})
			return
		}

		m.invalidateFeedCache(ctx)
		if kind == ReactionLike {
			m.hub.Broadcast(FeedEvent{
				Type:      EventLookLiked,
				PublicID:  refreshed.PublicID,
				Title:     refreshed.Title,
				LikeCount: refreshed.LikeCount,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"public_id":      refreshed.PublicID,
			"kind":           kind,
			"active":         active,
			"like_count":     refreshed.LikeCount,
			"bookmark_count": refreshed.BookmarkCount,
		})
	}
}

// handleMyReactions lists the public look IDs the caller has liked and
// bookmarked so clients can render toggle state.
func (m *Module) handleMyReactions(c *gin.Context) {
	viewerID := authorization.CurrentUserID(c)
	if viewerID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	type reactionRow struct {
		PublicID string
		Kind     string
	}

	var rows []reactionRow
	err := m.db.WithContext(c.Request.Context()).
		Table("look_reactions").
		Select("public_looks.public_id AS public_id, look_reactions.kind AS kind").
		Joins("JOIN public_looks ON public_looks.id = look_reactions.public_look_id").
		Where("look_reactions.viewer_id = ?", viewerID).
		Scan(&rows).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load reactions"})
		return
	}

	liked := make([]string, 0)
	bookmarked := make([]string, 0)
	for _, row := range rows {
		switch row.Kind {
		case ReactionLike:
			liked = append(liked, row.PublicID)
		case ReactionBookmark:
			bookmarked = append(bookmarked, row.PublicID)
		}
	}

	c.JSON(http.StatusOK, gin.H{"liked": liked, "bookmarked": bookmarked})
}

func (m *Module) handleLiveFeed(c *gin.Context) {
	m.hub.Serve(c.Writer, c.Request)
}

func (m *Module) buildLook(ctx context.Context, userID uint64, req lookRequest) (*Look, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrLookNameRequired
	}
	if len(req.ItemIDs) == 0 {
		return nil, ErrNoItems
	}
	if len(req.ItemIDs) > maxLookItems {
		return nil, ErrTooManyItems
	}

	seen := make(map[uint64]struct{}, len(req.ItemIDs))
	unique := make([]uint64, 0, len(req.ItemIDs))
	for _, id := range req.ItemIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	var owned int64
	err := m.db.WithContext(ctx).
		Table("clothing_items").
		Where("id IN ? AND user_id = ?", unique, userID).
		Count(&owned).Error
	if err != nil {
		return nil, fmt.Errorf("looks: verify item ownership: %w", err)
	}
	if owned != int64(len(unique)) {
		return nil, ErrItemNotOwned
	}

	look := &Look{
		UserID:  userID,
		Name:    name,
		ItemIDs: encodeItemIDs(unique),
	}
	if req.SnapshotURL != nil {
		if trimmed := strings.TrimSpace(*req.SnapshotURL); trimmed != "" {
			look.SnapshotURL = &trimmed
		}
	}
	if len(req.LayerTransforms) > 0 {
		encoded, err := json.Marshal(req.LayerTransforms)
		if err != nil {
			return nil, fmt.Errorf("looks: encode layer transforms: %w", err)
		}
		look.LayerTransforms = datatypes.JSON(encoded)
	}
	if len(req.Tags) > 0 {
		encoded, err := json.Marshal(req.Tags)
		if err != nil {
			return nil, fmt.Errorf("looks: encode tags: %w", err)
		}
		look.Tags = datatypes.JSON(encoded)
	}

	return look, nil
}

// snapshotItems reads the current closet rows for the look's items and pairs
// each with its layer transform.
func (m *Module) snapshotItems(ctx context.Context, look *Look) ([]snapshotItem, error) {
	ids := decodeItemIDs(look.ItemIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	type itemRow struct {
		ID       uint64
		Category string
		ImageURL string
		Color    string
	}

	var rows []itemRow
	err := m.db.WithContext(ctx).
		Table("clothing_items").
		Select("id, category, image_url, color").
		Where("id IN ? AND user_id = ?", ids, look.UserID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[uint64]itemRow, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	var transforms map[string]LayerTransform
	if len(look.LayerTransforms) > 0 {
		if err := json.Unmarshal(look.LayerTransforms, &transforms); err != nil {
			transforms = nil
		}
	}

	snapshot := make([]snapshotItem, 0, len(ids))
	for _, id := range ids {
		row, ok := byID[id]
		if !ok {
			continue
		}
		entry := snapshotItem{
			ID:       row.ID,
			Category: row.Category,
			ImageURL: row.ImageURL,
			Color:    row.Color,
		}
		if transforms != nil {
			if transform, ok := transforms[strconv.FormatUint(id, 10)]; ok {
				copied := transform
				entry.Transform = &copied
			}
		}
		snapshot = append(snapshot, entry)
	}

	return snapshot, nil
}

func (m *Module) loadOwnedLook(c *gin.Context) (*Look, bool) {
	userID := authorization.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return nil, false
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid look id"})
		return nil, false
	}

	var look Look
	result := m.db.WithContext(c.Request.Context()).Where("id = ? AND user_id = ?", id, userID).First(&look)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "look not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load look"})
		}
		return nil, false
	}
	return &look, true
}

func (m *Module) loadPublicLook(c *gin.Context) (*PublicLook, bool) {
	publicID := strings.TrimSpace(c.Param("publicId"))
	if publicID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid public look id"})
		return nil, false
	}

	var post PublicLook
	result := m.db.WithContext(c.Request.Context()).Where("public_id = ?", publicID).First(&post)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "public look not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load look"})
		}
		return nil, false
	}
	return &post, true
}

func (m *Module) respondLookError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrLookNameRequired),
		errors.Is(err, ErrNoItems),
		errors.Is(err, ErrTooManyItems),
		errors.Is(err, ErrItemNotOwned):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process look"})
	}
}

func (m *Module) cachedFeed(ctx context.Context, mode string) ([]PublicLook, bool) {
	if m.redis == nil {
		return nil, false
	}
	raw, err := m.redis.Get(ctx, feedCacheKeyPrefix+mode).Bytes()
	if err != nil {
		return nil, false
	}
	var feed []PublicLook
	if err := json.Unmarshal(raw, &feed); err != nil {
		return nil, false
	}
	return feed, true
}

func (m *Module) storeFeedCache(ctx context.Context, mode string, feed []PublicLook) {
	if m.redis == nil {
		return
	}
	encoded, err := json.Marshal(feed)
	if err != nil {
		return
	}
	if err := m.redis.Set(ctx, feedCacheKeyPrefix+mode, encoded, feedCacheTTL).Err(); err != nil {
		log.Printf("looks: cache feed %s: %v", mode, err)
	}
}

func (m *Module) invalidateFeedCache(ctx context.Context) {
	if m.redis == nil {
		return
	}
	keys := []string{
		feedCacheKeyPrefix + SortRecommend,
		feedCacheKeyPrefix + SortRecent,
		feedCacheKeyPrefix + SortLikes,
	}
	if err := m.redis.Del(ctx, keys...).Err(); err != nil {
		log.Printf("looks: invalidate feed cache: %v", err)
	}
}

func nullableField(raw string) interface{} {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return trimmed
}
