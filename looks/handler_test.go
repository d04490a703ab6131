package looks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"lookmate_back/closet"
	jwt "github.com/appleboy/gin-jwt/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestModule(t *testing.T) *Module {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Look{}, &PublicLook{}, &LookReaction{}, &closet.ClothingItem{}))

	return &Module{db: db, hub: NewHub()}
}

func newTestRouter(m *Module, userID uint64, displayName string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	inject := func(c *gin.Context) {
		if userID != 0 {
			c.Set("JWT_PAYLOAD", jwt.MapClaims{
				"user_id":      float64(userID),
				"display_name": displayName,
			})
		}
	}

	authed := router.Group("/looks")
	authed.Use(inject)
	authed.POST("", m.handleCreateLook)
	authed.GET("", m.handleListLooks)
	authed.GET("/:id", m.handleGetLook)
	authed.PUT("/:id", m.handleUpdateLook)
	authed.DELETE("/:id", m.handleDeleteLook)
	authed.POST("/:id/publish", m.handlePublishLook)
	authed.POST("/:id/unpublish", m.handleUnpublishLook)

	public := router.Group("/looks/public")
	public.GET("", m.handlePublicFeed)
	public.GET("/:publicId", m.handleGetPublicLook)

	reactions := router.Group("/looks/public")
	reactions.Use(inject)
	reactions.POST("/:publicId/like", m.handleToggleReaction(ReactionLike))
	reactions.POST("/:publicId/bookmark", m.handleToggleReaction(ReactionBookmark))
	reactions.GET("/me/reactions", m.handleMyReactions)

	return router
}

func seedItems(t *testing.T, m *Module, userID uint64, count int) []uint64 {
	t.Helper()

	ids := make([]uint64, 0, count)
	for i := 0; i < count; i++ {
		item := closet.ClothingItem{
			UserID:           userID,
			Category:         "top",
			ImageURL:         fmt.Sprintf("/uploads/closet/item-%d.png", i),
			OriginalImageURL: fmt.Sprintf("/uploads/closet/originals/item-%d.png", i),
			Color:            "Navy",
		}
		require.NoError(t, m.db.Create(&item).Error)
		ids = append(ids, item.ID)
	}
	return ids
}

func createLook(t *testing.T, router *gin.Engine, itemIDs []uint64) Look {
	t.Helper()

	payload, err := json.Marshal(map[string]interface{}{
		"name":     "Weekend Fit",
		"item_ids": itemIDs,
		"layer_transforms": map[string]LayerTransform{
			fmt.Sprintf("%d", itemIDs[0]): {OffsetY: 20, Scale: 1, Visible: true},
		},
		"tags": []string{"casual"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/looks", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var parsed struct {
		Look Look `json:"look"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	return parsed.Look
}

func publishLook(t *testing.T, router *gin.Engine, lookID uint64) PublicLook {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/looks/%d/publish", lookID), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var parsed struct {
		PublicLook PublicLook `json:"public_look"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	return parsed.PublicLook
}

func TestCreateLookRejectsForeignItems(t *testing.T) {
	m := newTestModule(t)
	router := newTestRouter(m, 1, "Mina")

	foreign := seedItems(t, m, 2, 1)

	payload, err := json.Marshal(map[string]interface{}{
		"name":     "Borrowed Fit",
		"item_ids": foreign,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/looks", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublishSnapshotSurvivesClosetEdits(t *testing.T) {
	m := newTestModule(t)
	router := newTestRouter(m, 1, "Mina")

	itemIDs := seedItems(t, m, 1, 2)
	look := createLook(t, router, itemIDs)
	post := publishLook(t, router, look.ID)
	require.Equal(t, "Mina", post.OwnerName)

	// Edit the closet item after publishing.
	require.NoError(t, m.db.Model(&closet.ClothingItem{}).
		Where("id = ?", itemIDs[0]).
		Update("image_url", "/uploads/closet/rewritten.png").Error)

	req := httptest.NewRequest(http.MethodGet, "/looks/public/"+post.PublicID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var parsed struct {
		Look PublicLook `json:"look"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))

	var snapshot []snapshotItem
	require.NoError(t, json.Unmarshal(parsed.Look.ItemsSnapshot, &snapshot))
	require.Len(t, snapshot, 2)
	require.Equal(t, "/uploads/closet/item-0.png", snapshot[0].ImageURL)
}

func TestGetPublicLookUnknownIDReturns404(t *testing.T) {
	m := newTestModule(t)
	router := newTestRouter(m, 0, "")

	req := httptest.NewRequest(http.MethodGet, "/looks/public/no-such-id", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLikeToggleIsSelfInverse(t *testing.T) {
	m := newTestModule(t)
	owner := newTestRouter(m, 1, "Mina")
	viewer := newTestRouter(m, 2, "Joon")

	itemIDs := seedItems(t, m, 1, 1)
	look := createLook(t, owner, itemIDs)
	post := publishLook(t, owner, look.ID)

	toggle := func() (bool, int64) {
		req := httptest.NewRequest(http.MethodPost, "/looks/public/"+post.PublicID+"/like", nil)
		rec := httptest.NewRecorder()
		viewer.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var parsed struct {
			Active    bool  `json:"active"`
			LikeCount int64 `json:"like_count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
		return parsed.Active, parsed.LikeCount
	}

	active, likes := toggle()
	require.True(t, active)
	require.EqualValues(t, 1, likes)

	active, likes = toggle()
	require.False(t, active)
	require.Zero(t, likes)

	var reactions int64
	require.NoError(t, m.db.Model(&LookReaction{}).Count(&reactions).Error)
	require.Zero(t, reactions)
}

func TestBookmarkAndLikeAreIndependent(t *testing.T) {
	m := newTestModule(t)
	owner := newTestRouter(m, 1, "Mina")
	viewer := newTestRouter(m, 2, "Joon")

	itemIDs := seedItems(t, m, 1, 1)
	look := createLook(t, owner, itemIDs)
	post := publishLook(t, owner, look.ID)

	req := httptest.NewRequest(http.MethodPost, "/looks/public/"+post.PublicID+"/bookmark", nil)
	rec := httptest.NewRecorder()
	viewer.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var refreshed PublicLook
	require.NoError(t, m.db.Where("public_id = ?", post.PublicID).First(&refreshed).Error)
	require.EqualValues(t, 1, refreshed.BookmarkCount)
	require.Zero(t, refreshed.LikeCount)

	recReactions := httptest.NewRecorder()
	viewer.ServeHTTP(recReactions, httptest.NewRequest(http.MethodGet, "/looks/public/me/reactions", nil))
	require.Equal(t, http.StatusOK, recReactions.Code)

	var parsed struct {
		Liked      []string `json:"liked"`
		Bookmarked []string `json:"bookmarked"`
	}
	require.NoError(t, json.Unmarshal(recReactions.Body.Bytes(), &parsed))
	require.Empty(t, parsed.Liked)
	require.Equal(t, []string{post.PublicID}, parsed.Bookmarked)
}

func TestPublicFeedSortsByLikes(t *testing.T) {
	m := newTestModule(t)
	owner := newTestRouter(m, 1, "Mina")

	itemIDs := seedItems(t, m, 1, 1)

	first := createLook(t, owner, itemIDs)
	firstPost := publishLook(t, owner, first.ID)

	second := createLook(t, owner, itemIDs)
	secondPost := publishLook(t, owner, second.ID)

	require.NoError(t, m.db.Model(&PublicLook{}).
		Where("public_id = ?", secondPost.PublicID).
		Update("like_count", 10).Error)

	req := httptest.NewRequest(http.MethodGet, "/looks/public?sort=likes", nil)
	rec := httptest.NewRecorder()
	owner.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var parsed struct {
		Looks []PublicLook `json:"looks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	require.Len(t, parsed.Looks, 2)
	require.Equal(t, secondPost.PublicID, parsed.Looks[0].PublicID)
	require.Equal(t, firstPost.PublicID, parsed.Looks[1].PublicID)
}

func TestRepublishRetiresOldPost(t *testing.T) {
	m := newTestModule(t)
	owner := newTestRouter(m, 1, "Mina")

	itemIDs := seedItems(t, m, 1, 1)
	look := createLook(t, owner, itemIDs)

	first := publishLook(t, owner, look.ID)
	second := publishLook(t, owner, look.ID)
	require.NotEqual(t, first.PublicID, second.PublicID)

	var count int64
	require.NoError(t, m.db.Model(&PublicLook{}).Where("look_id = ?", look.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	req := httptest.NewRequest(http.MethodGet, "/looks/public/"+first.PublicID, nil)
	rec := httptest.NewRecorder()
	owner.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnpublishClearsFeed(t *testing.T) {
	m := newTestModule(t)
	owner := newTestRouter(m, 1, "Mina")

	itemIDs := seedItems(t, m, 1, 1)
	look := createLook(t, owner, itemIDs)
	publishLook(t, owner, look.ID)

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/looks/%d/unpublish", look.ID), nil)
	rec := httptest.NewRecorder()
	owner.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	require.NoError(t, m.db.Model(&PublicLook{}).Count(&count).Error)
	require.Zero(t, count)

	var updated Look
	require.NoError(t, m.db.First(&updated, look.ID).Error)
	require.False(t, updated.IsPublic)
}
