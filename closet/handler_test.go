package closet

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"lookmate_back/ai"
	filestore "lookmate_back/storage"
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
	require.NoError(t, db.AutoMigrate(&ClothingItem{}))

	local, err := filestore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	store := filestore.NewImageStoreWithLocal(local)
	return &Module{db: db, ai: &ai.MockService{}, store: store}
}

func newTestRouter(m *Module, userID uint64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	group := router.Group("/closet")
	if userID != 0 {
		group.Use(func(c *gin.Context) {
			c.Set("JWT_PAYLOAD", jwt.MapClaims{"user_id": float64(userID)})
		})
	}
	group.POST("/items", m.handleCreateItem)
	group.GET("/items", m.handleListItems)
	group.GET("/items/:id", m.handleGetItem)
	group.PUT("/items/:id", m.handleUpdateItem)
	group.DELETE("/items/:id", m.handleDeleteItem)
	group.POST("/items/:id/favorite", m.handleToggleFavorite)
	group.POST("/items/from-product", m.handleAddFromProduct)
	group.POST("/import", m.handleImportArchive)

	return router
}

func uploadItem(t *testing.T, router *gin.Engine, category string) *httptest.ResponseRecorder {
	t.Helper()
	return uploadItemPayload(t, router, category, []byte("png-bytes"))
}

func uploadItemPayload(t *testing.T, router *gin.Engine, category string, payload []byte) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="garment.png"`)
	header.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("category", category))
	require.NoError(t, writer.WriteField("color", "Navy"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/closet/items", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateItemAddsToInventory(t *testing.T) {
	m := newTestModule(t)
	router := newTestRouter(m, 1)

	rec := uploadItem(t, router, "top")
	require.Equal(t, http.StatusCreated, rec.Code)

	var parsed struct {
		Item ClothingItem `json:"item"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	require.NotZero(t, parsed.Item.ID)
	require.Equal(t, "top", parsed.Item.Category)
	require.Equal(t, "Navy", parsed.Item.Color)
	// The mock-processed image is persisted, never stored inline in the row.
	require.True(t, strings.HasPrefix(parsed.Item.ImageURL, "/uploads/closet/processed/"))
	require.True(t, strings.HasPrefix(parsed.Item.OriginalImageURL, "/uploads/closet/originals/"))

	var count int64
	require.NoError(t, m.db.Model(&ClothingItem{}).Where("user_id = ?", 1).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestCreateItemKeepsRowsSmallForLargeUploads(t *testing.T) {
	m := newTestModule(t)
	router := newTestRouter(m, 1)

	rec := uploadItemPayload(t, router, "top", bytes.Repeat([]byte{0x89}, 256*1024))
	require.Equal(t, http.StatusCreated, rec.Code)

	var parsed struct {
		Item ClothingItem `json:"item"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	require.True(t, strings.HasPrefix(parsed.Item.ImageURL, "/uploads/closet/processed/"))
	require.Less(t, len(parsed.Item.ImageURL), 512)
	require.Less(t, len(parsed.Item.OriginalImageURL), 512)
}

func TestCreateItemRejectsOversizeImage(t *testing.T) {
	m := newTestModule(t)
	router := newTestRouter(m, 1)

	oversized := bytes.Repeat([]byte{0x89}, int(filestore.MaxImageBytes)+1)
	rec := uploadItemPayload(t, router, "top", oversized)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var count int64
	require.NoError(t, m.db.Model(&ClothingItem{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCreateItemRejectsUnknownCategory(t *testing.T) {
	m := newTestModule(t)
	router := newTestRouter(m, 1)

	rec := uploadItem(t, router, "hat")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var count int64
	require.NoError(t, m.db.Model(&ClothingItem{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestListItemsFiltersAndOrders(t *testing.T) {
	m := newTestModule(t)
	router := newTestRouter(m, 1)

	require.Equal(t, http.StatusCreated, uploadItem(t, router, "top").Code)
	require.Equal(t, http.StatusCreated, uploadItem(t, router, "bottom").Code)
	require.Equal(t, http.StatusCreated, uploadItem(t, router, "top").Code)

	req := httptest.NewRequest(http.MethodGet, "/closet/items?category=top", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var parsed struct {
		Items []ClothingItem `json:"items"`
		Total int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	require.Equal(t, 2, parsed.Total)
	require.Less(t, parsed.Items[0].ID, parsed.Items[1].ID)
}

func TestGetItemHidesOtherClosets(t *testing.T) {
	m := newTestModule(t)
	owner := newTestRouter(m, 1)
	stranger := newTestRouter(m, 2)

	rec := uploadItem(t, owner, "top")
	require.Equal(t, http.StatusCreated, rec.Code)

	var parsed struct {
		Item ClothingItem `json:"item"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))

	req := httptest.NewRequest(http.MethodGet, "/closet/items/1", nil)
	recGet := httptest.NewRecorder()
	stranger.ServeHTTP(recGet, req)
	require.Equal(t, http.StatusNotFound, recGet.Code)
}

func TestToggleFavoriteIsSelfInverse(t *testing.T) {
	m := newTestModule(t)
	router := newTestRouter(m, 1)

	require.Equal(t, http.StatusCreated, uploadItem(t, router, "shoes").Code)

	toggle := func() bool {
		req := httptest.NewRequest(http.MethodPost, "/closet/items/1/favorite", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var parsed struct {
			Item ClothingItem `json:"item"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
		return parsed.Item.IsFavorite
	}

	require.True(t, toggle())
	require.False(t, toggle())
}

func TestAddFromProductRequiresAuth(t *testing.T) {
	m := newTestModule(t)
	anonymous := newTestRouter(m, 0)

	payload := `{"name":"Relaxed Oxford Shirt","thumbnail_url":"https://cdn.example/p.jpg","price":29900}`
	req := httptest.NewRequest(http.MethodPost, "/closet/items/from-product", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	anonymous.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var count int64
	require.NoError(t, m.db.Model(&ClothingItem{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestAddFromProductCreatesItem(t *testing.T) {
	m := newTestModule(t)
	router := newTestRouter(m, 7)

	payload := `{"name":"Wide Tapered Denim","brand":"Levi's","thumbnail_url":"https://cdn.example/p.jpg","product_url":"https://shop.example/p","price":89000,"category":"bottom"}`
	req := httptest.NewRequest(http.MethodPost, "/closet/items/from-product", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var parsed struct {
		Item ClothingItem `json:"item"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	require.Equal(t, "bottom", parsed.Item.Category)
	require.Equal(t, "https://cdn.example/p.jpg", parsed.Item.ImageURL)
	require.NotNil(t, parsed.Item.Brand)
	require.Equal(t, "Levi's", *parsed.Item.Brand)
	require.False(t, parsed.Item.IsPurchased)
}

func TestUpdateItemNormalizesFields(t *testing.T) {
	m := newTestModule(t)
	router := newTestRouter(m, 1)

	require.Equal(t, http.StatusCreated, uploadItem(t, router, "top").Code)

	payload := `{"season":"Winter","memo":"gift from mom","is_purchased":true}`
	req := httptest.NewRequest(http.MethodPut, "/closet/items/1", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var parsed struct {
		Item ClothingItem `json:"item"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	require.NotNil(t, parsed.Item.Season)
	require.Equal(t, "winter", *parsed.Item.Season)
	require.True(t, parsed.Item.IsPurchased)
}

func TestDeleteItemRemovesRow(t *testing.T) {
	m := newTestModule(t)
	router := newTestRouter(m, 1)

	require.Equal(t, http.StatusCreated, uploadItem(t, router, "outer").Code)

	req := httptest.NewRequest(http.MethodDelete, "/closet/items/1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	require.NoError(t, m.db.Model(&ClothingItem{}).Count(&count).Error)
	require.Zero(t, count)
}
