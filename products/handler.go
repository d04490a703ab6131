package products

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	filestore "lookmate_back/storage"
	"github.com/gin-gonic/gin"
)

// Module serves the product search endpoints. Search is open to anonymous
// visitors so a closet is not required for browsing.
type Module struct {
	searcher Searcher
}

// RegisterRoutes wires the product search routes with the backend selected
// from the environment.
func RegisterRoutes(router *gin.Engine) *Module {
	module := &Module{searcher: NewSearcherFromEnv()}

	group := router.Group("/products")
	group.POST("/search/by-image", module.handleSearchByImage)
	group.POST("/search/by-item", module.handleSearchByItem)

	return module
}

func (m *Module) handleSearchByImage(c *gin.Context) {
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

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return
	}
	data, err := io.ReadAll(io.LimitReader(src, filestore.MaxImageBytes+1))
	src.Close()
	if err != nil || int64(len(data)) > filestore.MaxImageBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image exceeds the 5MB limit"})
		return
	}

	query := ImageQuery{
		Data:        data,
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Sort:        NormalizeSortMode(strings.TrimSpace(c.PostForm("sort"))),
		Limit:       parseLimit(c.PostForm("limit")),
	}

	results, err := m.searcher.SearchByImage(c.Request.Context(), query)
	if err != nil {
		m.respondSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": results, "total": len(results), "sort": query.Sort})
}

type searchByItemRequest struct {
	Category string `json:"category"`
	Color    string `json:"color"`
	Brand    string `json:"brand"`
	Sort     string `json:"sort"`
	Limit    int    `json:"limit"`
}

func (m *Module) handleSearchByItem(c *gin.Context) {
	var req searchByItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	query := ItemQuery{
		Category: req.Category,
		Color:    req.Color,
		Brand:    req.Brand,
		Sort:     NormalizeSortMode(strings.TrimSpace(req.Sort)),
		Limit:    req.Limit,
	}

	results, err := m.searcher.SearchByItem(c.Request.Context(), query)
	if err != nil {
		m.respondSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": results, "total": len(results), "sort": query.Sort})
}

func (m *Module) respondSearchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrImageRequired), errors.Is(err, ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "product search is temporarily unavailable"})
	}
}

func parseLimit(raw string) int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil || parsed <= 0 {
		return 0
	}
	return parsed
}
