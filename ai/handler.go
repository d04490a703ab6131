package ai

import (
	"context"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lookmate_back/authorization"
	filestore "lookmate_back/storage"
	"github.com/gin-gonic/gin"
)

const stubModelVersion = "stub-v1.0"

// Module serves the AI endpoints. Each handler validates the upload, runs it
// through the configured Service strategy and persists inline results, so the
// same routes work in mock and remote mode alike.
type Module struct {
	store *filestore.ImageStore
	svc   Service
}

// RegisterRoutes mounts the AI endpoints under /api/ai.
func RegisterRoutes(router *gin.Engine, store *filestore.ImageStore, svc Service) (*Module, error) {
	if store == nil {
		return nil, errors.New("ai: image store is required")
	}
	if svc == nil {
		return nil, errors.New("ai: service is required")
	}

	module := &Module{store: store, svc: svc}

	group := router.Group("/api/ai")
	group.POST("/avatar", module.handleAvatar)
	group.POST("/remove-background", module.handleRemoveBackground)
	group.POST("/try-on", module.handleTryOn)

	return module, nil
}

func (m *Module) handleAvatar(c *gin.Context) {
	file, err := c.FormFile("faceImage")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "faceImage is required"})
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

	var height float64
	if raw := strings.TrimSpace(c.PostForm("height")); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			height = parsed
		}
	}
	bodyType := normalizedOrDefault(c.PostForm("bodyType"), "normal", authorization.NormalizeBodyType)
	gender := normalizedOrDefault(c.PostForm("gender"), "unisex", authorization.NormalizeGender)

	face, err := readImage(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return
	}

	ctx := WithUser(c.Request.Context(), authorization.CurrentUserID(c))
	result, err := m.svc.GenerateAvatar(ctx, AvatarOptions{
		FaceImage: &face,
		Height:    height,
		BodyType:  bodyType,
		Gender:    gender,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stored, err := m.persistResult(ctx, result, file.Filename, "ai", "avatars")
	if err != nil {
		m.respondStoreError(c, err)
		return
	}

	log.Printf("ai: avatar generation request file=%s size=%d height=%v bodyType=%s gender=%s",
		file.Filename, file.Size, height, bodyType, gender)

	c.JSON(http.StatusOK, AvatarResult{
		AvatarURL: m.store.AbsoluteURL(filestore.RequestBaseURL(c.Request), stored),
		Meta: map[string]interface{}{
			"height":       height,
			"bodyType":     bodyType,
			"gender":       gender,
			"modelVersion": stubModelVersion,
		},
	})
}

func (m *Module) handleRemoveBackground(c *gin.Context) {
	file, err := c.FormFile("clothImage")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "clothImage is required"})
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

	image, err := readImage(file)
	if err != nil {
		if errors.Is(err, filestore.ErrImageTooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return
	}

	ctx := WithUser(c.Request.Context(), authorization.CurrentUserID(c))
	result, err := m.svc.RemoveBackground(ctx, image)
	if err != nil {
		// Validation errors only; connectivity failures already fell back.
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stored, err := m.persistResult(ctx, result, file.Filename, "ai", "backgrounds")
	if err != nil {
		m.respondStoreError(c, err)
		return
	}

	log.Printf("ai: background removal request file=%s size=%d type=%s",
		file.Filename, file.Size, file.Header.Get("Content-Type"))

	c.JSON(http.StatusOK, BackgroundRemovalResult{
		ImageURL: m.store.AbsoluteURL(filestore.RequestBaseURL(c.Request), stored),
		Meta: map[string]interface{}{
			"originalSize": file.Size,
			"processedAt":  time.Now().UTC().Format(time.RFC3339),
			"modelVersion": stubModelVersion,
		},
	})
}

func (m *Module) handleTryOn(c *gin.Context) {
	var req TryOnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	if strings.TrimSpace(req.AvatarImageURL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatarImageUrl is required"})
		return
	}
	if len(req.ClothingImageURLs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "clothingImageUrls array is required"})
		return
	}

	pose := strings.TrimSpace(req.Pose)
	if pose == "" {
		pose = "default"
	}

	ctx := WithUser(c.Request.Context(), authorization.CurrentUserID(c))
	result, err := m.svc.GenerateTryOn(ctx, req.AvatarImageURL, req.ClothingImageURLs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log.Printf("ai: try-on request avatar=%s clothing=%d pose=%s",
		req.AvatarImageURL, len(req.ClothingImageURLs), pose)

	c.JSON(http.StatusOK, TryOnResult{
		TryOnImageURL: result,
		Meta: map[string]interface{}{
			"clothingCount": len(req.ClothingImageURLs),
			"pose":          pose,
			"modelVersion":  stubModelVersion,
			"processedAt":   time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// persistResult writes data-URL results to the image store so responses and
// database rows carry short stable URLs. Regular URLs from a remote backend
// pass through unchanged.
func (m *Module) persistResult(ctx context.Context, result, filename string, pathSegments ...string) (string, error) {
	data, contentType, ok := DecodeDataURL(result)
	if !ok {
		return result, nil
	}
	return m.store.SaveBytes(ctx, data, contentType, filename, pathSegments...)
}

func readImage(file *multipart.FileHeader) (ImageInput, error) {
	src, err := file.Open()
	if err != nil {
		return ImageInput{}, err
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, filestore.MaxImageBytes+1))
	if err != nil {
		return ImageInput{}, err
	}
	if int64(len(data)) > filestore.MaxImageBytes {
		return ImageInput{}, filestore.ErrImageTooLarge
	}

	return ImageInput{
		Data:        data,
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
	}, nil
}

func (m *Module) respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, filestore.ErrImageTooLarge) || errors.Is(err, filestore.ErrUnsupportedContentType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store image"})
}
