package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	filestore "lookmate_back/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	return newTestRouterWithService(t, &MockService{})
}

func newTestRouterWithService(t *testing.T, svc Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	local, err := filestore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	store := filestore.NewImageStoreWithLocal(local)

	router := gin.New()
	_, err = RegisterRoutes(router, store, svc)
	require.NoError(t, err)
	return router
}

// recordingService counts facade calls so tests can prove the endpoints run
// through the configured strategy.
type recordingService struct {
	MockService
	removeCalls int
	avatarCalls int
	tryOnCalls  int
}

func (s *recordingService) RemoveBackground(ctx context.Context, image ImageInput) (string, error) {
	s.removeCalls++
	return s.MockService.RemoveBackground(ctx, image)
}

func (s *recordingService) GenerateAvatar(ctx context.Context, opts AvatarOptions) (string, error) {
	s.avatarCalls++
	return s.MockService.GenerateAvatar(ctx, opts)
}

func (s *recordingService) GenerateTryOn(ctx context.Context, avatarURL string, clothingURLs []string) (string, error) {
	s.tryOnCalls++
	return s.MockService.GenerateTryOn(ctx, avatarURL, clothingURLs)
}

func multipartImage(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return &body, writer.FormDataContentType()
}

func TestRemoveBackgroundStubReturnsStoredImage(t *testing.T) {
	router := newTestRouter(t)

	body, contentType := multipartImage(t, "clothImage", "shirt.png", "image/png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/ai/remove-background", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var parsed BackgroundRemovalResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	require.Contains(t, parsed.ImageURL, "/uploads/ai/backgrounds/")
	require.Equal(t, "stub-v1.0", parsed.Meta["modelVersion"])
}

func TestRemoveBackgroundRejectsNonImage(t *testing.T) {
	router := newTestRouter(t)

	body, contentType := multipartImage(t, "clothImage", "notes.txt", "text/plain", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/api/ai/remove-background", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveBackgroundRejectsOversizeImage(t *testing.T) {
	router := newTestRouter(t)

	oversized := bytes.Repeat([]byte("x"), int(filestore.MaxImageBytes)+1)
	body, contentType := multipartImage(t, "clothImage", "huge.png", "image/png", oversized)
	req := httptest.NewRequest(http.MethodPost, "/api/ai/remove-background", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveBackgroundRejectsMissingFile(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/ai/remove-background", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvatarGenerationStoresResult(t *testing.T) {
	router := newTestRouter(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="faceImage"; filename="face.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("height", "172.5"))
	require.NoError(t, writer.WriteField("bodyType", "slim"))
	require.NoError(t, writer.WriteField("gender", "female"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/ai/avatar", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var parsed AvatarResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	require.Contains(t, parsed.AvatarURL, "/uploads/ai/avatars/")
	require.Equal(t, "slim", parsed.Meta["bodyType"])
	require.Equal(t, "female", parsed.Meta["gender"])
}

func TestTryOnStubValidation(t *testing.T) {
	router := newTestRouter(t)

	payload := `{"avatarImageUrl":"","clothingImageUrls":["a"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/ai/try-on", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	payload = `{"avatarImageUrl":"https://cdn.example/avatar.png","clothingImageUrls":[]}`
	req = httptest.NewRequest(http.MethodPost, "/api/ai/try-on", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	payload = `{"avatarImageUrl":"https://cdn.example/avatar.png","clothingImageUrls":["https://cdn.example/top.png"]}`
	req = httptest.NewRequest(http.MethodPost, "/api/ai/try-on", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var parsed TryOnResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	require.Equal(t, "https://cdn.example/avatar.png", parsed.TryOnImageURL)
}

func TestEndpointsUseConfiguredService(t *testing.T) {
	svc := &recordingService{}
	router := newTestRouterWithService(t, svc)

	body, contentType := multipartImage(t, "clothImage", "shirt.png", "image/png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/ai/remove-background", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body, contentType = multipartImage(t, "faceImage", "face.jpg", "image/jpeg", []byte("jpeg-bytes"))
	req = httptest.NewRequest(http.MethodPost, "/api/ai/avatar", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := `{"avatarImageUrl":"https://cdn.example/avatar.png","clothingImageUrls":["https://cdn.example/top.png"]}`
	req = httptest.NewRequest(http.MethodPost, "/api/ai/try-on", bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, 1, svc.removeCalls)
	require.Equal(t, 1, svc.avatarCalls)
	require.Equal(t, 1, svc.tryOnCalls)
}
