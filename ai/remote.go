package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RemoteService calls a configured AI inference backend over HTTP. The wire
// contract matches the stub endpoints served by this process, so the backend
// can be swapped for a real inference server without touching callers.
type RemoteService struct {
	httpClient *http.Client
	baseURL    string
}

// NewRemoteService validates the base URL and builds the client.
func NewRemoteService(baseURL string, timeout time.Duration) (*RemoteService, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		return nil, fmt.Errorf("ai: invalid base URL %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteService{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    trimmed,
	}, nil
}

func (s *RemoteService) RemoveBackground(ctx context.Context, image ImageInput) (string, error) {
	if len(image.Data) == 0 {
		return "", ErrClothImageRequired
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writeFilePart(writer, "clothImage", image); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("ai: finish multipart body: %w", err)
	}

	var decoded BackgroundRemovalResult
	if err := s.post(ctx, "/api/ai/remove-background", writer.FormDataContentType(), body, &decoded); err != nil {
		return "", err
	}
	if strings.TrimSpace(decoded.ImageURL) == "" {
		return "", errors.New("ai: backend returned no image url")
	}
	return decoded.ImageURL, nil
}

func (s *RemoteService) GenerateAvatar(ctx context.Context, opts AvatarOptions) (string, error) {
	if opts.FaceImage == nil || len(opts.FaceImage.Data) == 0 {
		return "", ErrFaceImageRequired
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writeFilePart(writer, "faceImage", *opts.FaceImage); err != nil {
		return "", err
	}

	height := opts.Height
	if height <= 0 {
		height = 170
	}
	fields := map[string]string{
		"height":   strconv.FormatFloat(height, 'f', -1, 64),
		"bodyType": defaultIfEmpty(opts.BodyType, "normal"),
		"gender":   defaultIfEmpty(opts.Gender, "unisex"),
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return "", fmt.Errorf("ai: write form field %s: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("ai: finish multipart body: %w", err)
	}

	var decoded AvatarResult
	if err := s.post(ctx, "/api/ai/avatar", writer.FormDataContentType(), body, &decoded); err != nil {
		return "", err
	}
	if strings.TrimSpace(decoded.AvatarURL) == "" {
		return "", errors.New("ai: backend returned no avatar url")
	}
	return decoded.AvatarURL, nil
}

func (s *RemoteService) GenerateTryOn(ctx context.Context, avatarURL string, clothingURLs []string) (string, error) {
	if strings.TrimSpace(avatarURL) == "" {
		return "", ErrAvatarURLRequired
	}
	if len(clothingURLs) == 0 {
		return "", ErrClothingURLRequired
	}

	payload := TryOnRequest{AvatarImageURL: avatarURL, ClothingImageURLs: clothingURLs}
	body := &bytes.Buffer{}
	if err := json.NewEncoder(body).Encode(payload); err != nil {
		return "", fmt.Errorf("ai: encode request: %w", err)
	}

	var decoded TryOnResult
	if err := s.post(ctx, "/api/ai/try-on", "application/json", body, &decoded); err != nil {
		return "", err
	}
	if strings.TrimSpace(decoded.TryOnImageURL) == "" {
		return "", errors.New("ai: backend returned no try-on url")
	}
	return decoded.TryOnImageURL, nil
}

func (s *RemoteService) post(ctx context.Context, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("ai: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ai: execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("ai: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ai: decode response: %w", err)
	}
	return nil
}

func writeFilePart(writer *multipart.Writer, field string, image ImageInput) error {
	filename := image.Filename
	if filename == "" {
		filename = field
	}
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("ai: create form file %s: %w", field, err)
	}
	if _, err := part.Write(image.Data); err != nil {
		return fmt.Errorf("ai: write form file %s: %w", field, err)
	}
	return nil
}

func defaultIfEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
