package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"lookmate_back/authorization"
)

// MockService simulates the three AI operations locally: fixed delays and
// placeholder results, no inference anywhere.
type MockService struct {
	RemoveBackgroundDelay time.Duration
	GenerateAvatarDelay   time.Duration
	TryOnDelay            time.Duration
}

// NewMockService uses the delays of the original stubs: 1.5s background
// removal, 2s avatar generation, 1s try-on.
func NewMockService() *MockService {
	return &MockService{
		RemoveBackgroundDelay: 1500 * time.Millisecond,
		GenerateAvatarDelay:   2 * time.Second,
		TryOnDelay:            time.Second,
	}
}

// RemoveBackground waits the simulated delay and returns the same bytes as a
// data URL. The image is visually unchanged; this is a stub, not processing.
func (s *MockService) RemoveBackground(ctx context.Context, image ImageInput) (string, error) {
	if len(image.Data) == 0 {
		return "", ErrClothImageRequired
	}
	if err := sleepCtx(ctx, s.RemoveBackgroundDelay); err != nil {
		return "", err
	}
	return dataURL(image), nil
}

// GenerateAvatar echoes a provided full-body image, or synthesizes a labeled
// placeholder encoding gender and body type.
func (s *MockService) GenerateAvatar(ctx context.Context, opts AvatarOptions) (string, error) {
	if err := sleepCtx(ctx, s.GenerateAvatarDelay); err != nil {
		return "", err
	}

	if opts.FullBodyImage != nil && len(opts.FullBodyImage.Data) > 0 {
		return dataURL(*opts.FullBodyImage), nil
	}

	gender := normalizedOrDefault(opts.Gender, "unisex", authorization.NormalizeGender)
	genderLabel := "man"
	if gender == "female" {
		genderLabel = "woman"
	}
	bodyType := normalizedOrDefault(opts.BodyType, "normal", authorization.NormalizeBodyType)

	return SVGPlaceholder(400, 800, fmt.Sprintf("%s %s Avatar", genderLabel, bodyType)), nil
}

// GenerateTryOn returns the avatar unchanged; callers keep using manual
// per-item layer positioning.
func (s *MockService) GenerateTryOn(ctx context.Context, avatarURL string, clothingURLs []string) (string, error) {
	if strings.TrimSpace(avatarURL) == "" {
		return "", ErrAvatarURLRequired
	}
	if len(clothingURLs) == 0 {
		return "", ErrClothingURLRequired
	}
	if err := sleepCtx(ctx, s.TryOnDelay); err != nil {
		return "", err
	}
	return avatarURL, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func dataURL(image ImageInput) string {
	contentType := strings.TrimSpace(image.ContentType)
	if contentType == "" {
		contentType = http.DetectContentType(image.Data)
	}
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(image.Data))
}
