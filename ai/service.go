package ai

import (
	"context"
	"log"
	"os"
	"strings"
	"time"
)

// Service is the uniform interface for the three AI-shaped operations. The
// concrete strategy (remote backend vs local mock) is chosen once at
// startup; callers never branch on configuration themselves.
type Service interface {
	// RemoveBackground returns a displayable URL for the image with its
	// background removed.
	RemoveBackground(ctx context.Context, image ImageInput) (string, error)
	// GenerateAvatar returns a full-body avatar URL for the given options.
	GenerateAvatar(ctx context.Context, opts AvatarOptions) (string, error)
	// GenerateTryOn composites the clothing onto the avatar and returns the
	// resulting image URL.
	GenerateTryOn(ctx context.Context, avatarURL string, clothingURLs []string) (string, error)
}

// Notifier delivers soft, user-facing notices. The notification center
// implements it.
type Notifier interface {
	Notify(userID uint64, kind, message string) string
}

// NewServiceFromEnv selects the strategy: when AI_BASE_URL is set the remote
// backend is used with the mock as fallback, otherwise pure mock mode.
func NewServiceFromEnv(notifier Notifier) Service {
	mock := NewMockService()

	baseURL := strings.TrimSpace(os.Getenv("AI_BASE_URL"))
	if baseURL == "" {
		log.Printf("ai: AI_BASE_URL not set, operating in mock mode")
		return mock
	}

	remote, err := NewRemoteService(baseURL, 30*time.Second)
	if err != nil {
		log.Printf("ai: invalid AI_BASE_URL, operating in mock mode: %v", err)
		return mock
	}

	return NewFallbackService(remote, mock, notifier)
}

type userIDKey struct{}

// WithUser attaches the requesting user to the context so the fallback path
// can address its "mock mode" notice.
func WithUser(ctx context.Context, userID uint64) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

func userFromContext(ctx context.Context) uint64 {
	if ctx == nil {
		return 0
	}
	if id, ok := ctx.Value(userIDKey{}).(uint64); ok {
		return id
	}
	return 0
}

// FallbackService tries the remote backend first and degrades to the mock on
// connectivity failure. Backend errors are never surfaced as hard failures:
// the caller always receives a usable URL or a validation error.
type FallbackService struct {
	remote   Service
	mock     Service
	notifier Notifier
}

// NewFallbackService wraps remote with mock. notifier may be nil.
func NewFallbackService(remote, mock Service, notifier Notifier) *FallbackService {
	return &FallbackService{remote: remote, mock: mock, notifier: notifier}
}

func (s *FallbackService) RemoveBackground(ctx context.Context, image ImageInput) (string, error) {
	if len(image.Data) == 0 {
		return "", ErrClothImageRequired
	}
	url, err := s.remote.RemoveBackground(ctx, image)
	if err != nil {
		s.reportFallback(ctx, "remove background", err)
		return s.mock.RemoveBackground(ctx, image)
	}
	return url, nil
}

func (s *FallbackService) GenerateAvatar(ctx context.Context, opts AvatarOptions) (string, error) {
	if opts.FaceImage == nil || len(opts.FaceImage.Data) == 0 {
		// The remote path requires a face image; without one the mock
		// placeholder is the intended result, not a failure.
		return s.mock.GenerateAvatar(ctx, opts)
	}
	url, err := s.remote.GenerateAvatar(ctx, opts)
	if err != nil {
		s.reportFallback(ctx, "generate avatar", err)
		return s.mock.GenerateAvatar(ctx, opts)
	}
	return url, nil
}

func (s *FallbackService) GenerateTryOn(ctx context.Context, avatarURL string, clothingURLs []string) (string, error) {
	if strings.TrimSpace(avatarURL) == "" {
		return "", ErrAvatarURLRequired
	}
	if len(clothingURLs) == 0 {
		return "", ErrClothingURLRequired
	}
	url, err := s.remote.GenerateTryOn(ctx, avatarURL, clothingURLs)
	if err != nil {
		s.reportFallback(ctx, "try-on", err)
		return s.mock.GenerateTryOn(ctx, avatarURL, clothingURLs)
	}
	return url, nil
}

func (s *FallbackService) reportFallback(ctx context.Context, operation string, err error) {
	log.Printf("ai: %s backend call failed, falling back to mock: %v", operation, err)
	if s.notifier == nil {
		return
	}
	if userID := userFromContext(ctx); userID != 0 {
		s.notifier.Notify(userID, "info", "AI backend unreachable, operating in mock mode")
	}
}
