package ai

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrFaceImageRequired   = errors.New("ai: face image is required")
	ErrClothImageRequired  = errors.New("ai: cloth image is required")
	ErrAvatarURLRequired   = errors.New("ai: avatar image url is required")
	ErrClothingURLRequired = errors.New("ai: clothing image urls cannot be empty")
)

// ImageInput carries raw uploaded image bytes through the facade.
type ImageInput struct {
	Data        []byte
	Filename    string
	ContentType string
}

// AvatarOptions describes an avatar generation request. FaceImage drives the
// real backend path; FullBodyImage, Height, BodyType and Gender shape the
// mock placeholder.
type AvatarOptions struct {
	FaceImage     *ImageInput
	FullBodyImage *ImageInput
	Height        float64
	BodyType      string
	Gender        string
}

// AvatarResult is the avatar endpoint response body.
type AvatarResult struct {
	AvatarURL string                 `json:"avatarUrl"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// BackgroundRemovalResult is the remove-background endpoint response body.
type BackgroundRemovalResult struct {
	ImageURL string                 `json:"imageUrl"`
	Meta     map[string]interface{} `json:"meta,omitempty"`
}

// TryOnRequest is the JSON body of the try-on endpoint.
type TryOnRequest struct {
	AvatarImageURL    string   `json:"avatarImageUrl"`
	ClothingImageURLs []string `json:"clothingImageUrls"`
	Pose              string   `json:"pose,omitempty"`
}

// TryOnResult is the try-on endpoint response body.
type TryOnResult struct {
	TryOnImageURL string                 `json:"tryOnImageUrl"`
	Meta          map[string]interface{} `json:"meta,omitempty"`
}

// SVGPlaceholder renders a labeled rectangle as a data URL, mirroring the
// placeholder images used across the app when no real asset exists.
func SVGPlaceholder(w, h int, text string) string {
	fontSize := w
	if h < w {
		fontSize = h
	}
	fontSize /= 10

	svg := fmt.Sprintf(
		"<svg xmlns='http://www.w3.org/2000/svg' width='%d' height='%d' viewBox='0 0 %d %d'>"+
			"<rect width='100%%' height='100%%' fill='#4F46E5'/>"+
			"<text x='50%%' y='50%%' dominant-baseline='middle' text-anchor='middle' "+
			"font-family='Arial, Helvetica, sans-serif' font-size='%d' fill='#FFFFFF'>%s</text>"+
			"</svg>",
		w, h, w, h, fontSize, text,
	)
	return "data:image/svg+xml;utf8," + url.PathEscape(svg)
}

// DecodeDataURL splits a data URL into raw bytes and a content type.
// Anything that is not a data URL returns ok=false so callers can pass
// regular URLs through untouched.
func DecodeDataURL(raw string) (data []byte, contentType string, ok bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "data:") {
		return nil, "", false
	}
	comma := strings.Index(trimmed, ",")
	if comma < 0 {
		return nil, "", false
	}

	meta := trimmed[len("data:"):comma]
	payload := trimmed[comma+1:]

	encoding := ""
	if i := strings.Index(meta, ";"); i >= 0 {
		encoding = meta[i+1:]
		meta = meta[:i]
	}
	if meta == "" {
		meta = "text/plain"
	}

	if encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", false
		}
		return decoded, meta, true
	}

	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return nil, "", false
	}
	return []byte(unescaped), meta, true
}

func normalizedOrDefault(raw, fallback string, valid func(string) (string, bool)) string {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	if value, ok := valid(raw); ok {
		return value
	}
	return fallback
}
