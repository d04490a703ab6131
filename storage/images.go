package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MaxImageBytes bounds every accepted image upload.
const MaxImageBytes int64 = 5 * 1024 * 1024

var (
	ErrImageTooLarge          = fmt.Errorf("storage: image exceeds %d bytes", MaxImageBytes)
	ErrUnsupportedContentType = errors.New("storage: unsupported image content type")
)

// ImageStore persists uploaded images. When MINIO_* environment variables
// are present objects go to MinIO/S3 and Save returns a public object URL;
// otherwise files land in a local uploads directory and Save returns a
// server-relative /uploads path that callers resolve against the request
// host.
type ImageStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
	local     *LocalStore
}

// NewImageStoreFromEnv initialises the store. The local directory fallback
// always works; MinIO is attached only when fully configured.
func NewImageStoreFromEnv() (*ImageStore, error) {
	local, err := NewLocalStoreFromEnv()
	if err != nil {
		return nil, err
	}

	store := &ImageStore{local: local}

	endpoint := strings.TrimSpace(os.Getenv("MINIO_ENDPOINT"))
	accessKey := strings.TrimSpace(os.Getenv("MINIO_ACCESS_KEY"))
	secretKey := strings.TrimSpace(os.Getenv("MINIO_SECRET_KEY"))
	bucket := strings.TrimSpace(os.Getenv("MINIO_BUCKET"))
	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return store, nil
	}

	useSSL := strings.EqualFold(strings.TrimSpace(os.Getenv("MINIO_USE_SSL")), "true")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("storage: create bucket: %w", err)
		}
	}

	publicURL := strings.TrimSpace(os.Getenv("MINIO_PUBLIC_URL"))
	if publicURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, endpoint)
	}

	store.client = client
	store.bucket = bucket
	store.publicURL = strings.TrimSuffix(publicURL, "/")
	return store, nil
}

// NewImageStoreWithLocal builds a disk-only store over an explicit local
// directory, mainly for tests.
func NewImageStoreWithLocal(local *LocalStore) *ImageStore {
	return &ImageStore{local: local}
}

// LocalDir reports the local uploads directory, empty when only MinIO is in
// use.
func (s *ImageStore) LocalDir() string {
	if s == nil || s.local == nil {
		return ""
	}
	return s.local.BaseDir()
}

// Save stores a multipart image upload beneath the given path segments and
// returns the stored URL. Content type must be image/* and the size is
// capped at MaxImageBytes.
func (s *ImageStore) Save(ctx context.Context, fileHeader *multipart.FileHeader, pathSegments ...string) (string, error) {
	if s == nil {
		return "", errors.New("storage: image store not configured")
	}
	if fileHeader == nil {
		return "", errors.New("storage: image file not provided")
	}

	if fileHeader.Size > 0 && fileHeader.Size > MaxImageBytes {
		return "", ErrImageTooLarge
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("storage: open upload: %w", err)
	}
	defer src.Close()

	var buffer bytes.Buffer
	written, err := io.Copy(&buffer, io.LimitReader(src, MaxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("storage: read upload: %w", err)
	}
	if written > MaxImageBytes {
		return "", ErrImageTooLarge
	}

	data := buffer.Bytes()
	contentType := strings.TrimSpace(fileHeader.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !IsImageContentType(contentType) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}

	return s.SaveBytes(ctx, data, contentType, fileHeader.Filename, pathSegments...)
}

// SaveBytes stores raw image bytes that were produced outside a multipart
// request, e.g. entries extracted from an imported archive.
func (s *ImageStore) SaveBytes(ctx context.Context, data []byte, contentType, filename string, pathSegments ...string) (string, error) {
	if s == nil {
		return "", errors.New("storage: image store not configured")
	}
	if len(data) == 0 {
		return "", errors.New("storage: image data is empty")
	}
	if int64(len(data)) > MaxImageBytes {
		return "", ErrImageTooLarge
	}

	objectName := buildObjectName(filename, contentType, pathSegments...)

	if s.client == nil {
		return s.local.Write(objectName, data)
	}

	uploadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	_, err := s.client.PutObject(uploadCtx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=604800",
	})
	if err != nil {
		return "", fmt.Errorf("storage: upload image: %w", err)
	}

	return s.buildPublicURL(objectName), nil
}

// Remove deletes the object or local file pointed to by the stored URL.
func (s *ImageStore) Remove(ctx context.Context, imageURL string) error {
	if s == nil {
		return nil
	}

	if s.client == nil {
		return s.local.Remove(imageURL)
	}

	objectName, ok := s.objectNameFromURL(imageURL)
	if !ok {
		return nil
	}

	removeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.client.RemoveObject(removeCtx, s.bucket, objectName, minio.RemoveObjectOptions{})
}

// PresignedURL returns a temporary URL for a MinIO-backed image. Local and
// external URLs pass through unchanged.
func (s *ImageStore) PresignedURL(ctx context.Context, raw string, expiry time.Duration) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if s == nil || s.client == nil || trimmed == "" {
		return trimmed, nil
	}

	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	objectName, ok := s.objectNameFromURL(trimmed)
	if !ok {
		return trimmed, nil
	}

	presignCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	signed, err := s.client.PresignedGetObject(presignCtx, s.bucket, objectName, expiry, nil)
	if err != nil {
		return "", err
	}

	return signed.String(), nil
}

// AbsoluteURL resolves a stored URL for a client. Server-relative /uploads
// paths are prefixed with the request base URL; everything else is returned
// as stored.
func (s *ImageStore) AbsoluteURL(baseURL, stored string) string {
	trimmed := strings.TrimSpace(stored)
	if trimmed == "" || !strings.HasPrefix(trimmed, "/") {
		return trimmed
	}
	return strings.TrimSuffix(baseURL, "/") + trimmed
}

// RequestBaseURL derives scheme://host from an incoming request, honoring
// X-Forwarded-Proto when a proxy terminates TLS.
func RequestBaseURL(r *http.Request) string {
	if r == nil {
		return ""
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); forwarded != "" {
		scheme = forwarded
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

func (s *ImageStore) buildPublicURL(objectName string) string {
	base := strings.TrimSuffix(s.publicURL, "/")
	object := strings.TrimPrefix(objectName, "/")
	return fmt.Sprintf("%s/%s/%s", base, s.bucket, object)
}

func (s *ImageStore) objectNameFromURL(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	base := strings.TrimSuffix(s.publicURL, "/")
	if base != "" && strings.HasPrefix(trimmed, base) {
		candidate := strings.TrimPrefix(trimmed, base)
		candidate = strings.TrimPrefix(candidate, "/")
		candidate = strings.TrimPrefix(candidate, s.bucket+"/")
		if candidate != "" {
			return candidate, true
		}
	}

	target, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}
	baseURL, err := url.Parse(base)
	if err == nil && baseURL.Host != "" && baseURL.Host == target.Host {
		candidate := strings.TrimPrefix(target.Path, "/")
		candidate = strings.TrimPrefix(candidate, s.bucket+"/")
		if candidate != "" {
			return candidate, true
		}
	}

	if !strings.Contains(trimmed, "://") {
		candidate := strings.TrimPrefix(trimmed, "/")
		candidate = strings.TrimPrefix(candidate, s.bucket+"/")
		if candidate != "" {
			return candidate, true
		}
	}

	return "", false
}

func buildObjectName(filename, contentType string, pathSegments ...string) string {
	segments := make([]string, 0, len(pathSegments)+1)
	for _, segment := range pathSegments {
		trimmed := strings.Trim(segment, "/")
		if trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	if len(segments) == 0 {
		segments = append(segments, "images")
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	name := fmt.Sprintf("%s-%s%s", stamp, uuid.NewString()[:8], imageExtension(filename, contentType))
	return path.Join(append(segments, name)...)
}

// IsImageContentType reports whether the mime type is an accepted image
// format.
func IsImageContentType(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	return strings.HasPrefix(mediaType, "image/")
}

func imageExtension(filename, contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/png", "image/x-png":
		return ".png"
	case "image/jpeg", "image/pjpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/svg+xml":
		return ".svg"
	}
	ext := strings.ToLower(strings.TrimSpace(filepath.Ext(filename)))
	if ext == "" {
		return ".bin"
	}
	return ext
}
