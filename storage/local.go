package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes images into a server-local uploads directory. Stored
// URLs are /uploads/<relative path> and are served statically by the router.
type LocalStore struct {
	baseDir string
}

// NewLocalStoreFromEnv resolves UPLOADS_DIR (default ./data/uploads) and
// ensures the directory exists.
func NewLocalStoreFromEnv() (*LocalStore, error) {
	dir := strings.TrimSpace(os.Getenv("UPLOADS_DIR"))
	if dir == "" {
		dir = "./data/uploads"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve uploads dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure uploads dir: %w", err)
	}
	return &LocalStore{baseDir: abs}, nil
}

// NewLocalStore uses an explicit directory, mainly for tests.
func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve uploads dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure uploads dir: %w", err)
	}
	return &LocalStore{baseDir: abs}, nil
}

// BaseDir reports the absolute uploads directory.
func (s *LocalStore) BaseDir() string {
	if s == nil {
		return ""
	}
	return s.baseDir
}

// Write persists the data under the given object name and returns the
// stored /uploads URL.
func (s *LocalStore) Write(objectName string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: local store not configured")
	}

	relative := filepath.FromSlash(strings.TrimPrefix(objectName, "/"))
	target := filepath.Join(s.baseDir, relative)
	if !strings.HasPrefix(target, s.baseDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: object name %q escapes uploads dir", objectName)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("storage: prepare dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}

	return "/uploads/" + filepath.ToSlash(relative), nil
}

// Remove deletes the local file referenced by a stored /uploads URL. URLs
// that do not point into the uploads directory are ignored.
func (s *LocalStore) Remove(storedURL string) error {
	if s == nil {
		return nil
	}

	trimmed := strings.TrimSpace(storedURL)
	if i := strings.Index(trimmed, "/uploads/"); i >= 0 {
		trimmed = trimmed[i+len("/uploads/"):]
	} else {
		return nil
	}
	if trimmed == "" {
		return nil
	}

	target := filepath.Join(s.baseDir, filepath.FromSlash(trimmed))
	if !strings.HasPrefix(target, s.baseDir+string(os.PathSeparator)) {
		return fmt.Errorf("storage: url %q escapes uploads dir", storedURL)
	}
	err := os.Remove(target)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
