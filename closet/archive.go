package closet

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"lookmate_back/ai"
	"lookmate_back/authorization"
	filestore "lookmate_back/storage"
	"github.com/gin-gonic/gin"
	rardecode "github.com/nwaples/rardecode/v2"
)

const (
	maxArchiveBytes  int64 = 50 * 1024 * 1024 // 50 MiB upper guard
	maxArchiveImages       = 100
	archiveFormatZip       = "zip"
	archiveFormatRar       = "rar"
)

var (
	ErrArchiveTooLarge          = fmt.Errorf("closet: archive size exceeds %d bytes", maxArchiveBytes)
	ErrUnsupportedArchiveFormat = errors.New("closet: unsupported archive format, only .zip and .rar are accepted")
	ErrUnsafeArchiveEntry       = errors.New("closet: archive entry escapes the extraction root")
)

type archiveImage struct {
	Name        string
	ContentType string
	Data        []byte
}

// handleImportArchive bulk-imports garments from a zip or rar archive. Every
// image entry becomes one clothing item under the requested category; entries
// that are not images or exceed the per-image limit are skipped, not fatal.
func (m *Module) handleImportArchive(c *gin.Context) {
	userID := authorization.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	file, err := c.FormFile("archive")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "archive file is required"})
		return
	}

	category := "top"
	if raw := strings.TrimSpace(c.PostForm("category")); raw != "" {
		normalized, ok := NormalizeCategory(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidCategory.Error()})
			return
		}
		category = normalized
	}

	images, skipped, err := extractArchiveImages(file)
	if err != nil {
		switch {
		case errors.Is(err, ErrArchiveTooLarge),
			errors.Is(err, ErrUnsupportedArchiveFormat),
			errors.Is(err, ErrUnsafeArchiveEntry):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read archive"})
		}
		return
	}
	if len(images) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "archive contains no usable images"})
		return
	}

	ctx := ai.WithUser(c.Request.Context(), userID)

	created := make([]ClothingItem, 0, len(images))
	for _, image := range images {
		stored, err := m.store.SaveBytes(ctx, image.Data, image.ContentType, image.Name, "closet", "imports")
		if err != nil {
			skipped++
			continue
		}

		memo := strings.TrimSuffix(path.Base(image.Name), path.Ext(image.Name))
		item := ClothingItem{
			UserID:           userID,
			Category:         category,
			ImageURL:         stored,
			OriginalImageURL: stored,
			Color:            "Unknown",
			Memo:             optionalField(memo),
			Tags:             tagsJSON([]string{"imported"}),
		}
		if err := m.db.WithContext(ctx).Create(&item).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save imported items"})
			return
		}
		created = append(created, item)
	}

	c.JSON(http.StatusCreated, gin.H{
		"items":    created,
		"imported": len(created),
		"skipped":  skipped,
	})
}

func extractArchiveImages(fileHeader *multipart.FileHeader) ([]archiveImage, int, error) {
	if fileHeader.Size > 0 && fileHeader.Size > maxArchiveBytes {
		return nil, 0, ErrArchiveTooLarge
	}

	src, err := fileHeader.Open()
	if err != nil {
		return nil, 0, fmt.Errorf("closet: open archive: %w", err)
	}
	defer src.Close()

	tmpFile, err := os.CreateTemp("", "closet-archive-*")
	if err != nil {
		return nil, 0, fmt.Errorf("closet: create temp file: %w", err)
	}
	defer func() {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
	}()

	written, err := io.Copy(tmpFile, io.LimitReader(src, maxArchiveBytes+1))
	if err != nil {
		return nil, 0, fmt.Errorf("closet: copy archive: %w", err)
	}
	if written > maxArchiveBytes {
		return nil, 0, ErrArchiveTooLarge
	}

	if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("closet: rewind temp file: %w", err)
	}
	format, err := detectArchiveFormat(tmpFile, fileHeader.Filename)
	if err != nil {
		return nil, 0, err
	}

	if _, err := tmpFile.Seek(0, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("closet: rewind temp file: %w", err)
	}

	switch format {
	case archiveFormatZip:
		return extractZipImages(tmpFile, written)
	case archiveFormatRar:
		return extractRarImages(tmpFile.Name())
	default:
		return nil, 0, ErrUnsupportedArchiveFormat
	}
}

func extractZipImages(tmpFile *os.File, size int64) ([]archiveImage, int, error) {
	reader, err := zip.NewReader(tmpFile, size)
	if err != nil {
		return nil, 0, fmt.Errorf("closet: parse archive: %w", err)
	}

	var images []archiveImage
	skipped := 0
	for _, file := range reader.File {
		if len(images) >= maxArchiveImages {
			skipped++
			continue
		}
		sanitized, err := sanitizeArchiveEntry(file.Name)
		if err != nil {
			return nil, 0, err
		}
		if sanitized == "" || file.FileInfo().IsDir() {
			continue
		}
		if !isImagePath(strings.ToLower(sanitized)) {
			skipped++
			continue
		}
		if file.UncompressedSize64 > uint64(filestore.MaxImageBytes) {
			skipped++
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, 0, fmt.Errorf("closet: open entry %s: %w", sanitized, err)
		}
		data, err := io.ReadAll(io.LimitReader(rc, filestore.MaxImageBytes+1))
		rc.Close()
		if err != nil {
			return nil, 0, fmt.Errorf("closet: read entry %s: %w", sanitized, err)
		}
		if int64(len(data)) > filestore.MaxImageBytes {
			skipped++
			continue
		}

		images = append(images, archiveImage{
			Name:        sanitized,
			ContentType: imageContentType(sanitized),
			Data:        data,
		})
	}

	return images, skipped, nil
}

func extractRarImages(tmpPath string) ([]archiveImage, int, error) {
	f, err := os.Open(tmpPath)
	if err != nil {
		return nil, 0, fmt.Errorf("closet: reopen temp archive: %w", err)
	}
	defer f.Close()

	rr, err := rardecode.NewReader(f)
	if err != nil {
		return nil, 0, fmt.Errorf("closet: parse rar archive: %w", err)
	}

	var images []archiveImage
	skipped := 0
	for {
		header, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("closet: read rar entry: %w", err)
		}

		sanitized, err := sanitizeArchiveEntry(header.Name)
		if err != nil {
			return nil, 0, err
		}
		if sanitized == "" || header.IsDir || !isImagePath(strings.ToLower(sanitized)) || len(images) >= maxArchiveImages {
			if !header.IsDir {
				if sanitized != "" {
					skipped++
				}
				if _, err := io.Copy(io.Discard, rr); err != nil {
					return nil, 0, fmt.Errorf("closet: discard rar entry: %w", err)
				}
			}
			continue
		}

		data, err := io.ReadAll(io.LimitReader(rr, filestore.MaxImageBytes+1))
		if err != nil {
			return nil, 0, fmt.Errorf("closet: read entry %s: %w", sanitized, err)
		}
		if int64(len(data)) > filestore.MaxImageBytes {
			skipped++
			continue
		}

		images = append(images, archiveImage{
			Name:        sanitized,
			ContentType: imageContentType(sanitized),
			Data:        data,
		})
	}

	return images, skipped, nil
}

func detectArchiveFormat(file *os.File, originalName string) (string, error) {
	ext := strings.ToLower(strings.TrimSpace(filepath.Ext(originalName)))
	switch ext {
	case ".zip":
		return archiveFormatZip, nil
	case ".rar":
		return archiveFormatRar, nil
	}

	var header [8]byte
	n, err := file.ReadAt(header[:], 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("closet: read archive header: %w", err)
	}
	headerSlice := header[:n]

	if len(headerSlice) >= 2 && headerSlice[0] == 0x50 && headerSlice[1] == 0x4b {
		return archiveFormatZip, nil
	}
	if len(headerSlice) >= 6 && bytes.Equal(headerSlice[:6], []byte{0x52, 0x61, 0x72, 0x21, 0x1a, 0x07}) {
		return archiveFormatRar, nil
	}

	if ext != "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedArchiveFormat, ext)
	}
	return "", ErrUnsupportedArchiveFormat
}

func sanitizeArchiveEntry(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", nil
	}

	normalized := strings.ReplaceAll(trimmed, "\\", "/")
	normalized = path.Clean(normalized)
	normalized = strings.TrimPrefix(normalized, "./")
	if normalized == "." || normalized == "" {
		return "", nil
	}
	if strings.HasPrefix(normalized, "../") {
		return "", fmt.Errorf("%w: %q", ErrUnsafeArchiveEntry, name)
	}
	if strings.HasPrefix(strings.ToLower(normalized), "__macosx/") {
		return "", nil
	}
	return normalized, nil
}

func isImagePath(path string) bool {
	switch {
	case strings.HasSuffix(path, ".png"):
		return true
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
		return true
	case strings.HasSuffix(path, ".webp"):
		return true
	case strings.HasSuffix(path, ".gif"):
		return true
	default:
		return false
	}
}

func imageContentType(name string) string {
	if contentType := mime.TypeByExtension(path.Ext(name)); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}
