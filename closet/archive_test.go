package closet

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for name, data := range entries {
		entry, err := writer.Create(name)
		require.NoError(t, err)
		_, err = entry.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func postArchive(t *testing.T, router http.Handler, archive []byte, category string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="archive"; filename="wardrobe.zip"`)
	header.Set("Content-Type", "application/zip")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(archive)
	require.NoError(t, err)
	if category != "" {
		require.NoError(t, writer.WriteField("category", category))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/closet/import", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestImportArchiveCreatesItemsFromImages(t *testing.T) {
	m := newTestModule(t)
	router := newTestRouter(m, 1)

	archive := buildZip(t, map[string][]byte{
		"tops/shirt.png":  []byte("png-bytes"),
		"tops/jacket.jpg": []byte("jpg-bytes"),
		"readme.txt":      []byte("not an image"),
	})

	rec := postArchive(t, router, archive, "top")
	require.Equal(t, http.StatusCreated, rec.Code)

	var parsed struct {
		Items    []ClothingItem `json:"items"`
		Imported int            `json:"imported"`
		Skipped  int            `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	require.Equal(t, 2, parsed.Imported)
	require.Equal(t, 1, parsed.Skipped)

	for _, item := range parsed.Items {
		require.Equal(t, "top", item.Category)
		require.Contains(t, item.ImageURL, "/uploads/closet/imports/")
	}

	var count int64
	require.NoError(t, m.db.Model(&ClothingItem{}).Where("user_id = ?", 1).Count(&count).Error)
	require.EqualValues(t, 2, count)
}

func TestImportArchiveRejectsEmptyArchive(t *testing.T) {
	m := newTestModule(t)
	router := newTestRouter(m, 1)

	archive := buildZip(t, map[string][]byte{
		"notes.md": []byte("no images here"),
	})

	rec := postArchive(t, router, archive, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var count int64
	require.NoError(t, m.db.Model(&ClothingItem{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestImportArchiveRejectsTraversalEntries(t *testing.T) {
	m := newTestModule(t)
	router := newTestRouter(m, 1)

	archive := buildZip(t, map[string][]byte{
		"../escape.png": []byte("png-bytes"),
	})

	rec := postArchive(t, router, archive, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportArchiveRejectsUnknownFormat(t *testing.T) {
	m := newTestModule(t)
	router := newTestRouter(m, 1)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="archive"; filename="wardrobe.tar"`)
	header.Set("Content-Type", "application/x-tar")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("definitely not an archive"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/closet/import", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "unsupported archive format")
}

func TestSanitizeArchiveEntrySkipsJunk(t *testing.T) {
	cleaned, err := sanitizeArchiveEntry("__MACOSX/._shirt.png")
	require.NoError(t, err)
	require.Empty(t, cleaned)

	cleaned, err = sanitizeArchiveEntry("./tops\\shirt.png")
	require.NoError(t, err)
	require.Equal(t, "tops/shirt.png", cleaned)

	_, err = sanitizeArchiveEntry("../../etc/passwd")
	require.ErrorIs(t, err, ErrUnsafeArchiveEntry)
}
