package products

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"
)

const (
	defaultLimit = 20
	maxLimit     = 50
)

var (
	ErrImageRequired = errors.New("products: an image is required for reverse search")
	ErrEmptyQuery    = errors.New("products: a category or color is required")
)

// ImageQuery is a reverse-image product search request.
type ImageQuery struct {
	Data        []byte
	Filename    string
	ContentType string
	Sort        string
	Limit       int
}

// ItemQuery searches products matching an existing closet item's attributes.
type ItemQuery struct {
	Category string
	Color    string
	Brand    string
	Sort     string
	Limit    int
}

// Searcher finds purchasable products for a garment image or description.
type Searcher interface {
	SearchByImage(ctx context.Context, query ImageQuery) ([]Product, error)
	SearchByItem(ctx context.Context, query ItemQuery) ([]Product, error)
}

// NewSearcherFromEnv selects the search backend once at startup: the remote
// product API when PRODUCT_API_BASE_URL is set, the deterministic mock
// catalog otherwise.
func NewSearcherFromEnv() Searcher {
	baseURL := strings.TrimSpace(os.Getenv("PRODUCT_API_BASE_URL"))
	if baseURL == "" {
		log.Printf("products: PRODUCT_API_BASE_URL not set, using mock catalog")
		return NewMockSearcher()
	}

	remote, err := NewRemoteSearcher(baseURL, 15*time.Second)
	if err != nil {
		log.Printf("products: invalid PRODUCT_API_BASE_URL, using mock catalog: %v", err)
		return NewMockSearcher()
	}
	log.Printf("products: using remote product API at %s", baseURL)
	return remote
}

// MockSearcher serves a fixed catalog with deterministic similarity scores,
// so identical queries always return identical results.
type MockSearcher struct {
	catalog []Product
}

func NewMockSearcher() *MockSearcher {
	return &MockSearcher{catalog: mockCatalog()}
}

func (s *MockSearcher) SearchByImage(ctx context.Context, query ImageQuery) ([]Product, error) {
	if len(query.Data) == 0 {
		return nil, ErrImageRequired
	}
	key := fmt.Sprintf("image:%d:%s", len(query.Data), query.Filename)
	return s.search(ctx, key, query.Sort, query.Limit)
}

func (s *MockSearcher) SearchByItem(ctx context.Context, query ItemQuery) ([]Product, error) {
	category := strings.ToLower(strings.TrimSpace(query.Category))
	color := strings.ToLower(strings.TrimSpace(query.Color))
	if category == "" && color == "" {
		return nil, ErrEmptyQuery
	}
	key := fmt.Sprintf("item:%s:%s:%s", category, color, strings.ToLower(strings.TrimSpace(query.Brand)))
	return s.search(ctx, key, query.Sort, query.Limit)
}

func (s *MockSearcher) search(ctx context.Context, key, sortMode string, limit int) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]Product, len(s.catalog))
	copy(results, s.catalog)
	for i := range results {
		results[i].Similarity = similarityFor(key, results[i].ID)
	}

	sortProducts(results, sortMode)
	return clampLimit(results, limit), nil
}

// similarityFor hashes the query key with the product ID into a stable score
// in [0.50, 0.99].
func similarityFor(key, productID string) float64 {
	h := fnv.New32a()
	h.Write([]byte(key))
	h.Write([]byte(":"))
	h.Write([]byte(productID))
	return 0.50 + float64(h.Sum32()%50)/100.0
}

func sortProducts(results []Product, mode string) {
	switch NormalizeSortMode(mode) {
	case SortPriceAsc:
		sort.SliceStable(results, func(i, j int) bool { return results[i].Price < results[j].Price })
	case SortPriceDesc:
		sort.SliceStable(results, func(i, j int) bool { return results[i].Price > results[j].Price })
	case SortSales:
		sort.SliceStable(results, func(i, j int) bool { return results[i].SalesRank < results[j].SalesRank })
	default:
		sort.SliceStable(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	}
}

func clampLimit(results []Product, limit int) []Product {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if len(results) > limit {
		return results[:limit]
	}
	return results
}

// RemoteSearcher proxies searches to an external product matching API.
type RemoteSearcher struct {
	httpClient *http.Client
	baseURL    string
}

func NewRemoteSearcher(baseURL string, timeout time.Duration) (*RemoteSearcher, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("products: base URL is required")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		return nil, fmt.Errorf("products: base URL must start with http:// or https://, got %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RemoteSearcher{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    trimmed,
	}, nil
}

func (s *RemoteSearcher) SearchByImage(ctx context.Context, query ImageQuery) ([]Product, error) {
	if len(query.Data) == 0 {
		return nil, ErrImageRequired
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	filename := strings.TrimSpace(query.Filename)
	if filename == "" {
		filename = "query.jpg"
	}
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("products: build image part: %w", err)
	}
	if _, err := part.Write(query.Data); err != nil {
		return nil, fmt.Errorf("products: write image part: %w", err)
	}
	_ = writer.WriteField("sort", NormalizeSortMode(query.Sort))
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("products: finalize request body: %w", err)
	}

	results, err := s.post(ctx, "/search/by-image", writer.FormDataContentType(), &body)
	if err != nil {
		return nil, err
	}
	sortProducts(results, query.Sort)
	return clampLimit(results, query.Limit), nil
}

func (s *RemoteSearcher) SearchByItem(ctx context.Context, query ItemQuery) ([]Product, error) {
	if strings.TrimSpace(query.Category) == "" && strings.TrimSpace(query.Color) == "" {
		return nil, ErrEmptyQuery
	}

	payload, err := json.Marshal(map[string]string{
		"category": strings.TrimSpace(query.Category),
		"color":    strings.TrimSpace(query.Color),
		"brand":    strings.TrimSpace(query.Brand),
		"sort":     NormalizeSortMode(query.Sort),
	})
	if err != nil {
		return nil, fmt.Errorf("products: encode request: %w", err)
	}

	results, err := s.post(ctx, "/search/by-item", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	sortProducts(results, query.Sort)
	return clampLimit(results, query.Limit), nil
}

func (s *RemoteSearcher) post(ctx context.Context, path, contentType string, body io.Reader) ([]Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("products: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("products: call product API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return nil, fmt.Errorf("products: product API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed struct {
		Products []Product `json:"products"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("products: decode response: %w", err)
	}
	return parsed.Products, nil
}

func mockCatalog() []Product {
	return []Product{
		{ID: "prd-1001", Name: "Relaxed Oxford Shirt", Brand: "Uniqlo", Price: 29900, ThumbnailURL: "https://cdn.lookmate.example/products/prd-1001.jpg", ProductURL: "https://shop.example/products/prd-1001", SalesRank: 3},
		{ID: "prd-1002", Name: "Wide Tapered Denim", Brand: "Levi's", Price: 89000, ThumbnailURL: "https://cdn.lookmate.example/products/prd-1002.jpg", ProductURL: "https://shop.example/products/prd-1002", SalesRank: 1},
		{ID: "prd-1003", Name: "Cropped Wool Blazer", Brand: "COS", Price: 189000, ThumbnailURL: "https://cdn.lookmate.example/products/prd-1003.jpg", ProductURL: "https://shop.example/products/prd-1003", SalesRank: 7},
		{ID: "prd-1004", Name: "Heavyweight Cotton Tee", Brand: "Carhartt", Price: 45000, ThumbnailURL: "https://cdn.lookmate.example/products/prd-1004.jpg", ProductURL: "https://shop.example/products/prd-1004", SalesRank: 2},
		{ID: "prd-1005", Name: "Pleated Midi Skirt", Brand: "Zara", Price: 59000, ThumbnailURL: "https://cdn.lookmate.example/products/prd-1005.jpg", ProductURL: "https://shop.example/products/prd-1005", SalesRank: 5},
		{ID: "prd-1006", Name: "Chunky Leather Loafers", Brand: "Dr. Martens", Price: 219000, ThumbnailURL: "https://cdn.lookmate.example/products/prd-1006.jpg", ProductURL: "https://shop.example/products/prd-1006", SalesRank: 6},
		{ID: "prd-1007", Name: "Oversized Knit Cardigan", Brand: "Massimo Dutti", Price: 129000, ThumbnailURL: "https://cdn.lookmate.example/products/prd-1007.jpg", ProductURL: "https://shop.example/products/prd-1007", SalesRank: 8},
		{ID: "prd-1008", Name: "Nylon Utility Jacket", Brand: "The North Face", Price: 159000, ThumbnailURL: "https://cdn.lookmate.example/products/prd-1008.jpg", ProductURL: "https://shop.example/products/prd-1008", SalesRank: 4},
		{ID: "prd-1009", Name: "Canvas Low Sneakers", Brand: "Converse", Price: 69000, ThumbnailURL: "https://cdn.lookmate.example/products/prd-1009.jpg", ProductURL: "https://shop.example/products/prd-1009", SalesRank: 9},
		{ID: "prd-1010", Name: "Silk Square Scarf", Brand: "Mango", Price: 39000, ThumbnailURL: "https://cdn.lookmate.example/products/prd-1010.jpg", ProductURL: "https://shop.example/products/prd-1010", SalesRank: 10},
	}
}
