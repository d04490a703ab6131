package products

// Product is one shopping search result. Similarity is the match confidence
// in [0,1] for image searches; text searches report relevance the same way.
type Product struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Brand        string  `json:"brand"`
	Price        int64   `json:"price"`
	ThumbnailURL string  `json:"thumbnail_url"`
	ProductURL   string  `json:"product_url"`
	Similarity   float64 `json:"similarity"`
	SalesRank    int     `json:"sales_rank,omitempty"`
}

// Search sort modes.
const (
	SortRecommend = "recommend"
	SortPriceAsc  = "priceAsc"
	SortPriceDesc = "priceDesc"
	SortSales     = "sales"
)

// NormalizeSortMode validates a product sort parameter, defaulting to
// recommend.
func NormalizeSortMode(raw string) string {
	switch raw {
	case SortPriceAsc, SortPriceDesc, SortSales:
		return raw
	default:
		return SortRecommend
	}
}
