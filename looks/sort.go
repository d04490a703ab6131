package looks

import "sort"

// Feed sort modes.
const (
	SortRecommend = "recommend"
	SortRecent    = "recent"
	SortLikes     = "likes"
)

// NormalizeSort maps a feed sort parameter to a known mode, defaulting to
// recommend.
func NormalizeSort(raw string) string {
	switch raw {
	case SortRecent:
		return SortRecent
	case SortLikes:
		return SortLikes
	case SortRecommend, "":
		return SortRecommend
	default:
		return SortRecommend
	}
}

// SortPublicLooks orders the feed in place. The sort is stable so equal keys
// keep their relative (insertion) order.
//
// TODO: recommend currently ranks purely by like count, same as likes; a real
// recommendation signal (recency decay, viewer affinity) would diverge here.
func SortPublicLooks(feed []PublicLook, mode string) {
	switch NormalizeSort(mode) {
	case SortRecent:
		sort.SliceStable(feed, func(i, j int) bool {
			return feed[i].CreatedAt.After(feed[j].CreatedAt)
		})
	default:
		sort.SliceStable(feed, func(i, j int) bool {
			return feed[i].LikeCount > feed[j].LikeCount
		})
	}
}
