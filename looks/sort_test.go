package looks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func feedFixture() []PublicLook {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return []PublicLook{
		{PublicID: "a", LikeCount: 5, CreatedAt: base},
		{PublicID: "b", LikeCount: 12, CreatedAt: base.Add(2 * time.Hour)},
		{PublicID: "c", LikeCount: 5, CreatedAt: base.Add(time.Hour)},
		{PublicID: "d", LikeCount: 0, CreatedAt: base.Add(3 * time.Hour)},
	}
}

func publicIDs(feed []PublicLook) []string {
	ids := make([]string, len(feed))
	for i, post := range feed {
		ids[i] = post.PublicID
	}
	return ids
}

func TestSortRecentOrdersByCreatedAtDesc(t *testing.T) {
	feed := feedFixture()
	SortPublicLooks(feed, SortRecent)
	require.Equal(t, []string{"d", "b", "c", "a"}, publicIDs(feed))
}

func TestSortByLikesIsStableForTies(t *testing.T) {
	feed := feedFixture()
	SortPublicLooks(feed, SortLikes)
	// a and c tie at 5 likes; their input order must survive.
	require.Equal(t, []string{"b", "a", "c", "d"}, publicIDs(feed))
}

func TestRecommendMatchesLikesOrdering(t *testing.T) {
	byLikes := feedFixture()
	SortPublicLooks(byLikes, SortLikes)

	byRecommend := feedFixture()
	SortPublicLooks(byRecommend, SortRecommend)

	require.Equal(t, publicIDs(byLikes), publicIDs(byRecommend))
}

func TestNormalizeSortDefaultsToRecommend(t *testing.T) {
	require.Equal(t, SortRecommend, NormalizeSort(""))
	require.Equal(t, SortRecommend, NormalizeSort("trending"))
	require.Equal(t, SortRecent, NormalizeSort("recent"))
	require.Equal(t, SortLikes, NormalizeSort("likes"))
}
