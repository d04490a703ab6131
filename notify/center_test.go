package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNotifyAndList(t *testing.T) {
	center := NewCenter(time.Minute)

	id := center.Notify(1, "info", "AI backend unreachable, operating in mock mode")
	require.NotEmpty(t, id)

	notices := center.List(1)
	require.Len(t, notices, 1)
	require.Equal(t, id, notices[0].ID)
	require.Equal(t, "info", notices[0].Kind)

	require.Empty(t, center.List(2))
}

func TestNotifyDropsAnonymous(t *testing.T) {
	center := NewCenter(time.Minute)

	require.Empty(t, center.Notify(0, "info", "nobody to tell"))
	require.Empty(t, center.List(0))
}

func TestDismissCancelsNotice(t *testing.T) {
	center := NewCenter(time.Minute)

	id := center.Notify(1, "info", "hello")
	require.True(t, center.Dismiss(1, id))
	require.Empty(t, center.List(1))

	// A second dismiss of the same notice is a no-op.
	require.False(t, center.Dismiss(1, id))
}

func TestNoticesExpireAutomatically(t *testing.T) {
	center := NewCenter(20 * time.Millisecond)

	center.Notify(1, "info", "short lived")
	require.Len(t, center.List(1), 1)

	require.Eventually(t, func() bool {
		return len(center.List(1)) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestListOrdersOldestFirst(t *testing.T) {
	center := NewCenter(time.Minute)

	center.Notify(1, "info", "first")
	time.Sleep(5 * time.Millisecond)
	center.Notify(1, "warning", "second")

	notices := center.List(1)
	require.Len(t, notices, 2)
	require.Equal(t, "first", notices[0].Message)
	require.Equal(t, "second", notices[1].Message)
}
