package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notice is a short-lived, per-user message, e.g. "AI backend unreachable,
// operating in mock mode".
type Notice struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type pendingNotice struct {
	notice Notice
	timer  *time.Timer
}

// Center keeps auto-expiring notices per user. Every notice owns a
// cancellable expiry timer; dismissing a notice stops the timer so an
// expired callback never touches a removed entry.
type Center struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[uint64]map[string]*pendingNotice
}

// NewCenter creates a notice center with the given ttl; non-positive falls
// back to one minute.
func NewCenter(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Center{ttl: ttl, pending: make(map[uint64]map[string]*pendingNotice)}
}

// Notify enqueues an informational notice for the user. userID zero means
// the caller has no authenticated user; the notice is dropped.
func (c *Center) Notify(userID uint64, kind, message string) string {
	if c == nil || userID == 0 || message == "" {
		return ""
	}
	if kind == "" {
		kind = "info"
	}

	notice := Notice{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	byID, ok := c.pending[userID]
	if !ok {
		byID = make(map[string]*pendingNotice)
		c.pending[userID] = byID
	}

	entry := &pendingNotice{notice: notice}
	entry.timer = time.AfterFunc(c.ttl, func() {
		c.expire(userID, notice.ID)
	})
	byID[notice.ID] = entry

	return notice.ID
}

// List returns the user's active notices ordered oldest first.
func (c *Center) List(userID uint64) []Notice {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	byID := c.pending[userID]
	notices := make([]Notice, 0, len(byID))
	for _, entry := range byID {
		notices = append(notices, entry.notice)
	}
	sort.Slice(notices, func(i, j int) bool {
		if notices[i].CreatedAt.Equal(notices[j].CreatedAt) {
			return notices[i].ID < notices[j].ID
		}
		return notices[i].CreatedAt.Before(notices[j].CreatedAt)
	})
	return notices
}

// Dismiss removes a notice and cancels its pending expiry. It reports
// whether the notice existed.
func (c *Center) Dismiss(userID uint64, noticeID string) bool {
	if c == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	byID := c.pending[userID]
	entry, ok := byID[noticeID]
	if !ok {
		return false
	}

	entry.timer.Stop()
	delete(byID, noticeID)
	if len(byID) == 0 {
		delete(c.pending, userID)
	}
	return true
}

func (c *Center) expire(userID uint64, noticeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byID := c.pending[userID]
	if _, ok := byID[noticeID]; !ok {
		return
	}
	delete(byID, noticeID)
	if len(byID) == 0 {
		delete(c.pending, userID)
	}
}
