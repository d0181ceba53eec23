// Package notifications maintains the bounded, most-recent-first alert
// feed and its unread counter.
package notifications

import (
	"context"
	"time"

	"panelchat/internal/models"
	"panelchat/pkg/logger"
)

// Store is the authoritative notification store behind the feed.
type Store interface {
	Notifications(ctx context.Context, limit int, unreadOnly bool) ([]models.NotificationItem, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, id int) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// Feed holds at most capacity items, newest first. It is confined to the
// client run loop; load completions hop back through post, and read-state
// writes to the server are fire-and-forget.
type Feed struct {
	capacity int
	store    Store
	post     func(func())

	items   []models.NotificationItem
	unread  int
	loading bool
	loadErr error
}

func NewFeed(capacity int, store Store, post func(func())) *Feed {
	if capacity <= 0 {
		capacity = 10
	}
	return &Feed{
		capacity: capacity,
		store:    store,
		post:     post,
	}
}

// Load seeds the feed from the store, replacing the local list entirely.
func (f *Feed) Load(ctx context.Context, unreadOnly bool) {
	f.loading = true
	f.loadErr = nil
	go func() {
		items, err := f.store.Notifications(ctx, f.capacity, unreadOnly)
		f.post(func() {
			f.loading = false
			if err != nil {
				f.loadErr = err
				logger.Error("Notification load failed: %v", err)
				return
			}
			if len(items) > f.capacity {
				items = items[:f.capacity]
			}
			f.items = items
			f.recountUnread()
		})
	}()
}

// LoadUnreadCount seeds the global badge before the first Load; the count
// is overwritten by the recomputed value once items are present locally.
func (f *Feed) LoadUnreadCount(ctx context.Context) {
	go func() {
		count, err := f.store.UnreadCount(ctx)
		f.post(func() {
			if err != nil {
				logger.Error("Unread count load failed: %v", err)
				return
			}
			if len(f.items) == 0 {
				f.unread = count
			}
		})
	}()
}

// OnInbound inserts an alert built from a notification frame at the head
// of the feed, evicting the tail past capacity.
func (f *Feed) OnInbound(payload models.NotificationPayload) {
	createdAt, ok := models.ParseTimestamp(payload.CreatedAt)
	if !ok {
		createdAt = time.Now()
	}

	title := "Notification"
	if payload.Type == models.PayloadTypeChatMessage {
		title = "New Message"
	}

	id := payload.ChatID
	if id == 0 {
		id = int(time.Now().UnixMilli())
	}

	item := models.NotificationItem{
		ID:            id,
		Kind:          payload.Type,
		Title:         title,
		Body:          payload.Message,
		Read:          false,
		RelatedChatID: payload.ChatID,
		SenderID:      payload.SenderID,
		CreatedAt:     createdAt,
	}

	f.items = append([]models.NotificationItem{item}, f.items...)
	if len(f.items) > f.capacity {
		f.items = f.items[:f.capacity]
	}
	f.recountUnread()
}

// MarkRead flips one item to read locally, then propagates to the server
// best-effort. Read-state divergence is low-stakes, so the local change
// sticks regardless of the call's outcome.
func (f *Feed) MarkRead(ctx context.Context, id int) {
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Read = true
			break
		}
	}
	f.recountUnread()

	go func() {
		if err := f.store.MarkNotificationRead(ctx, id); err != nil {
			logger.Error("Failed to propagate read state for notification %d: %v", id, err)
		}
	}()
}

// MarkAllRead flips every item to read locally, then propagates.
func (f *Feed) MarkAllRead(ctx context.Context) {
	for i := range f.items {
		f.items[i].Read = true
	}
	f.recountUnread()

	go func() {
		if err := f.store.MarkAllNotificationsRead(ctx); err != nil {
			logger.Error("Failed to propagate read-all: %v", err)
		}
	}()
}

// recountUnread recomputes the counter from the read flags. Recomputed,
// never incrementally adjusted, so it cannot drift.
func (f *Feed) recountUnread() {
	count := 0
	for _, item := range f.items {
		if !item.Read {
			count++
		}
	}
	f.unread = count
}

// Items returns a copy of the feed, newest first.
func (f *Feed) Items() []models.NotificationItem {
	out := make([]models.NotificationItem, len(f.items))
	copy(out, f.items)
	return out
}

func (f *Feed) UnreadCount() int {
	return f.unread
}

func (f *Feed) Loading() bool {
	return f.loading
}

func (f *Feed) Err() error {
	return f.loadErr
}
