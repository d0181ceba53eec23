package notifications

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"panelchat/internal/models"
)

type fakeStore struct {
	items     []models.NotificationItem
	count     int
	err       error
	markCalls chan int // -1 for read-all
}

func (s *fakeStore) Notifications(ctx context.Context, limit int, unreadOnly bool) ([]models.NotificationItem, error) {
	return s.items, s.err
}

func (s *fakeStore) UnreadCount(ctx context.Context) (int, error) {
	return s.count, s.err
}

func (s *fakeStore) MarkNotificationRead(ctx context.Context, id int) error {
	if s.markCalls != nil {
		s.markCalls <- id
	}
	return s.err
}

func (s *fakeStore) MarkAllNotificationsRead(ctx context.Context) error {
	if s.markCalls != nil {
		s.markCalls <- -1
	}
	return s.err
}

type feedHarness struct {
	feed   *Feed
	posted chan func()
}

func newFeedHarness(store Store) *feedHarness {
	h := &feedHarness{posted: make(chan func(), 16)}
	h.feed = NewFeed(10, store, func(fn func()) { h.posted <- fn })
	return h
}

func (h *feedHarness) pump(t *testing.T) {
	t.Helper()
	select {
	case fn := <-h.posted:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a posted completion")
	}
}

func payload(chatID, senderID int, msg string) models.NotificationPayload {
	return models.NotificationPayload{
		Type:     models.PayloadTypeChatMessage,
		ChatID:   chatID,
		SenderID: senderID,
		Message:  msg,
	}
}

func TestOnInboundInsertsAtHead(t *testing.T) {
	h := newFeedHarness(&fakeStore{})

	h.feed.OnInbound(payload(1, 42, "first"))
	h.feed.OnInbound(payload(2, 42, "second"))

	items := h.feed.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Body != "second" || items[1].Body != "first" {
		t.Errorf("newest item should be at the head: %+v", items)
	}
	if items[0].Title != "New Message" {
		t.Errorf("chat payloads get the New Message title, got %q", items[0].Title)
	}
	if h.feed.UnreadCount() != 2 {
		t.Errorf("expected unread count 2, got %d", h.feed.UnreadCount())
	}
}

func TestFeedNeverExceedsCapacity(t *testing.T) {
	h := newFeedHarness(&fakeStore{})

	for i := 1; i <= 25; i++ {
		h.feed.OnInbound(payload(i, 42, fmt.Sprintf("msg %d", i)))
	}

	items := h.feed.Items()
	if len(items) != 10 {
		t.Fatalf("expected exactly 10 items, got %d", len(items))
	}
	if items[0].Body != "msg 25" {
		t.Errorf("expected newest at head, got %q", items[0].Body)
	}
	if items[9].Body != "msg 16" {
		t.Errorf("expected oldest surviving item at tail, got %q", items[9].Body)
	}
	if h.feed.UnreadCount() != 10 {
		t.Errorf("expected unread count 10, got %d", h.feed.UnreadCount())
	}
}

func TestMarkReadLocalFirst(t *testing.T) {
	// The server call fails; the local flag flips anyway.
	store := &fakeStore{err: errors.New("server down"), markCalls: make(chan int, 1)}
	h := newFeedHarness(store)

	h.feed.OnInbound(payload(1, 42, "hello"))
	h.feed.MarkRead(context.Background(), 1)

	items := h.feed.Items()
	if !items[0].Read {
		t.Error("expected local read flag regardless of server outcome")
	}
	if h.feed.UnreadCount() != 0 {
		t.Errorf("expected unread count 0, got %d", h.feed.UnreadCount())
	}

	select {
	case id := <-store.markCalls:
		if id != 1 {
			t.Errorf("expected propagation for id 1, got %d", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read state was never propagated")
	}
}

func TestMarkAllRead(t *testing.T) {
	store := &fakeStore{err: errors.New("server down"), markCalls: make(chan int, 1)}
	h := newFeedHarness(store)

	for i := 1; i <= 10; i++ {
		h.feed.OnInbound(payload(i, 42, "m"))
	}
	// Pre-read a few so the set is mixed.
	h.feed.MarkRead(context.Background(), 3)
	<-store.markCalls
	h.feed.MarkRead(context.Background(), 7)
	<-store.markCalls

	h.feed.MarkAllRead(context.Background())

	for i, item := range h.feed.Items() {
		if !item.Read {
			t.Errorf("item %d still unread after MarkAllRead", i)
		}
	}
	if h.feed.UnreadCount() != 0 {
		t.Errorf("expected unread count 0, got %d", h.feed.UnreadCount())
	}
	if call := <-store.markCalls; call != -1 {
		t.Errorf("expected read-all propagation, got %d", call)
	}
}

func TestUnreadCountAlwaysRecomputed(t *testing.T) {
	h := newFeedHarness(&fakeStore{markCalls: make(chan int, 32)})
	ctx := context.Background()

	h.feed.OnInbound(payload(1, 42, "a"))
	h.feed.OnInbound(payload(2, 42, "b"))
	h.feed.MarkRead(ctx, 1)
	h.feed.MarkRead(ctx, 1) // repeated: read flag never flips back
	h.feed.OnInbound(payload(3, 42, "c"))

	if got := h.feed.UnreadCount(); got != 2 {
		t.Errorf("expected unread count 2, got %d", got)
	}

	unread := 0
	for _, item := range h.feed.Items() {
		if !item.Read {
			unread++
		}
	}
	if unread != h.feed.UnreadCount() {
		t.Errorf("counter %d diverged from items (%d unread)", h.feed.UnreadCount(), unread)
	}
}

func TestLoadReplacesList(t *testing.T) {
	store := &fakeStore{items: []models.NotificationItem{
		{ID: 10, Title: "Old", Read: true},
		{ID: 11, Title: "New", Read: false},
	}}
	h := newFeedHarness(store)

	h.feed.OnInbound(payload(1, 42, "local"))
	h.feed.Load(context.Background(), false)
	h.pump(t)

	items := h.feed.Items()
	if len(items) != 2 {
		t.Fatalf("expected the fetched list to replace local items, got %d", len(items))
	}
	if items[0].ID != 10 {
		t.Errorf("expected server order preserved, got %+v", items)
	}
	if h.feed.UnreadCount() != 1 {
		t.Errorf("expected unread count 1, got %d", h.feed.UnreadCount())
	}
	if h.feed.Loading() {
		t.Error("expected loading=false after load")
	}
}

func TestLoadFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("boom")}
	h := newFeedHarness(store)

	h.feed.Load(context.Background(), false)
	h.pump(t)

	if h.feed.Loading() {
		t.Error("a failed load must still terminate the loading state")
	}
	if h.feed.Err() == nil {
		t.Error("expected the load error to be surfaced")
	}
}

func TestLoadUnreadCountSeedsBadge(t *testing.T) {
	store := &fakeStore{count: 4}
	h := newFeedHarness(store)

	h.feed.LoadUnreadCount(context.Background())
	h.pump(t)

	if h.feed.UnreadCount() != 4 {
		t.Errorf("expected seeded unread count 4, got %d", h.feed.UnreadCount())
	}

	// Once items are present locally the recomputed value wins.
	h.feed.OnInbound(payload(1, 42, "a"))
	if h.feed.UnreadCount() != 1 {
		t.Errorf("expected recomputed count 1, got %d", h.feed.UnreadCount())
	}
}
