// Package client wires the realtime session, the event router and the three
// stateful subsystems together, and owns the run loop that serializes every
// state mutation. Inbound frames, timer callbacks and user actions all end
// up on the same goroutine, so the subsystems themselves need no locks.
package client

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"panelchat/internal/api"
	"panelchat/internal/auth"
	"panelchat/internal/config"
	"panelchat/internal/conversation"
	"panelchat/internal/events"
	"panelchat/internal/models"
	"panelchat/internal/notifications"
	"panelchat/internal/presence"
	"panelchat/internal/session"
	"panelchat/pkg/logger"
)

type Client struct {
	identity *auth.Identity
	api      *api.Client
	session  *session.Session
	router   *events.Router
	tracker  *presence.Tracker
	view     *conversation.View
	feed     *notifications.Feed

	actions chan func()
	done    chan struct{}

	invalidOnce      sync.Once
	onSessionInvalid func()
	onServerError    func(string)
}

// New builds the full component graph. The session and router exist before
// any subsystem registers a handler, so initialization order is fixed by
// construction and nothing polls for a dependency to appear.
func New(cfg *config.Config, identity *auth.Identity) *Client {
	c := &Client{
		identity: identity,
		api:      api.NewClient(cfg.API.BaseURL, identity.Token, cfg.API.Timeout),
		actions:  make(chan func(), 256),
		done:     make(chan struct{}),
	}

	c.session = session.New(session.Config{
		URL:               cfg.Realtime.URL,
		Token:             identity.Token,
		HeartbeatInterval: cfg.Realtime.HeartbeatInterval,
		ReconnectDelay:    cfg.Realtime.ReconnectDelay,
		HandshakeTimeout:  cfg.Realtime.HandshakeTimeout,
	})
	c.router = events.NewRouter()

	backend := &restBackend{c: c}
	c.tracker = presence.NewTracker()
	c.view = conversation.NewView(identity.UserID, cfg.Chat.HistoryLimit, backend, c.session, c.post)
	c.feed = notifications.NewFeed(cfg.Chat.FeedCapacity, backend, c.post)

	c.router.On(models.EventTypeConnected, func(ev models.Event) {
		logger.Info("Connected to chat: %s", ev.Message)
	})
	c.router.On(models.EventTypeNotification, c.handleNotification)
	c.router.On(models.EventTypeMessageSent, c.handleMessageSent)
	c.router.On(models.EventTypeUserStatusUpdate, func(ev models.Event) {
		c.tracker.OnStatusUpdate(ev.UserID, ev.IsOnline)
	})
	c.router.On(models.EventTypeError, func(ev models.Event) {
		logger.Error("Server error frame: %s", ev.Message)
		if c.onServerError != nil {
			c.onServerError(ev.Message)
		}
	})
	c.router.On(models.EventTypePong, func(models.Event) {})

	c.session.OnFrame(func(ev models.Event) {
		c.post(func() { c.router.Dispatch(ev) })
	})
	c.session.OnStateChange(func(st session.State) {
		c.post(func() { c.tracker.SetSelfOnline(st == session.StateOpen) })
	})

	return c
}

// SetOnSessionInvalid registers the callback fired once when any REST call
// comes back 401. The surrounding application logs the user out; nothing
// here retries.
func (c *Client) SetOnSessionInvalid(fn func()) {
	c.onSessionInvalid = fn
}

// SetOnServerError registers the callback for error frames pushed by the
// server.
func (c *Client) SetOnServerError(fn func(string)) {
	c.onServerError = fn
}

// Run connects the session, seeds presence and the notification badge, and
// drains the action queue until the context is canceled. An AuthError from
// the first connect is fatal and returned; transient connect failures are
// retried internally at the fixed delay while the loop keeps running.
func (c *Client) Run(ctx context.Context) error {
	if err := c.session.Connect(); err != nil {
		var authErr *auth.AuthError
		if errors.As(err, &authErr) {
			return err
		}
		logger.Error("Initial connect failed, retrying: %v", err)
	}

	c.LoadPeers(ctx)
	c.post(func() { c.feed.LoadUnreadCount(ctx) })

	for {
		select {
		case fn := <-c.actions:
			fn()
		case <-ctx.Done():
			c.session.Close()
			close(c.done)
			return ctx.Err()
		}
	}
}

// Do runs fn on the run loop. All reads and writes of presence,
// conversation and feed state must go through here (or the typed helpers
// below). Must not be called from inside another Do callback.
func (c *Client) Do(fn func()) {
	c.post(fn)
}

// Presence exposes the tracker for rendering. Access it only from the run
// loop via Do; same for Conversation and Feed below.
func (c *Client) Presence() *presence.Tracker {
	return c.tracker
}

func (c *Client) Conversation() *conversation.View {
	return c.view
}

func (c *Client) Feed() *notifications.Feed {
	return c.feed
}

// Session is safe to inspect from any goroutine.
func (c *Client) Session() *session.Session {
	return c.session
}

// LoadPeers fetches the peer list and the online subset and merges both
// into the tracker.
func (c *Client) LoadPeers(ctx context.Context) {
	go func() {
		peers, err := c.api.Peers(ctx)
		if err != nil {
			c.checkSessionErr(err)
			logger.Error("Peer list load failed: %v", err)
			return
		}
		online, err := c.api.OnlinePeers(ctx)
		if err != nil {
			c.checkSessionErr(err)
			logger.Error("Online peer load failed: %v", err)
			online = nil
		}
		c.post(func() {
			c.tracker.SetPeers(peers)
			if online != nil {
				ids := make([]int, 0, len(online))
				for _, peer := range online {
					ids = append(ids, peer.ID)
				}
				c.tracker.SetOnlinePeers(ids)
			}
		})
	}()
}

// OpenConversation makes peerID's conversation active: clears its unread
// flag, discards the previous message list and fetches history.
func (c *Client) OpenConversation(ctx context.Context, peerID int) {
	c.post(func() {
		c.tracker.SetActivePeer(peerID)
		c.view.Open(ctx, peerID)
	})
}

// SendMessage sends body to the active peer, appending it optimistically.
// The rejection reasons (empty body, no active peer, session not open) come
// back as errors; nothing is queued for later. The send itself executes on
// the run loop, so until Run is started only ctx can unblock the call.
func (c *Client) SendMessage(ctx context.Context, body string) error {
	errc := make(chan error, 1)
	c.post(func() { errc <- c.view.Send(body) })
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return session.ErrNotConnected
	}
}

// LoadNotifications seeds the feed from the server.
func (c *Client) LoadNotifications(ctx context.Context, unreadOnly bool) {
	c.post(func() { c.feed.Load(ctx, unreadOnly) })
}

// MarkNotificationRead marks one feed item read, optimistically.
func (c *Client) MarkNotificationRead(ctx context.Context, id int) {
	c.post(func() { c.feed.MarkRead(ctx, id) })
}

// MarkAllNotificationsRead marks the whole feed read, optimistically.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) {
	c.post(func() { c.feed.MarkAllRead(ctx) })
}

// OpenFromNotification handles a click on a feed item: mark it read and,
// when it references a sender, open that conversation.
func (c *Client) OpenFromNotification(ctx context.Context, id int) {
	c.post(func() {
		var senderID int
		for _, item := range c.feed.Items() {
			if item.ID == id {
				senderID = item.SenderID
				break
			}
		}
		c.feed.MarkRead(ctx, id)
		if senderID != 0 {
			c.tracker.SetActivePeer(senderID)
			c.view.Open(ctx, senderID)
		}
	})
}

// handleNotification fans one notification frame out to the feed, the
// conversation view and the presence tracker. The feed is peer-agnostic
// and always gets the item, even for the active conversation; only the
// conversation view suppresses duplicate chat rendering.
func (c *Client) handleNotification(ev models.Event) {
	if ev.Data == nil {
		logger.Debug("Dropping notification frame without payload")
		return
	}
	data := *ev.Data

	c.feed.OnInbound(data)

	if data.Type == models.PayloadTypeChatMessage {
		c.view.OnInbound(c.messageFromPayload(data, c.identity.UserID))
		c.tracker.OnMessageArrived(data.SenderID)
	}
}

// handleMessageSent applies the server's acknowledgement of the local
// user's own send so the matching Pending message gets confirmed. The ack
// carries no receiver id, so it can only ever confirm; with no Pending
// match it is dropped, never rendered as a new message.
func (c *Client) handleMessageSent(ev models.Event) {
	if ev.Data == nil {
		return
	}
	data := *ev.Data
	createdAt, _ := models.ParseTimestamp(data.CreatedAt)
	id := ""
	if data.ChatID != 0 {
		id = strconv.Itoa(data.ChatID)
	}
	c.view.OnEcho(models.Message{ID: id, Body: data.Message, CreatedAt: createdAt})
}

func (c *Client) messageFromPayload(data models.NotificationPayload, receiverID int) models.Message {
	createdAt, _ := models.ParseTimestamp(data.CreatedAt)
	id := ""
	if data.ChatID != 0 {
		id = strconv.Itoa(data.ChatID)
	}
	return models.Message{
		ID:         id,
		SenderID:   data.SenderID,
		ReceiverID: receiverID,
		Body:       data.Message,
		CreatedAt:  createdAt,
		Status:     models.DeliveryConfirmed,
	}
}

// restBackend adapts the REST client for the conversation view and the
// notification feed, watching every call for an invalidated session.
type restBackend struct {
	c *Client
}

func (b *restBackend) Messages(ctx context.Context, peerID, limit int) ([]models.Message, error) {
	messages, err := b.c.api.Messages(ctx, peerID, limit)
	b.c.checkSessionErr(err)
	return messages, err
}

func (b *restBackend) Notifications(ctx context.Context, limit int, unreadOnly bool) ([]models.NotificationItem, error) {
	items, err := b.c.api.Notifications(ctx, limit, unreadOnly)
	b.c.checkSessionErr(err)
	return items, err
}

func (b *restBackend) UnreadCount(ctx context.Context) (int, error) {
	count, err := b.c.api.UnreadCount(ctx)
	b.c.checkSessionErr(err)
	return count, err
}

func (b *restBackend) MarkNotificationRead(ctx context.Context, id int) error {
	err := b.c.api.MarkNotificationRead(ctx, id)
	b.c.checkSessionErr(err)
	return err
}

func (b *restBackend) MarkAllNotificationsRead(ctx context.Context) error {
	err := b.c.api.MarkAllNotificationsRead(ctx)
	b.c.checkSessionErr(err)
	return err
}

func (c *Client) checkSessionErr(err error) {
	if errors.Is(err, api.ErrUnauthorized) {
		c.invalidOnce.Do(func() {
			if c.onSessionInvalid != nil {
				c.onSessionInvalid()
			}
		})
	}
}

func (c *Client) post(fn func()) {
	select {
	case <-c.done:
	case c.actions <- fn:
	}
}
