package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"panelchat/internal/models"
)

// ErrUnauthorized is returned on any 401 response. The surrounding
// application treats it as "session invalid" and logs the user out; it is
// never retried here.
var ErrUnauthorized = errors.New("session invalid")

// Client talks to the panel's REST API with a bearer credential.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// wireMessage is the history endpoint's row shape.
type wireMessage struct {
	ID         int    `json:"id"`
	Message    string `json:"message"`
	SenderID   int    `json:"sender_id"`
	ReceiverID int    `json:"receiver_id"`
	CreatedAt  string `json:"created_at"`
}

// wireNotification is the notifications endpoint's row shape.
type wireNotification struct {
	ID               int    `json:"id"`
	Title            string `json:"title"`
	Message          string `json:"message"`
	NotificationType string `json:"notification_type"`
	IsRead           bool   `json:"is_read"`
	RelatedChatID    int    `json:"related_chat_id"`
	SenderID         int    `json:"sender_id"`
	CreatedAt        string `json:"created_at"`
}

// Peers fetches the full peer list for the conversation sidebar.
func (c *Client) Peers(ctx context.Context) ([]models.Peer, error) {
	var peers []models.Peer
	if err := c.getJSON(ctx, "/users/chat-users", nil, &peers); err != nil {
		return nil, fmt.Errorf("failed to load peers: %w", err)
	}
	return peers, nil
}

// OnlinePeers fetches the subset of peers currently online.
func (c *Client) OnlinePeers(ctx context.Context) ([]models.Peer, error) {
	var peers []models.Peer
	if err := c.getJSON(ctx, "/chat/users/online", nil, &peers); err != nil {
		return nil, fmt.Errorf("failed to load online peers: %w", err)
	}
	return peers, nil
}

// Messages fetches up to limit most recent messages exchanged with peerID,
// oldest first.
func (c *Client) Messages(ctx context.Context, peerID, limit int) ([]models.Message, error) {
	query := url.Values{
		"receiver_id": {strconv.Itoa(peerID)},
		"limit":       {strconv.Itoa(limit)},
	}

	var rows []wireMessage
	if err := c.getJSON(ctx, "/chat/messages", query, &rows); err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	messages := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		createdAt, _ := models.ParseTimestamp(row.CreatedAt)
		messages = append(messages, models.Message{
			ID:         strconv.Itoa(row.ID),
			SenderID:   row.SenderID,
			ReceiverID: row.ReceiverID,
			Body:       row.Message,
			CreatedAt:  createdAt,
			Status:     models.DeliveryConfirmed,
		})
	}
	return messages, nil
}

// Notifications fetches existing notifications to seed the feed.
func (c *Client) Notifications(ctx context.Context, limit int, unreadOnly bool) ([]models.NotificationItem, error) {
	query := url.Values{
		"limit":       {strconv.Itoa(limit)},
		"unread_only": {strconv.FormatBool(unreadOnly)},
	}

	var rows []wireNotification
	if err := c.getJSON(ctx, "/chat/notifications", query, &rows); err != nil {
		return nil, fmt.Errorf("failed to load notifications: %w", err)
	}

	items := make([]models.NotificationItem, 0, len(rows))
	for _, row := range rows {
		createdAt, _ := models.ParseTimestamp(row.CreatedAt)
		items = append(items, models.NotificationItem{
			ID:            row.ID,
			Kind:          row.NotificationType,
			Title:         row.Title,
			Body:          row.Message,
			Read:          row.IsRead,
			RelatedChatID: row.RelatedChatID,
			SenderID:      row.SenderID,
			CreatedAt:     createdAt,
		})
	}
	return items, nil
}

// UnreadCount fetches the global unread notification count.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var resp struct {
		UnreadCount int `json:"unread_count"`
	}
	if err := c.getJSON(ctx, "/chat/notifications/unread-count", nil, &resp); err != nil {
		return 0, fmt.Errorf("failed to load unread count: %w", err)
	}
	return resp.UnreadCount, nil
}

// MarkNotificationRead marks one notification read on the server.
func (c *Client) MarkNotificationRead(ctx context.Context, id int) error {
	path := fmt.Sprintf("/chat/notifications/%d/read", id)
	if err := c.put(ctx, path); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// MarkAllNotificationsRead marks every notification read on the server.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	if err := c.put(ctx, "/chat/notifications/read-all"); err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("invalid response body: %w", err)
	}
	return nil
}

func (c *Client) put(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodPut, path, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
