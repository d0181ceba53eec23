package models

import "time"

// Peer is a counterpart user known to the client. Peers are created on the
// first peer list fetch and never removed during a session.
type Peer struct {
	ID       int       `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email,omitempty"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"-"`
}

type DeliveryStatus string

const (
	// DeliveryPending marks an optimistic local append awaiting the
	// server echo.
	DeliveryPending DeliveryStatus = "pending"
	// DeliveryConfirmed marks a message the server has acknowledged or
	// delivered itself.
	DeliveryConfirmed DeliveryStatus = "confirmed"
)

// Message is one chat line. ID is server-assigned once confirmed; before
// that it holds a locally unique provisional id.
type Message struct {
	ID         string         `json:"id"`
	SenderID   int            `json:"sender_id"`
	ReceiverID int            `json:"receiver_id"`
	Body       string         `json:"message"`
	CreatedAt  time.Time      `json:"created_at"`
	Status     DeliveryStatus `json:"-"`
}

// NotificationItem is one alert in the notification feed.
type NotificationItem struct {
	ID            int       `json:"id"`
	Kind          string    `json:"notification_type"`
	Title         string    `json:"title"`
	Body          string    `json:"message"`
	Read          bool      `json:"is_read"`
	RelatedChatID int       `json:"related_chat_id,omitempty"`
	SenderID      int       `json:"sender_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
