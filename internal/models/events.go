package models

type EventType string

// Inbound event types. Unrecognized types are dropped by the router.
const (
	EventTypeConnected        EventType = "connected"
	EventTypeNotification     EventType = "notification"
	EventTypeMessageSent      EventType = "message_sent"
	EventTypeUserStatusUpdate EventType = "user_status_update"
	EventTypeError            EventType = "error"
	EventTypePong             EventType = "pong"
)

// Outbound event types.
const (
	EventTypePing        EventType = "ping"
	EventTypeChatMessage EventType = "chat_message"
)

// Event is one frame on the realtime connection, inbound or outbound.
// The server tags every frame with a type discriminant; the remaining
// fields are populated per type.
type Event struct {
	Type EventType `json:"type"`

	// connected / error
	Message string `json:"message,omitempty"`

	// notification / message_sent
	Data *NotificationPayload `json:"data,omitempty"`

	// user_status_update
	UserID   int  `json:"user_id,omitempty"`
	IsOnline bool `json:"is_online,omitempty"`

	// chat_message (outbound)
	ReceiverID int `json:"receiver_id,omitempty"`
}

// NotificationPayload is the data envelope carried by notification and
// message_sent frames. CreatedAt stays a string on the wire because the
// server emits ISO timestamps without a zone; use ParseTimestamp.
type NotificationPayload struct {
	Type      string `json:"type"`
	ChatID    int    `json:"chat_id,omitempty"`
	SenderID  int    `json:"sender_id,omitempty"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at,omitempty"`
}

// PayloadTypeChatMessage is the notification payload type emitted for
// direct messages.
const PayloadTypeChatMessage = "chat_message"
