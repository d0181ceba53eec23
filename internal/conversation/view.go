// Package conversation maintains the active conversation's message list:
// history fetch on open, optimistic append on send, and best-effort
// reconciliation against confirmed server echoes.
package conversation

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"panelchat/internal/models"
	"panelchat/pkg/logger"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrNoActivePeer = errors.New("no active conversation")
)

// reconcileWindow bounds how far apart an optimistic append and its server
// echo may be and still count as the same send. There is no correlation id
// on the wire, so matching is best-effort.
const reconcileWindow = 10 * time.Second

// HistoryFetcher loads the most recent messages exchanged with a peer.
type HistoryFetcher interface {
	Messages(ctx context.Context, peerID, limit int) ([]models.Message, error)
}

// FrameSender transmits one outbound frame.
type FrameSender interface {
	Send(models.Event) error
}

// View is the active conversation's state. It is confined to the client
// run loop; fetch completions hop back onto the loop through post.
type View struct {
	selfID  int
	limit   int
	fetcher HistoryFetcher
	sender  FrameSender
	post    func(func())

	activePeer int
	epoch      int
	messages   []models.Message
	loading    bool
	fetchErr   error
}

func NewView(selfID, historyLimit int, fetcher HistoryFetcher, sender FrameSender, post func(func())) *View {
	return &View{
		selfID:  selfID,
		limit:   historyLimit,
		fetcher: fetcher,
		sender:  sender,
		post:    post,
	}
}

// Open switches the active conversation to peerID. The prior message list
// is discarded immediately and a history fetch is issued. A response that
// arrives after a newer Open is detected by epoch and target peer and
// dropped.
func (v *View) Open(ctx context.Context, peerID int) {
	v.activePeer = peerID
	v.epoch++
	v.messages = nil
	v.loading = true
	v.fetchErr = nil

	epoch := v.epoch
	go func() {
		messages, err := v.fetcher.Messages(ctx, peerID, v.limit)
		v.post(func() {
			if epoch != v.epoch || peerID != v.activePeer {
				logger.Debug("Dropping stale history response for peer %d", peerID)
				return
			}
			v.loading = false
			if err != nil {
				v.fetchErr = err
				logger.Error("History fetch for peer %d failed: %v", peerID, err)
				return
			}
			sort.SliceStable(messages, func(i, j int) bool {
				return messages[i].CreatedAt.Before(messages[j].CreatedAt)
			})
			v.messages = messages
		})
	}()
}

// Send transmits a chat_message frame to the active peer and appends a
// Pending copy locally for optimistic display. Empty bodies, a missing
// active peer, and a closed session are all rejections, not errors to
// recover: nothing is queued.
func (v *View) Send(body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return ErrEmptyMessage
	}
	if v.activePeer == 0 {
		return ErrNoActivePeer
	}

	err := v.sender.Send(models.Event{
		Type:       models.EventTypeChatMessage,
		ReceiverID: v.activePeer,
		Message:    body,
	})
	if err != nil {
		return err
	}

	v.messages = append(v.messages, models.Message{
		ID:         "local-" + uuid.NewString(),
		SenderID:   v.selfID,
		ReceiverID: v.activePeer,
		Body:       body,
		CreatedAt:  time.Now(),
		Status:     models.DeliveryPending,
	})
	return nil
}

// OnInbound applies one confirmed message from the event stream. Messages
// not belonging to the active conversation are ignored here; they still
// reach the notification feed and the presence tracker through the router.
func (v *View) OnInbound(msg models.Message) {
	if v.activePeer == 0 {
		return
	}
	belongs := (msg.SenderID == v.activePeer && msg.ReceiverID == v.selfID) ||
		(msg.SenderID == v.selfID && msg.ReceiverID == v.activePeer)
	if !belongs {
		return
	}

	msg.Status = models.DeliveryConfirmed
	v.messages = append(v.messages, msg)
}

// OnEcho applies the server's acknowledgement of the local user's own
// send. The ack carries no receiver id, so it is matched against Pending
// messages on trimmed body within the reconcile window and confirmed in
// place, adopting the server's id. An ack with nothing to confirm, such
// as one arriving after the conversation was switched, is dropped rather
// than rendered.
func (v *View) OnEcho(echo models.Message) {
	echoAt := echo.CreatedAt
	if echoAt.IsZero() {
		echoAt = time.Now()
	}
	body := strings.TrimSpace(echo.Body)

	for i := range v.messages {
		pending := &v.messages[i]
		if pending.Status != models.DeliveryPending || pending.SenderID != v.selfID {
			continue
		}
		if strings.TrimSpace(pending.Body) != body {
			continue
		}
		delta := echoAt.Sub(pending.CreatedAt)
		if delta < -reconcileWindow || delta > reconcileWindow {
			continue
		}
		pending.Status = models.DeliveryConfirmed
		if echo.ID != "" {
			pending.ID = echo.ID
		}
		return
	}
	logger.Debug("Dropping unmatched send acknowledgement")
}

// ActivePeer reports the peer the view currently renders, zero when none.
func (v *View) ActivePeer() int {
	return v.activePeer
}

func (v *View) Loading() bool {
	return v.loading
}

// Err reports the fetch error for the current conversation, if its history
// load failed.
func (v *View) Err() error {
	return v.fetchErr
}

// Messages returns a copy of the ordered message list, oldest first.
func (v *View) Messages() []models.Message {
	out := make([]models.Message, len(v.messages))
	copy(out, v.messages)
	return out
}
