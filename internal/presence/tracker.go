// Package presence tracks peer online state and per-conversation unread
// markers. The tracker is confined to the client run loop and needs no
// locking of its own.
package presence

import (
	"strings"
	"time"

	"panelchat/internal/models"
)

type Tracker struct {
	peers      map[int]*models.Peer
	order      []int
	unread     map[int]bool
	activePeer int
	selfOnline bool
}

func NewTracker() *Tracker {
	return &Tracker{
		peers:  make(map[int]*models.Peer),
		unread: make(map[int]bool),
	}
}

// SetPeers merges a peer list fetch into the tracked set. Peers are created
// on first appearance and never deleted during a session; a peer missing
// from a later fetch goes stale rather than disappearing. Online flags are
// left to presence events and SetOnlinePeers.
func (t *Tracker) SetPeers(peers []models.Peer) {
	for _, peer := range peers {
		if known, ok := t.peers[peer.ID]; ok {
			known.Name = peer.Name
			known.Email = peer.Email
			continue
		}
		p := peer
		p.IsOnline = false
		t.peers[p.ID] = &p
		t.order = append(t.order, p.ID)
	}
}

// SetOnlinePeers overlays the online-subset fetch: listed peers are online,
// every other known peer is offline.
func (t *Tracker) SetOnlinePeers(ids []int) {
	online := make(map[int]bool, len(ids))
	for _, id := range ids {
		online[id] = true
	}
	now := time.Now()
	for id, peer := range t.peers {
		peer.IsOnline = online[id]
		peer.LastSeen = now
	}
}

// OnStatusUpdate applies one presence event. Idempotent for state, but the
// display timestamp refreshes on every event. Unknown peers are ignored;
// they will appear on the next peer list fetch.
func (t *Tracker) OnStatusUpdate(peerID int, online bool) {
	peer, ok := t.peers[peerID]
	if !ok {
		return
	}
	peer.IsOnline = online
	peer.LastSeen = time.Now()
}

// OnMessageArrived flags the sender as having unread activity unless their
// conversation is the active one.
func (t *Tracker) OnMessageArrived(senderID int) {
	if senderID == t.activePeer {
		return
	}
	if _, ok := t.peers[senderID]; !ok {
		return
	}
	t.unread[senderID] = true
}

// SetActivePeer records which conversation is active and clears its unread
// flag. Zero means no active conversation.
func (t *Tracker) SetActivePeer(peerID int) {
	t.activePeer = peerID
	if peerID != 0 {
		t.ClearUnread(peerID)
	}
}

func (t *Tracker) ClearUnread(peerID int) {
	delete(t.unread, peerID)
}

func (t *Tracker) HasUnread(peerID int) bool {
	return t.unread[peerID]
}

// SetSelfOnline reflects the local user's own connection state, with no
// debounce: a flapping connection shows a flapping indicator.
func (t *Tracker) SetSelfOnline(online bool) {
	t.selfOnline = online
}

func (t *Tracker) SelfOnline() bool {
	return t.selfOnline
}

func (t *Tracker) IsOnline(peerID int) bool {
	peer, ok := t.peers[peerID]
	return ok && peer.IsOnline
}

func (t *Tracker) Peer(peerID int) (models.Peer, bool) {
	peer, ok := t.peers[peerID]
	if !ok {
		return models.Peer{}, false
	}
	return *peer, true
}

// Peers returns the tracked set in first-seen order.
func (t *Tracker) Peers() []models.Peer {
	out := make([]models.Peer, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.peers[id])
	}
	return out
}

// Filter returns peers whose name or email contains the term,
// case-insensitively. An empty term returns everything.
func (t *Tracker) Filter(term string) []models.Peer {
	if term == "" {
		return t.Peers()
	}
	term = strings.ToLower(term)
	var out []models.Peer
	for _, id := range t.order {
		peer := t.peers[id]
		if strings.Contains(strings.ToLower(peer.Name), term) ||
			strings.Contains(strings.ToLower(peer.Email), term) {
			out = append(out, *peer)
		}
	}
	return out
}
