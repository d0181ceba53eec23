package presence

import (
	"testing"
	"time"

	"panelchat/internal/models"
)

func seedPeers(t *Tracker) {
	t.SetPeers([]models.Peer{
		{ID: 1, Name: "Alice", Email: "alice@example.com"},
		{ID: 2, Name: "Bob", Email: "bob@example.com"},
		{ID: 3, Name: "Carol", Email: "carol@example.com"},
	})
}

func TestStatusUpdateLastWriterWins(t *testing.T) {
	tests := []struct {
		name    string
		updates []bool
		want    bool
	}{
		{"single online", []bool{true}, true},
		{"single offline", []bool{false}, false},
		{"flip flop", []bool{true, false, true, false}, false},
		{"repeated identical", []bool{true, true, true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewTracker()
			seedPeers(tracker)
			for _, online := range tt.updates {
				tracker.OnStatusUpdate(1, online)
			}
			if got := tracker.IsOnline(1); got != tt.want {
				t.Errorf("expected online=%v, got %v", tt.want, got)
			}
		})
	}
}

func TestStatusUpdateRefreshesLastSeen(t *testing.T) {
	tracker := NewTracker()
	seedPeers(tracker)

	tracker.OnStatusUpdate(1, true)
	peer, _ := tracker.Peer(1)
	first := peer.LastSeen

	time.Sleep(5 * time.Millisecond)
	// Identical update: no state change, but the timestamp must refresh.
	tracker.OnStatusUpdate(1, true)
	peer, _ = tracker.Peer(1)
	if !peer.LastSeen.After(first) {
		t.Error("idempotent status update did not refresh LastSeen")
	}
}

func TestStatusUpdateUnknownPeerIgnored(t *testing.T) {
	tracker := NewTracker()
	seedPeers(tracker)

	tracker.OnStatusUpdate(99, true)

	if tracker.IsOnline(99) {
		t.Error("unknown peer should not become tracked")
	}
	if len(tracker.Peers()) != 3 {
		t.Errorf("expected 3 peers, got %d", len(tracker.Peers()))
	}
}

func TestUnreadFlagging(t *testing.T) {
	tracker := NewTracker()
	seedPeers(tracker)
	tracker.SetActivePeer(1)

	tracker.OnMessageArrived(2)
	if !tracker.HasUnread(2) {
		t.Error("message from inactive peer should set unread")
	}

	// Active conversation never flags unread.
	tracker.OnMessageArrived(1)
	if tracker.HasUnread(1) {
		t.Error("message from active peer should not set unread")
	}

	// Switching to the peer clears the flag.
	tracker.SetActivePeer(2)
	if tracker.HasUnread(2) {
		t.Error("activating a conversation should clear its unread flag")
	}
}

func TestUnreadUnknownSenderIgnored(t *testing.T) {
	tracker := NewTracker()
	seedPeers(tracker)

	tracker.OnMessageArrived(99)
	if tracker.HasUnread(99) {
		t.Error("unknown sender should not be flagged")
	}
}

func TestSetPeersMergesWithoutDeleting(t *testing.T) {
	tracker := NewTracker()
	seedPeers(tracker)
	tracker.OnStatusUpdate(1, true)

	// A later fetch missing Alice must not delete her, and must not reset
	// her online flag.
	tracker.SetPeers([]models.Peer{
		{ID: 2, Name: "Robert", Email: "bob@example.com"},
		{ID: 4, Name: "Dave", Email: "dave@example.com"},
	})

	peers := tracker.Peers()
	if len(peers) != 4 {
		t.Fatalf("expected 4 peers after merge, got %d", len(peers))
	}
	if !tracker.IsOnline(1) {
		t.Error("merge reset an existing peer's online flag")
	}
	peer, _ := tracker.Peer(2)
	if peer.Name != "Robert" {
		t.Errorf("merge did not update peer name: %q", peer.Name)
	}
}

func TestSetOnlinePeersOverlay(t *testing.T) {
	tracker := NewTracker()
	seedPeers(tracker)
	tracker.OnStatusUpdate(3, true)

	tracker.SetOnlinePeers([]int{1, 2})

	if !tracker.IsOnline(1) || !tracker.IsOnline(2) {
		t.Error("listed peers should be online")
	}
	if tracker.IsOnline(3) {
		t.Error("unlisted peer should be offline after overlay")
	}
}

func TestFilter(t *testing.T) {
	tracker := NewTracker()
	seedPeers(tracker)

	tests := []struct {
		term string
		want int
	}{
		{"", 3},
		{"ali", 1},
		{"ALICE", 1},
		{"example.com", 3},
		{"nobody", 0},
	}

	for _, tt := range tests {
		if got := len(tracker.Filter(tt.term)); got != tt.want {
			t.Errorf("Filter(%q): expected %d peers, got %d", tt.term, tt.want, got)
		}
	}
}

func TestSelfOnlineFollowsSession(t *testing.T) {
	tracker := NewTracker()

	tracker.SetSelfOnline(true)
	if !tracker.SelfOnline() {
		t.Error("expected self online after open")
	}
	tracker.SetSelfOnline(false)
	if tracker.SelfOnline() {
		t.Error("expected self offline after close")
	}
}
