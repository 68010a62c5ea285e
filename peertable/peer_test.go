package peertable

import (
	"testing"
	"time"
)

func TestUpsertRejectsOwnID(t *testing.T) {
	table := New("self")
	table.Upsert("self", "me", "10.0.0.1", 5001, "fp")
	if _, ok := table.Get("self"); ok {
		t.Fatalf("own id must never be added to the peer table")
	}
}

func TestUpsertCreatesThenUpdates(t *testing.T) {
	table := New("self")
	table.Upsert("peer-b", "B", "10.0.0.2", 5001, "fp1")

	p, ok := table.Get("peer-b")
	if !ok {
		t.Fatalf("expected peer-b present")
	}
	if p.HopDistance != 1 || !p.Connected {
		t.Errorf("new peer should start hop_distance=1 connected=true, got %+v", p)
	}

	table.Upsert("peer-b", "B2", "10.0.0.3", 5001, "fp2")
	p, _ = table.Get("peer-b")
	if p.Name != "B2" || p.IP != "10.0.0.3" {
		t.Errorf("expected update to overwrite name/ip, got %+v", p)
	}
}

func TestLastSeenMonotonic(t *testing.T) {
	table := New("self")
	table.Upsert("peer-b", "B", "10.0.0.2", 5001, "fp")

	p, _ := table.Get("peer-b")
	early := p.LastSeen
	table.MarkSeen("peer-b", early.Add(-time.Hour))
	p, _ = table.Get("peer-b")
	if !p.LastSeen.Equal(early) {
		t.Errorf("last_seen must not move backwards, got %v want %v", p.LastSeen, early)
	}

	later := early.Add(time.Minute)
	table.MarkSeen("peer-b", later)
	p, _ = table.Get("peer-b")
	if !p.LastSeen.Equal(later) {
		t.Errorf("expected last_seen to advance to %v, got %v", later, p.LastSeen)
	}
}

func TestSweepLivenessMarksDisconnectedButDoesNotDelete(t *testing.T) {
	table := New("self")
	table.Upsert("peer-b", "B", "10.0.0.2", 5001, "fp")

	// last_seen never moves backwards, so age the peer by sweeping at a time
	// two minutes past its last sighting.
	fresh, _ := table.Get("peer-b")
	now := fresh.LastSeen.Add(2 * time.Minute)
	table.SweepLiveness(now, 60*time.Second)

	p, ok := table.Get("peer-b")
	if !ok {
		t.Fatalf("offline peer must remain in table")
	}
	if p.Connected {
		t.Errorf("expected peer marked disconnected after timeout")
	}

	// Idempotence: calling again with the same now must not change anything.
	table.SweepLiveness(now, 60*time.Second)
	p2, _ := table.Get("peer-b")
	if p2 != p {
		t.Errorf("expected SweepLiveness to be idempotent, got %+v then %+v", p, p2)
	}
}

func TestDirectPeerRequiresHopOneAndConnected(t *testing.T) {
	table := New("self")
	table.Upsert("peer-b", "B", "10.0.0.2", 5001, "fp")

	if _, ok := table.DirectPeer("peer-b"); !ok {
		t.Fatalf("fresh direct peer should qualify")
	}

	table.SetHopDistance("peer-b", 3)
	if _, ok := table.DirectPeer("peer-b"); ok {
		t.Errorf("multi-hop peer must not be reported as direct")
	}
}

func TestSetHopDistanceFloorsAtOne(t *testing.T) {
	table := New("self")
	table.Upsert("peer-b", "B", "10.0.0.2", 5001, "fp")
	table.SetHopDistance("peer-b", 0)
	p, _ := table.Get("peer-b")
	if p.HopDistance != 1 {
		t.Errorf("expected hop distance floor of 1, got %d", p.HopDistance)
	}
}
