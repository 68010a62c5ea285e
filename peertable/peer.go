// Package peertable tracks per-neighbor state: address, liveness, latency,
// and hop distance. It is the Go counterpart of
// original_source/devices/network_manager.py's peer dictionary, with the
// mutex-guarded-map structure taken from device/device.go's device.peers
// (sync.RWMutex + map[NoisePublicKey]*Peer), collapsed to a plain sync.Mutex.
package peertable

import (
	"sync"
	"time"
)

// Peer is one neighbor's known state. Session key material itself lives in
// crypto.Manager (keyed by peer ID), not here, so there is exactly one
// place that owns a secret; HasSession just mirrors whether one has been
// established, for status reporting.
type Peer struct {
	ID                string
	Name              string
	IP                string
	Port              int
	PublicFingerprint string
	HasSession        bool
	LastSeen          time.Time
	LatencyMS         *float64
	HopDistance       int
	Connected         bool
}

// Table is the full set of known peers, safe for concurrent use.
type Table struct {
	ownID string

	mu    sync.Mutex
	peers map[string]*Peer
}

// New creates an empty table that will never accept ownID as a peer (spec
// invariant: "the local node's own identity must never appear in its peer
// table").
func New(ownID string) *Table {
	return &Table{
		ownID: ownID,
		peers: make(map[string]*Peer),
	}
}

// Upsert creates a peer on first sight or refreshes its name/address/
// fingerprint on subsequent sightings. It is a no-op for ownID. New peers
// start at hop distance 1 (direct neighbor), connected, seen now.
func (t *Table) Upsert(id, name, ip string, port int, publicFingerprint string) {
	if id == "" || id == t.ownID {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.peers[id]
	if !ok {
		t.peers[id] = &Peer{
			ID:                id,
			Name:              name,
			IP:                ip,
			Port:              port,
			PublicFingerprint: publicFingerprint,
			LastSeen:          time.Now(),
			HopDistance:       1,
			Connected:         true,
		}
		return
	}

	p.Name = name
	p.IP = ip
	p.Port = port
	p.PublicFingerprint = publicFingerprint
	p.Connected = true
	t.touch(p, time.Now())
}

// Get returns a copy of the peer's current state.
func (t *Table) Get(id string) (Peer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[id]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// List returns a snapshot of every known peer (online or not).
func (t *Table) List() []Peer {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, *p)
	}
	return out
}

// DirectPeer returns a peer only if it is a direct, currently connected
// neighbor (hop_distance == 1), the glossary's definition of "direct peer".
func (t *Table) DirectPeer(id string) (Peer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[id]
	if !ok || !p.Connected || p.HopDistance != 1 {
		return Peer{}, false
	}
	return *p, true
}

// ConnectedPeers returns every peer currently marked connected, for flood
// fallback.
func (t *Table) ConnectedPeers() []Peer {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Peer, 0, len(t.peers))
	for _, p := range t.peers {
		if p.Connected {
			out = append(out, *p)
		}
	}
	return out
}

// MarkSeen updates last_seen and marks the peer connected, provided now is
// at least as recent as its current last_seen (the invariant is monotonic
// non-decrease, not "always overwrite").
func (t *Table) MarkSeen(id string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[id]
	if !ok {
		return
	}
	p.Connected = true
	t.touch(p, now)
}

func (t *Table) touch(p *Peer, now time.Time) {
	if now.After(p.LastSeen) {
		p.LastSeen = now
	}
}

// SetLatency records a peer's most recent round-trip latency and marks it
// seen (a PONG implies liveness).
func (t *Table) SetLatency(id string, ms float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[id]
	if !ok {
		return
	}
	p.LatencyMS = &ms
	p.Connected = true
	t.touch(p, time.Now())
}

// SetHopDistance updates how many hops away a destination/peer is believed
// to be. Hop distance is always at least 1.
func (t *Table) SetHopDistance(id string, hops int) {
	if hops < 1 {
		hops = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.peers[id]; ok {
		p.HopDistance = hops
	}
}

// SetSessionEstablished flips the HasSession flag once crypto.Manager has
// derived a session key for this peer.
func (t *Table) SetSessionEstablished(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.peers[id]; ok {
		p.HasSession = true
	}
}

// SweepLiveness marks any peer unseen for longer than timeout as
// disconnected. Offline peers are never deleted — only process shutdown
// removes them, by discarding the whole table. Calling SweepLiveness twice
// with the same now is idempotent.
func (t *Table) SweepLiveness(now time.Time, timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.peers {
		if now.Sub(p.LastSeen) > timeout {
			p.Connected = false
		}
	}
}
