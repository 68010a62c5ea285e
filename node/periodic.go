package node

import (
	"encoding/json"
	"time"

	"github.com/nexlattice/node/wire"
)

// broadcastDiscovery sends a fresh DISCOVERY packet to the subnet, run
// every 30s by the main loop.
func (n *Node) broadcastDiscovery() {
	msg := wire.Discovery{
		Type:      wire.TypeDiscovery,
		NodeID:    n.id,
		NodeName:  n.name,
		PublicKey: n.crypto.PublicFingerprint(),
		Timestamp: nowUnix(),
	}
	body := marshalOrNil(msg)
	if body == nil {
		return
	}
	if err := n.transport.SendBroadcast(body); err != nil {
		n.log.Debugf("discovery broadcast failed: %v", err)
	}
}

// runHealthCheck sweeps peer liveness and pings every known peer, run every
// 10s. Pinging disconnected peers too lets a peer that comes back online
// recover its connected flag via the PONG handler's MarkSeen-on-latency
// side effect.
func (n *Node) runHealthCheck(now time.Time) {
	n.peers.SweepLiveness(now, liveTimeout)

	ping := wire.Ping{Type: wire.TypePing, NodeID: n.id, Timestamp: nowUnix()}
	body := marshalOrNil(ping)
	if body == nil {
		return
	}
	for _, p := range n.peers.List() {
		if err := n.transport.SendUnicast(body, p.IP, n.cfg.MessagePort); err != nil {
			n.log.With("peer", p.ID).Debugf("ping failed: %v", err)
		}
	}
}

// reportToDashboard posts a STATS snapshot, run every 60s when a dashboard
// IP is configured.
func (n *Node) reportToDashboard() {
	peers := n.peers.List()
	snapshots := make([]wire.PeerSnapshot, 0, len(peers))
	for _, p := range peers {
		snapshots = append(snapshots, wire.PeerSnapshot{
			ID:        p.ID,
			Name:      p.Name,
			IP:        p.IP,
			LastSeen:  float64(p.LastSeen.UnixNano()) / 1e9,
			Latency:   p.LatencyMS,
			Connected: p.Connected,
		})
	}

	counters := n.Stats()
	report := wire.Stats{
		Type:     wire.TypeStats,
		NodeID:   n.id,
		NodeName: n.name,
		Peers:    snapshots,
		Stats: wire.StatsCounters{
			MessagesSent:      counters.MessagesSent,
			MessagesReceived:  counters.MessagesReceived,
			MessagesForwarded: counters.MessagesForwarded,
			UptimeSeconds:     counters.UptimeSeconds,
		},
		Timestamp: nowUnix(),
	}

	body, err := json.Marshal(report)
	if err != nil {
		n.log.Errorf("marshal dashboard report: %v", err)
		return
	}
	if err := n.transport.PostToDashboard(n.cfg.DashboardIP, body); err != nil {
		n.log.Debugf("dashboard post failed: %v", err)
	}
}
