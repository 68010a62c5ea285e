// Package wire defines the on-the-wire JSON message shapes exchanged
// between NexLattice nodes, and the small set of peer-info fields that ride
// inside a STATS report.
package wire

// Type values recognized in the "type" field of every datagram.
const (
	TypeDiscovery         = "DISCOVERY"
	TypeDiscoveryResponse = "DISCOVERY_RESPONSE"
	TypeKeyExchange       = "KEY_EXCHANGE"
	TypeData              = "DATA"
	TypePing              = "PING"
	TypePong              = "PONG"
	TypeStats             = "STATS"
)

// Envelope is the minimal shape needed to read "type" before dispatching to
// a type-specific struct. Every concrete message embeds the same two common
// fields (node_id, timestamp) per spec.
type Envelope struct {
	Type      string  `json:"type"`
	NodeID    string  `json:"node_id"`
	Timestamp float64 `json:"timestamp"`
}

// Discovery covers both DISCOVERY and DISCOVERY_RESPONSE, which share a
// wire shape.
type Discovery struct {
	Type      string  `json:"type"`
	NodeID    string  `json:"node_id"`
	NodeName  string  `json:"node_name"`
	PublicKey string  `json:"public_key"`
	Timestamp float64 `json:"timestamp"`
}

// KeyExchange carries opaque session key material used to derive a shared
// secret; the receiver never validates its authenticity (see crypto's
// EstablishSession doc comment).
type KeyExchange struct {
	Type       string  `json:"type"`
	NodeID     string  `json:"node_id"`
	SessionKey string  `json:"session_key"`
	Timestamp  float64 `json:"timestamp"`
}

// Data is an application payload in flight, originated or forwarded.
type Data struct {
	Type      string   `json:"type"`
	NodeID    string   `json:"node_id"`
	Source    string   `json:"source"`
	Dest      string   `json:"destination"`
	Payload   string   `json:"payload"`
	Encrypted bool     `json:"encrypted"`
	HopCount  int      `json:"hop_count"`
	MsgID     string   `json:"msg_id,omitempty"`
	Path      []string `json:"path,omitempty"`
	Flooded   bool     `json:"flooded,omitempty"`
	Timestamp float64  `json:"timestamp"`
}

// Ping and Pong share a shape: just sender identity and a timestamp, the
// latter of which Pong echoes back from the originating Ping.
type Ping struct {
	Type      string  `json:"type"`
	NodeID    string  `json:"node_id"`
	Timestamp float64 `json:"timestamp"`
}

type Pong struct {
	Type      string  `json:"type"`
	NodeID    string  `json:"node_id"`
	Timestamp float64 `json:"timestamp"`
}

// PeerSnapshot is one entry of the "peers" array inside a Stats report.
type PeerSnapshot struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	IP        string   `json:"ip"`
	LastSeen  float64  `json:"last_seen"`
	Latency   *float64 `json:"latency"`
	Connected bool     `json:"connected"`
}

// StatsCounters mirrors the node's four monotonic counters.
type StatsCounters struct {
	MessagesSent      uint64 `json:"messages_sent"`
	MessagesReceived  uint64 `json:"messages_received"`
	MessagesForwarded uint64 `json:"messages_forwarded"`
	UptimeSeconds     uint64 `json:"uptime_seconds"`
}

// Stats is the periodic report posted to the dashboard.
type Stats struct {
	Type      string         `json:"type"`
	NodeID    string         `json:"node_id"`
	NodeName  string         `json:"node_name"`
	Peers     []PeerSnapshot `json:"peers"`
	Stats     StatsCounters  `json:"stats"`
	Timestamp float64        `json:"timestamp"`
}
