package node

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nexlattice/node/config"
	"github.com/nexlattice/node/logging"
	"github.com/nexlattice/node/wire"
)

func testLogger() logging.Logger { return logging.New(logging.LevelSilent, "") }

type alwaysUp struct{}

func (alwaysUp) WaitConnected(context.Context) error { return nil }

func newTestNode(t *testing.T, nodeID string, discoveryPort, messagePort int) *Node {
	t.Helper()
	cfg := &config.Config{
		NodeID:        nodeID,
		NodeName:      nodeID,
		DiscoveryPort: discoveryPort,
		MessagePort:   messagePort,
		PSK:           config.DefaultPSK,
	}
	n, err := New(cfg, testLogger(), WithLinkChecker(alwaysUp{}))
	if err != nil {
		t.Fatalf("New(%s): %v", nodeID, err)
	}
	return n
}

// TestDirectDeliveryEndToEnd: A sends DATA to a direct peer B; B's
// messages_received increases by exactly one, A's messages_sent by
// exactly one.
func TestDirectDeliveryEndToEnd(t *testing.T) {
	nodeA := newTestNode(t, "a", 25910, 25911)
	nodeB := newTestNode(t, "b", 25912, 25913)

	ctx, cancel := context.WithCancel(context.Background())
	doneA := make(chan struct{})
	doneB := make(chan struct{})
	go func() { nodeA.Run(ctx); close(doneA) }()
	go func() { nodeB.Run(ctx); close(doneB) }()
	defer func() {
		cancel()
		<-doneA
		<-doneB
	}()

	time.Sleep(150 * time.Millisecond)

	nodeA.peers.Upsert("b", "B", "127.0.0.1", 25913, "")

	if err := nodeA.Send("b", "hello mesh", false); err != nil {
		t.Fatalf("Send: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && nodeB.Stats().MessagesReceived == 0 {
		time.Sleep(20 * time.Millisecond)
	}

	if got := nodeA.Stats().MessagesSent; got != 1 {
		t.Errorf("expected A messages_sent=1, got %d", got)
	}
	if got := nodeB.Stats().MessagesReceived; got != 1 {
		t.Errorf("expected B messages_received=1, got %d", got)
	}
}

// TestEncryptedDeliveryRoundTrips checks that a message encrypted under the
// shared PSK on origination reaches the destination and is counted there as
// received; the decrypted payload itself is not inspected.
func TestEncryptedDeliveryRoundTrips(t *testing.T) {
	nodeA := newTestNode(t, "a", 25920, 25921)
	nodeB := newTestNode(t, "b", 25922, 25923)

	ctx, cancel := context.WithCancel(context.Background())
	doneA := make(chan struct{})
	doneB := make(chan struct{})
	go func() { nodeA.Run(ctx); close(doneA) }()
	go func() { nodeB.Run(ctx); close(doneB) }()
	defer func() {
		cancel()
		<-doneA
		<-doneB
	}()

	time.Sleep(150 * time.Millisecond)
	nodeA.peers.Upsert("b", "B", "127.0.0.1", 25923, "")

	if err := nodeA.Send("b", "top secret payload", true); err != nil {
		t.Fatalf("Send: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && nodeB.Stats().MessagesReceived == 0 {
		time.Sleep(20 * time.Millisecond)
	}
	if got := nodeB.Stats().MessagesReceived; got != 1 {
		t.Fatalf("expected B messages_received=1, got %d", got)
	}
}

func TestHandlePongRecordsLatency(t *testing.T) {
	n := newTestNode(t, "a", 0, 0)
	n.peers.Upsert("b", "B", "10.0.0.2", 5001, "fp")

	echoed := nowUnix() - 0.05
	body, err := json.Marshal(wire.Pong{Type: wire.TypePong, NodeID: "b", Timestamp: echoed})
	if err != nil {
		t.Fatal(err)
	}
	n.handlePong(body, "10.0.0.2")

	p, ok := n.peers.Get("b")
	if !ok {
		t.Fatal("peer b missing")
	}
	if p.LatencyMS == nil {
		t.Fatal("expected latency to be recorded")
	}
	if *p.LatencyMS < 30 || *p.LatencyMS > 200 {
		t.Errorf("expected latency roughly 50ms, got %f", *p.LatencyMS)
	}
}

func TestHandleUnknownTypeIncrementsCounter(t *testing.T) {
	n := newTestNode(t, "a", 0, 0)
	n.handleDatagram([]byte(`{"type":"BOGUS","node_id":"x","timestamp":1.0}`), "10.0.0.9")
	if n.stats.unknownTypes.Load() != 1 {
		t.Errorf("expected unknown-type counter to increment")
	}
}

func TestHandleUndecodableDatagramIncrementsCounter(t *testing.T) {
	n := newTestNode(t, "a", 0, 0)
	n.handleDatagram([]byte(`not json at all`), "10.0.0.9")
	if n.stats.decodeErrors.Load() != 1 {
		t.Errorf("expected decode-error counter to increment")
	}
}

func TestHandleDiscoveryUpsertsPeer(t *testing.T) {
	n := newTestNode(t, "a", 0, 0)
	msg := wire.Discovery{
		Type:      wire.TypeDiscovery,
		NodeID:    "b",
		NodeName:  "B",
		PublicKey: "fp",
		Timestamp: nowUnix(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	n.handleDiscovery(body, "10.0.0.2", true)

	p, ok := n.peers.Get("b")
	if !ok {
		t.Fatal("expected peer b to be upserted")
	}
	if p.IP != "10.0.0.2" || p.Name != "B" {
		t.Errorf("unexpected peer record: %+v", p)
	}
}

func TestOwnIdentityNeverEntersPeerTable(t *testing.T) {
	n := newTestNode(t, "a", 0, 0)
	msg := wire.Discovery{Type: wire.TypeDiscovery, NodeID: "a", NodeName: "A", Timestamp: nowUnix()}
	body, _ := json.Marshal(msg)
	n.handleDiscovery(body, "10.0.0.1", true)

	if _, ok := n.peers.Get("a"); ok {
		t.Error("own node_id must never appear in the peer table")
	}
}
