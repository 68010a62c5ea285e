package transport

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nexlattice/node/logging"
)

func testLogger() logging.Logger { return logging.New(logging.LevelSilent, "") }

func TestUnicastRoundTripOverLoopback(t *testing.T) {
	tr := New(0, 15990, 0, testLogger())

	var mu sync.Mutex
	var received []byte
	done := make(chan struct{}, 1)

	handler := func(datagram []byte, sourceIP string) {
		mu.Lock()
		received = append([]byte(nil), datagram...)
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
	}

	discoveryTr := New(15980, 0, 0, testLogger())
	if err := discoveryTr.Start(func([]byte, string) {}, func([]byte, string) {}); err != nil {
		t.Fatalf("discoveryTr.Start: %v", err)
	}
	defer discoveryTr.Stop()

	if err := tr.Start(func([]byte, string) {}, handler); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tr.Stop()

	payload := []byte(`{"type":"ping"}`)
	if err := tr.SendUnicast(payload, "127.0.0.1", 15990); err != nil {
		t.Fatalf("SendUnicast: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram")
	}

	mu.Lock()
	defer mu.Unlock()
	if string(received) != string(payload) {
		t.Errorf("expected %q, got %q", payload, received)
	}
}

func TestSubnetBroadcastIPIsDottedQuad(t *testing.T) {
	// subnetBroadcastIP always returns a well-formed IPv4 string, whether
	// derived from a real interface or the limited-broadcast fallback.
	ip := subnetBroadcastIP()
	if strings.Count(ip, ".") != 3 {
		t.Errorf("expected dotted-quad, got %q", ip)
	}
}

func TestSubnetBroadcastIPEndsInAllOnesOctet(t *testing.T) {
	ip := subnetBroadcastIP()
	if !strings.HasSuffix(ip, ".255") {
		t.Errorf("expected last octet 255, got %q", ip)
	}
}
