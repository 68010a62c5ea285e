package node

import (
	"encoding/json"

	"github.com/nexlattice/node/crypto"
	"github.com/nexlattice/node/wire"
)

// handleDatagram is the single entry point both listeners call. Datagrams
// that are not valid JSON are dropped with a counter bump; everything else
// is dispatched on its "type" field through a switch rather than a map of
// closures — that keeps each handler's signature visible at the call site
// and needs no init-time registration.
func (n *Node) handleDatagram(datagram []byte, sourceIP string) {
	var env wire.Envelope
	if err := json.Unmarshal(datagram, &env); err != nil {
		n.stats.incDecodeErr()
		n.log.Debugf("dropping undecodable datagram from %s: %v", sourceIP, err)
		return
	}

	switch env.Type {
	case wire.TypeDiscovery:
		n.handleDiscovery(datagram, sourceIP, true)
	case wire.TypeDiscoveryResponse:
		n.handleDiscovery(datagram, sourceIP, false)
	case wire.TypeKeyExchange:
		n.handleKeyExchange(datagram, sourceIP)
	case wire.TypeData:
		n.handleData(datagram, sourceIP)
	case wire.TypePing:
		n.handlePing(datagram, sourceIP)
	case wire.TypePong:
		n.handlePong(datagram, sourceIP)
	default:
		n.stats.incUnknown()
		n.log.Debugf("dropping unknown message type %q from %s", env.Type, sourceIP)
	}
}

// handleDiscovery covers both DISCOVERY and DISCOVERY_RESPONSE, which share
// a wire shape and an upsert action; only DISCOVERY gets a reply. The
// peer's recorded port is always the node's own configured message port:
// every node in a deployment listens on the same message port, and the
// wire format carries no per-peer port field.
func (n *Node) handleDiscovery(datagram []byte, sourceIP string, reply bool) {
	var msg wire.Discovery
	if err := json.Unmarshal(datagram, &msg); err != nil {
		n.stats.incDecodeErr()
		return
	}
	if msg.NodeID == "" || msg.NodeID == n.id {
		return
	}

	fingerprint := msg.PublicKey
	if fingerprint != "" {
		if _, err := crypto.KeyFromHex(fingerprint); err != nil {
			n.log.With("peer", msg.NodeID).Debugf("malformed public key fingerprint, ignoring it: %v", err)
			fingerprint = ""
		}
	}
	n.peers.Upsert(msg.NodeID, msg.NodeName, sourceIP, n.cfg.MessagePort, fingerprint)

	if !reply {
		return
	}

	response := wire.Discovery{
		Type:      wire.TypeDiscoveryResponse,
		NodeID:    n.id,
		NodeName:  n.name,
		PublicKey: n.crypto.PublicFingerprint(),
		Timestamp: nowUnix(),
	}
	body := marshalOrNil(response)
	if body == nil {
		return
	}
	if err := n.transport.SendUnicast(body, sourceIP, n.cfg.MessagePort); err != nil {
		n.log.With("peer", msg.NodeID).Debugf("discovery response failed: %v", err)
	}
}

// handleKeyExchange derives a session key from unauthenticated peer data.
// An on-path attacker can force the resulting session key by supplying
// their own session_key material; this is preserved for wire compatibility
// with the rest of the deployment (see crypto.Manager.EstablishSession).
func (n *Node) handleKeyExchange(datagram []byte, sourceIP string) {
	var msg wire.KeyExchange
	if err := json.Unmarshal(datagram, &msg); err != nil {
		n.stats.incDecodeErr()
		return
	}
	if msg.NodeID == "" || msg.NodeID == n.id {
		return
	}
	n.crypto.EstablishSession(msg.NodeID, msg.SessionKey)
	n.peers.SetSessionEstablished(msg.NodeID)
	n.log.With("peer", msg.NodeID).Debug("session established")
}

// handleData delivers a message addressed to this node, or forwards it
// onward when it's merely passing through.
func (n *Node) handleData(datagram []byte, sourceIP string) {
	var msg wire.Data
	if err := json.Unmarshal(datagram, &msg); err != nil {
		n.stats.incDecodeErr()
		return
	}

	if msg.Dest == n.id {
		n.stats.incReceived()
		if msg.Encrypted {
			plaintext, err := n.crypto.Decrypt(msg.Payload, msg.Source)
			if err != nil {
				n.log.With("peer", msg.Source).Errorf("decrypt payload: %v", err)
				return
			}
			n.log.With("peer", msg.Source).Debugf("delivered %d bytes", len(plaintext))
		}
		return
	}

	ok, err := n.router.Forward(&msg)
	if err != nil {
		n.log.Debugf("forward %s->%s dropped: %v", msg.Source, msg.Dest, err)
		return
	}
	if ok {
		n.stats.incForwarded()
	}
}

// handlePing replies PONG, echoing the PING's own timestamp so the sender
// can measure round-trip latency against the time it actually sent.
func (n *Node) handlePing(datagram []byte, sourceIP string) {
	var msg wire.Ping
	if err := json.Unmarshal(datagram, &msg); err != nil {
		n.stats.incDecodeErr()
		return
	}
	pong := wire.Pong{Type: wire.TypePong, NodeID: n.id, Timestamp: msg.Timestamp}
	body := marshalOrNil(pong)
	if body == nil {
		return
	}
	if err := n.transport.SendUnicast(body, sourceIP, n.cfg.MessagePort); err != nil {
		n.log.With("peer", sourceIP).Debugf("pong failed: %v", err)
	}
}

// handlePong records the sender's round-trip latency and marks it seen.
func (n *Node) handlePong(datagram []byte, sourceIP string) {
	var msg wire.Pong
	if err := json.Unmarshal(datagram, &msg); err != nil {
		n.stats.incDecodeErr()
		return
	}
	if msg.NodeID == "" || msg.NodeID == n.id {
		return
	}
	latencyMS := (nowUnix() - msg.Timestamp) * 1000
	n.peers.SetLatency(msg.NodeID, latencyMS)
}
