// Package router implements hop-by-hop message routing: next-hop
// selection, loop suppression, hop-limit enforcement, and flood fallback.
// It is grounded on original_source/devices/message_router.py, restructured
// the way device/send.go and device/receive.go separate the outbound and
// inbound flows. The router, transport, and node orchestrator would
// otherwise form a cyclic import if wired directly together, so the router
// only ever sees the narrow capabilities it needs — a peer lookup and a
// send callback — never the full orchestrator.
package router

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nexlattice/node/logging"
	"github.com/nexlattice/node/peertable"
	"github.com/nexlattice/node/wire"
)

const defaultMaxHops = 5

// PeerLookup is the narrow peer-table surface the router needs. It is
// satisfied directly by *peertable.Table.
type PeerLookup interface {
	DirectPeer(id string) (peertable.Peer, bool)
	Get(id string) (peertable.Peer, bool)
	ConnectedPeers() []peertable.Peer
	SetHopDistance(id string, hops int)
}

// Sender is the narrow transport surface the router needs: best-effort
// unicast to a specific address. Flooding is expressed as repeated calls to
// this, not a single link-layer broadcast, matching
// message_router.py's _flood_message (which unicasts to every connected
// peer's IP individually, as distinct from network_manager.py's
// broadcast_discovery which is a true subnet broadcast used only for
// discovery).
type Sender interface {
	SendUnicast(payload []byte, ip string, port int) error
}

// Router is the C3 Message Router.
type Router struct {
	ownID   string
	peers   PeerLookup
	sender  Sender
	log     logging.Logger
	maxHops int

	mu     sync.Mutex
	cache  map[string]time.Time
	routes map[string]RouteEntry
}

// Option configures a Router at construction.
type Option func(*Router)

// WithMaxHops overrides the default max-hops limit of 5.
func WithMaxHops(n int) Option {
	return func(r *Router) { r.maxHops = n }
}

// New builds a Router for ownID.
func New(ownID string, peers PeerLookup, sender Sender, log logging.Logger, opts ...Option) *Router {
	r := &Router{
		ownID:   ownID,
		peers:   peers,
		sender:  sender,
		log:     log,
		maxHops: defaultMaxHops,
		cache:   make(map[string]time.Time),
		routes:  make(map[string]RouteEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route sends a message this node originated (hop_count is whatever the
// caller set, normally 0). It applies the same next-hop selection order as
// Forward but never touches hop count or the loop-suppression cache beyond
// what flooding requires.
func (r *Router) Route(msg *wire.Data) error {
	if msg.MsgID == "" {
		msg.MsgID = deriveMsgID(msg.Source, msg.Timestamp)
	}
	return r.selectAndSend(msg)
}

// Forward handles a datagram whose destination is not this node: dedupe by
// msg_id, enforce the hop limit, bump hop count and the source's believed
// hop distance, cache, then route onward. It reports whether the message
// was actually forwarded.
func (r *Router) Forward(msg *wire.Data) (bool, error) {
	if msg.MsgID == "" {
		msg.MsgID = deriveMsgID(msg.Source, msg.Timestamp)
	}

	if r.seen(msg.MsgID) {
		return false, ErrLoopDetected
	}

	if msg.HopCount >= r.maxHops {
		r.log.Infof("max hops reached for message %s", msg.MsgID)
		return false, ErrHopLimitExceeded
	}

	newHopDistance := msg.HopCount + 1
	msg.HopCount = newHopDistance
	if msg.Source != "" {
		r.peers.SetHopDistance(msg.Source, newHopDistance)
	}

	r.remember(msg.MsgID, time.Now())

	if err := r.selectAndSend(msg); err != nil {
		return false, err
	}
	return true, nil
}

// selectAndSend implements the route selection order common to origination
// and forwarding:
//  1. destination is a connected direct peer -> unicast to it
//  2. the route table has an entry whose next hop is a known peer -> unicast there
//  3. otherwise flood to every connected peer
func (r *Router) selectAndSend(msg *wire.Data) error {
	if peer, ok := r.peers.DirectPeer(msg.Dest); ok {
		return r.sendTo(msg, peer.IP, peer.Port)
	}

	if route, ok := r.RouteFor(msg.Dest); ok {
		if peer, ok := r.peers.Get(route.NextHop); ok {
			return r.sendTo(msg, peer.IP, peer.Port)
		}
	}

	r.log.Infof("no direct route to %s, flooding", msg.Dest)
	msg.Flooded = true
	return r.flood(msg)
}

func (r *Router) sendTo(msg *wire.Data, ip string, port int) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("router: marshal message: %w", err)
	}
	return r.sender.SendUnicast(body, ip, port)
}

// flood sends msg to every currently connected peer, as a last resort. At
// least one successful send counts as overall success, matching
// _flood_message's "success_count > 0".
func (r *Router) flood(msg *wire.Data) error {
	r.remember(msg.MsgID, time.Now())

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("router: marshal message: %w", err)
	}

	var sent int
	for _, peer := range r.peers.ConnectedPeers() {
		if err := r.sender.SendUnicast(body, peer.IP, peer.Port); err == nil {
			sent++
		}
	}
	if sent == 0 {
		return ErrNoRoute
	}
	return nil
}
