// Package node implements the C5 Node Orchestrator: it wires the crypto
// envelope, peer table, router, and transport together and owns the main
// event loop — inbound dispatch by message kind, periodic discovery/
// liveness/reporting, and stats. It is grounded on device/device.go's
// Device as the "owns everything, narrow interfaces to collaborators"
// pattern, and on original_source/devices/node.py for the dispatch table
// and periodic-task cadence this package reproduces.
package node

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nexlattice/node/config"
	"github.com/nexlattice/node/crypto"
	"github.com/nexlattice/node/logging"
	"github.com/nexlattice/node/peertable"
	"github.com/nexlattice/node/router"
	"github.com/nexlattice/node/transport"
	"github.com/nexlattice/node/wire"
)

const (
	discoveryInterval = 30 * time.Second
	healthInterval    = 10 * time.Second
	dashboardInterval = 60 * time.Second
	loopInterval      = 100 * time.Millisecond
	liveTimeout       = 60 * time.Second
	wifiTimeout       = 10 * time.Second
)

// Node is the C5 Node Orchestrator.
type Node struct {
	id   string
	name string
	log  logging.Logger
	cfg  *config.Config

	crypto    *crypto.Manager
	peers     *peertable.Table
	router    *router.Router
	transport *transport.Transport
	link      LinkChecker

	stats     Stats
	startTime time.Time

	running atomic.Bool
	stopCh  chan struct{}
}

// Option configures a Node at construction time.
type Option func(*Node)

// WithLinkChecker overrides the default "has a non-loopback IPv4" link
// readiness check, primarily for tests that want to skip the real wait.
func WithLinkChecker(l LinkChecker) Option {
	return func(n *Node) { n.link = l }
}

// WithMaxHops overrides the router's default max-hops limit of 5.
func WithMaxHops(hops int) Option {
	return func(n *Node) {
		n.router = router.New(n.id, n.peers, n.transport, n.log, router.WithMaxHops(hops))
	}
}

// New builds a Node from a validated configuration. Sockets are not opened
// until Run.
func New(cfg *config.Config, log logging.Logger, opts ...Option) (*Node, error) {
	cryptoMgr, err := crypto.NewManager(cfg.NodeID, log, crypto.WithPSK(cfg.PSK))
	if err != nil {
		return nil, fmt.Errorf("node: init crypto: %w", err)
	}

	peers := peertable.New(cfg.NodeID)
	tr := transport.New(cfg.DiscoveryPort, cfg.MessagePort, cfg.DashboardPort, log)

	n := &Node{
		id:        cfg.NodeID,
		name:      cfg.NodeName,
		log:       log,
		cfg:       cfg,
		crypto:    cryptoMgr,
		peers:     peers,
		transport: tr,
		link:      newDefaultLinkChecker(),
	}
	n.router = router.New(n.id, peers, tr, log)

	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Run activates the network link, starts both listeners, and runs the main
// loop until ctx is canceled or Stop is called. It returns ErrLinkUnavailable
// if the link does not come up within 10s.
func (n *Node) Run(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, wifiTimeout)
	err := n.link.WaitConnected(waitCtx)
	cancel()
	if err != nil {
		return ErrLinkUnavailable
	}

	if err := n.transport.Start(n.handleDatagram, n.handleDatagram); err != nil {
		return fmt.Errorf("node: start transport: %w", err)
	}

	n.startTime = time.Now()
	n.stopCh = make(chan struct{})
	n.running.Store(true)
	n.log.Infof("node %s (%s) running", n.id, n.name)

	n.runLoop(ctx)
	return nil
}

// runLoop is the periodic-task scheduler: a single ticker at loopInterval
// checked against three independent "due since" timestamps. This avoids
// three separate tickers racing on the node's shared state while still
// keeping each cadence's firing time within a second of its target.
func (n *Node) runLoop(ctx context.Context) {
	ticker := time.NewTicker(loopInterval)
	defer ticker.Stop()

	lastDiscovery := time.Time{}
	lastHealth := time.Time{}
	lastDashboard := time.Time{}

	n.broadcastDiscovery()
	lastDiscovery = time.Now()

	for {
		select {
		case <-ctx.Done():
			n.Stop()
			return
		case <-n.stopCh:
			return
		case now := <-ticker.C:
			if now.Sub(lastDiscovery) >= discoveryInterval {
				n.broadcastDiscovery()
				lastDiscovery = now
			}
			if now.Sub(lastHealth) >= healthInterval {
				n.runHealthCheck(now)
				lastHealth = now
			}
			if n.cfg.DashboardIP != "" && now.Sub(lastDashboard) >= dashboardInterval {
				n.reportToDashboard()
				lastDashboard = now
			}
		}
	}
}

// Stop sets the running flag false, closes both sockets, and joins the
// listener workers. Safe to call more than once.
func (n *Node) Stop() {
	if !n.running.CompareAndSwap(true, false) {
		return
	}
	close(n.stopCh)
	n.transport.Stop()
	n.log.Info("node stopped")
}

// Send originates a DATA message addressed to destID. When encrypted is
// true, payload is replaced with its ciphertext under destID's session key
// (or the process PSK if no session is established yet).
func (n *Node) Send(destID, payload string, encrypted bool) error {
	msg := &wire.Data{
		Type:      wire.TypeData,
		NodeID:    n.id,
		Source:    n.id,
		Dest:      destID,
		Payload:   payload,
		Encrypted: encrypted,
		HopCount:  0,
		Timestamp: nowUnix(),
	}

	if encrypted {
		ciphertext, err := n.crypto.Encrypt(payload, destID)
		if err != nil {
			return fmt.Errorf("node: encrypt outgoing payload: %w", err)
		}
		msg.Payload = ciphertext
	}

	if err := n.router.Route(msg); err != nil {
		return fmt.Errorf("node: route outgoing message: %w", err)
	}
	n.stats.incSent()
	return nil
}

// Stats returns a point-in-time snapshot of the node's counters.
func (n *Node) Stats() Counters {
	return n.stats.snapshot(uint64(time.Since(n.startTime).Seconds()))
}

// Peers returns a snapshot of every known peer.
func (n *Node) Peers() []peertable.Peer {
	return n.peers.List()
}

func nowUnix() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

func marshalOrNil(v interface{}) []byte {
	body, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return body
}
