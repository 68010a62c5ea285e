package node

import (
	"context"
	"errors"
	"net"
	"time"
)

// ErrLinkUnavailable is returned when the network link did not come up
// within the startup timeout. Go on a workstation or embedded Linux target
// has no network.WLAN.connect() step the process itself drives, so "Wi-Fi
// readiness" is modeled as a pluggable check instead of a real association
// handshake.
var ErrLinkUnavailable = errors.New("node: network link not ready")

// LinkChecker reports when the node's network link is usable. WaitConnected
// blocks (respecting ctx) until the link is ready or ctx is done.
type LinkChecker interface {
	WaitConnected(ctx context.Context) error
}

// defaultLinkChecker treats "has a non-loopback IPv4 address" as connected,
// polling like network_manager.py's connect_wifi loop which sleeps and
// rechecks wlan.isconnected().
type defaultLinkChecker struct {
	pollInterval time.Duration
}

func newDefaultLinkChecker() *defaultLinkChecker {
	return &defaultLinkChecker{pollInterval: 200 * time.Millisecond}
}

func (c *defaultLinkChecker) WaitConnected(ctx context.Context) error {
	if hasNonLoopbackIPv4() {
		return nil
	}
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ErrLinkUnavailable
		case <-ticker.C:
			if hasNonLoopbackIPv4() {
				return nil
			}
		}
	}
}

func hasNonLoopbackIPv4() bool {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return false
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ipNet.IP.To4() != nil {
			return true
		}
	}
	return false
}
