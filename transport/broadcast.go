package transport

import (
	"net"
	"strings"
)

// localIPv4 returns the first non-loopback IPv4 address bound to any local
// interface, the Go equivalent of MicroPython's wlan.ifconfig()[0].
func localIPv4() (string, bool) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", false
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil {
			continue
		}
		return ip4.String(), true
	}
	return "", false
}

// subnetBroadcastIP computes a.b.c.255 from the local IPv4 address,
// matching network_manager.py's _get_broadcast_ip exactly (a naive
// last-octet replacement, not a proper netmask-based calculation), falling
// back to the limited broadcast address when no local IP is known.
func subnetBroadcastIP() string {
	ip, ok := localIPv4()
	if !ok {
		return "255.255.255.255"
	}
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return "255.255.255.255"
	}
	parts[3] = "255"
	return strings.Join(parts, ".")
}
