// Package transport implements NexLattice's two UDP sockets (discovery and
// message) plus the outbound send primitives and the dashboard HTTP
// client. It is grounded on original_source/devices/network_manager.py for
// behavior, and on conn/conn_linux.go's habit of reaching for
// golang.org/x/sys/unix to set raw socket options, and on
// device/device.go's net.starting/net.stopping sync.WaitGroup pattern for
// listener lifecycle.
package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"github.com/nexlattice/node/logging"
)

const (
	DefaultDiscoveryPort = 5000
	DefaultMessagePort   = 5001
	DefaultDashboardPort = 8080

	maxDatagramSize = 2048
	pollInterval    = 100 * time.Millisecond
)

// Handler processes one received datagram. sourceIP is the sender's
// address, without port.
type Handler func(datagram []byte, sourceIP string)

// Transport is the C4 Transport Listener: the discovery and message UDP
// sockets, and the outbound send/broadcast/dashboard-post primitives.
type Transport struct {
	discoveryPort int
	messagePort   int
	dashboardPort int
	log           logging.Logger

	discoveryConn *net.UDPConn
	messagePC     *ipv4.PacketConn

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// New builds a Transport bound to the given ports. Sockets are not opened
// until Start.
func New(discoveryPort, messagePort, dashboardPort int, log logging.Logger) *Transport {
	return &Transport{
		discoveryPort: discoveryPort,
		messagePort:   messagePort,
		dashboardPort: dashboardPort,
		log:           log,
	}
}

func reuseAddrControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

func broadcastControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// Start binds both sockets and launches their listener goroutines, each
// invoking the corresponding handler with (datagram, source_addr) for every
// received packet. It returns once both sockets are bound; listeners run
// until Stop.
func (t *Transport) Start(discoveryHandler, messageHandler Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return nil
	}

	lc := net.ListenConfig{Control: reuseAddrControl}

	discoveryPC, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", t.discoveryPort))
	if err != nil {
		return fmt.Errorf("transport: bind discovery port %d: %w", t.discoveryPort, err)
	}
	t.discoveryConn = discoveryPC.(*net.UDPConn)

	messageConn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: t.messagePort})
	if err != nil {
		t.discoveryConn.Close()
		return fmt.Errorf("transport: bind message port %d: %w", t.messagePort, err)
	}
	// Wrapping in an ipv4.PacketConn lets the message listener see whether
	// each datagram arrived unicast or subnet-broadcast (spec: "Accepts
	// unicast and subnet-directed broadcast datagrams"), by requesting the
	// destination address control message.
	t.messagePC = ipv4.NewPacketConn(messageConn)
	_ = t.messagePC.SetControlMessage(ipv4.FlagDst, true)

	t.stopCh = make(chan struct{})
	t.running = true

	t.wg.Add(2)
	go t.discoveryLoop(discoveryHandler)
	go t.messageLoop(messageHandler)

	t.log.Infof("discovery service started on port %d", t.discoveryPort)
	t.log.Infof("message listener started on port %d", t.messagePort)
	return nil
}

func (t *Transport) discoveryLoop(handler Handler) {
	defer t.wg.Done()
	buf := make([]byte, maxDatagramSize)
	for {
		select {
		case <-t.stopCh:
			return
		default:
		}
		t.discoveryConn.SetReadDeadline(time.Now().Add(pollInterval))
		n, addr, err := t.discoveryConn.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if t.isStopping() {
				return
			}
			t.log.Errorf("discovery listener error: %v", err)
			continue
		}
		datagram := append([]byte(nil), buf[:n]...)
		handler(datagram, addr.IP.String())
	}
}

func (t *Transport) messageLoop(handler Handler) {
	defer t.wg.Done()
	buf := make([]byte, maxDatagramSize)
	for {
		select {
		case <-t.stopCh:
			return
		default:
		}
		t.messagePC.SetReadDeadline(time.Now().Add(pollInterval))
		n, cm, addr, err := t.messagePC.ReadFrom(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if t.isStopping() {
				return
			}
			t.log.Errorf("message listener error: %v", err)
			continue
		}
		if cm != nil && t.log != nil {
			t.log.Debugf("message datagram dst=%s (broadcast=%v)", cm.Dst, cm.Dst != nil && cm.Dst.IsGlobalUnicast() == false)
		}
		udpAddr, _ := addr.(*net.UDPAddr)
		sourceIP := ""
		if udpAddr != nil {
			sourceIP = udpAddr.IP.String()
		}
		datagram := append([]byte(nil), buf[:n]...)
		handler(datagram, sourceIP)
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func (t *Transport) isStopping() bool {
	select {
	case <-t.stopCh:
		return true
	default:
		return false
	}
}

// SendUnicast opens an ephemeral socket, sends payload to ip:port, and
// closes it — wasteful compared to a shared connected socket per peer, but
// it keeps sends simple and independent of listener lifecycle, and UDP send
// volume in a mesh this size never makes the per-call socket churn matter.
func (t *Transport) SendUnicast(payload []byte, ip string, port int) error {
	if port == 0 {
		port = t.messagePort
	}
	conn, err := net.DialTimeout("udp4", fmt.Sprintf("%s:%d", ip, port), 2*time.Second)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer conn.Close()
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

// SendBroadcast sends payload to the subnet broadcast address on the
// message port, with SO_BROADCAST set on the ephemeral send socket.
func (t *Transport) SendBroadcast(payload []byte) error {
	broadcastIP := subnetBroadcastIP()

	dialer := net.Dialer{Control: broadcastControl, Timeout: 2 * time.Second}
	conn, err := dialer.Dial("udp4", fmt.Sprintf("%s:%d", broadcastIP, t.messagePort))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer conn.Close()
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

// Stop shuts both listeners down and closes both sockets. It blocks until
// both listener goroutines have exited.
func (t *Transport) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.stopCh)
	t.mu.Unlock()

	if t.discoveryConn != nil {
		t.discoveryConn.Close()
	}
	if t.messagePC != nil {
		t.messagePC.Close()
	}
	t.wg.Wait()
	t.log.Info("network services stopped")
}
