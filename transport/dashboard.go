package transport

import (
	"fmt"
	"net"
	"time"
)

// PostToDashboard sends jsonBody to dashboardIP:dashboardPort as a raw
// HTTP/1.1 POST to /api/update_node, matching network_manager.py's
// send_to_dashboard exactly: a bare socket connect, a hand-built request
// line, and the connection closed immediately without reading any
// response. net/http is deliberately not used here — the dashboard is
// fire-and-forget and nothing ever inspects the reply.
func (t *Transport) PostToDashboard(dashboardIP string, jsonBody []byte) error {
	if dashboardIP == "" {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", dashboardIP, t.dashboardPort)
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return fmt.Errorf("%w: dashboard dial: %v", ErrTransport, err)
	}
	defer conn.Close()

	request := fmt.Sprintf(
		"POST /api/update_node HTTP/1.1\r\n"+
			"Host: %s\r\n"+
			"Content-Type: application/json\r\n"+
			"Content-Length: %d\r\n"+
			"Connection: close\r\n"+
			"\r\n%s",
		dashboardIP, len(jsonBody), jsonBody,
	)

	conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write([]byte(request)); err != nil {
		return fmt.Errorf("%w: dashboard write: %v", ErrTransport, err)
	}
	return nil
}
