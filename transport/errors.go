package transport

import "errors"

// ErrTransport wraps a transient socket send/recv failure. The policy for
// every caller is the same: log and keep running — UDP is best-effort.
var ErrTransport = errors.New("transport: send/receive failed")
