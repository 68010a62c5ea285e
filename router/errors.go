package router

import "errors"

// ErrNoRoute names the condition the route-selection order falls through
// on: the destination is not a direct peer and no route-table entry exists,
// so Route/Forward flood to every connected peer instead. It only
// surfaces to the caller if that flood also fails outright — zero
// connected peers accepted the send.
var ErrNoRoute = errors.New("router: no route to destination")

// ErrHopLimitExceeded is returned (and never cached) when a forwarded
// message has already reached max hops.
var ErrHopLimitExceeded = errors.New("router: hop limit exceeded")

// ErrLoopDetected is returned when a message's msg_id is already present in
// the loop-suppression cache.
var ErrLoopDetected = errors.New("router: loop detected (duplicate msg_id)")
