package router

import "time"

// RouteEntry is one destination's best known next hop.
type RouteEntry struct {
	NextHop     string
	Metric      int
	HopDistance int
	UpdatedAt   time.Time
}

// UpdateRoute installs an entry for dest iff none exists yet or metric is
// strictly smaller than the current entry's, the same relaxation rule a
// distance-vector protocol uses to converge without looping. On success it
// also pushes the hop distance into the peer table so the two stay in
// lockstep, matching update_routing_table's call into
// update_peer_hop_distance in the original.
func (r *Router) UpdateRoute(dest, nextHop string, metric, hopDistance int) bool {
	r.mu.Lock()
	current, exists := r.routes[dest]
	if exists && metric >= current.Metric {
		r.mu.Unlock()
		return false
	}
	r.routes[dest] = RouteEntry{
		NextHop:     nextHop,
		Metric:      metric,
		HopDistance: hopDistance,
		UpdatedAt:   time.Now(),
	}
	r.mu.Unlock()

	r.peers.SetHopDistance(dest, hopDistance)
	r.log.Infof("route updated: %s via %s (metric=%d hops=%d)", dest, nextHop, metric, hopDistance)
	return true
}

// RouteFor returns the current best route to dest, if any.
func (r *Router) RouteFor(dest string) (RouteEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.routes[dest]
	return entry, ok
}

// RouteCount reports how many destinations have a route table entry.
func (r *Router) RouteCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.routes)
}
