package router

import (
	"strconv"
	"time"
)

const cacheTTL = 60 * time.Second

// deriveMsgID reproduces the spec's msg_id formula: source || "_" ||
// timestamp_at_origin. Timestamps are formatted with the shortest
// round-trippable representation so the same (source, timestamp) pair
// always yields the same id regardless of which node computes it.
func deriveMsgID(source string, timestamp float64) string {
	return source + "_" + strconv.FormatFloat(timestamp, 'f', -1, 64)
}

// seen reports whether msgID is present in the loop-suppression cache.
func (r *Router) seen(msgID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cache[msgID]
	return ok
}

// remember inserts msgID into the cache and opportunistically purges
// anything past its TTL on the same pass, so the cache never needs its own
// background sweeper and never grows unbounded under steady traffic.
func (r *Router) remember(msgID string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[msgID] = now
	for id, insertedAt := range r.cache {
		if now.Sub(insertedAt) >= cacheTTL {
			delete(r.cache, id)
		}
	}
}

// CacheSize reports how many message ids are currently cached, for tests
// and diagnostics.
func (r *Router) CacheSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}
