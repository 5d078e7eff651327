// Package addrquota throttles connection attempts per client address
// block, so a single host cycling accounts cannot flood the server
// with logins.
package addrquota

import (
	"net"
	"sync"

	"github.com/golang/groupcache/lru"
	"golang.org/x/time/rate"
)

// Quota is an IP-based connection-attempt limiter. Addresses sharing
// the same low-order byte share a token bucket, kept in an LRU cache
// of size maxEntries.
type Quota struct {
	eps   float32    // allowed events per second
	burst int        // bucket size
	mu    sync.Mutex // protects cache
	cache *lru.Cache
}

func NewQuota(eventsPerSecond float32, burst, maxEntries int) *Quota {
	return &Quota{
		eps:   eventsPerSecond,
		burst: burst,
		cache: lru.New(maxEntries),
	}
}

// Blocked reports whether a connection attempt from ip exceeds the
// quota of its address block. Nil addresses are not blocked.
func (q *Quota) Blocked(ip net.IP) bool {
	key := blockKey(ip)
	if key == "" {
		return false
	}
	q.mu.Lock()
	var limiter *rate.Limiter
	if v, ok := q.cache.Get(key); ok {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(rate.Limit(q.eps), q.burst)
		q.cache.Add(key, limiter)
	}
	q.mu.Unlock()
	return !limiter.Allow()
}

func blockKey(ip net.IP) string {
	if ip == nil {
		return ""
	}
	// Zero out the last byte to cover ranges.
	masked := make(net.IP, len(ip))
	copy(masked, ip)
	masked[len(masked)-1] = 0
	return masked.String()
}
