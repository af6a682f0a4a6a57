package abuse

import (
	"sync"

	"golang.org/x/time/rate"
)

// ConnectFlood rate-limits new TCP connections per source IP, grounded on
// original_source's eBT_RECON temp-ban type for reconnects arriving faster
// than the configured window allows (cbanlist.h).
type ConnectFlood struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	period   rate.Limit
	burst    int
}

// NewConnectFlood builds a tracker admitting burst connects immediately
// and refilling at the given rate thereafter, per source IP.
func NewConnectFlood(every rate.Limit, burst int) *ConnectFlood {
	return &ConnectFlood{
		limiters: make(map[string]*rate.Limiter),
		period:   every,
		burst:    burst,
	}
}

// Allow reports whether ip may connect now, creating its limiter on first
// sight.
func (c *ConnectFlood) Allow(ip string) bool {
	c.mu.Lock()
	l, ok := c.limiters[ip]
	if !ok {
		l = rate.NewLimiter(c.period, c.burst)
		c.limiters[ip] = l
	}
	c.mu.Unlock()
	return l.Allow()
}

// Forget drops the tracked limiter for ip, reclaiming its memory. Nothing
// in the hub calls it, so a limiter is kept for every source IP seen.
func (c *ConnectFlood) Forget(ip string) {
	c.mu.Lock()
	delete(c.limiters, ip)
	c.mu.Unlock()
}
