package hub

import (
	"sync"

	"golang.org/x/time/rate"
)

// IPThrottle bounds how fast a single remote address may open new
// connections, grounded on the teacher's Hub.CanAcceptConnection /
// TrackIPConnection pair in internal/websocket/hub.go — generalized from a
// fixed open-connection counter to a token-bucket per IP, using the same
// rate.Limiter the teacher reaches for in internal/llm's outbound clients.
type IPThrottle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

// NewIPThrottle builds a throttle allowing r connects/second per IP, with
// burst allowed before limiting kicks in.
func NewIPThrottle(r rate.Limit, burst int) *IPThrottle {
	return &IPThrottle{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		burst:    burst,
	}
}

// Allow reports whether ip may open another connection right now,
// consuming a token if so.
func (t *IPThrottle) Allow(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	lim, ok := t.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(t.r, t.burst)
		t.limiters[ip] = lim
	}
	return lim.Allow()
}
