package fetch

import (
	"context"
	"math"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// hostLimiter paces requests per host with one token bucket per host.
type hostLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// newHostLimiter allows perSecond requests per second to each host. It
// returns nil when perSecond is not positive.
func newHostLimiter(perSecond float64) *hostLimiter {
	if perSecond <= 0 {
		return nil
	}
	return &hostLimiter{
		limit:    rate.Limit(perSecond),
		burst:    max(1, int(math.Ceil(perSecond))),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to host may start or ctx is done.
func (l *hostLimiter) Wait(ctx context.Context, host string) error {
	if l == nil || host == "" {
		return nil
	}
	return l.limiterFor(strings.ToLower(host)).Wait(ctx)
}

func (l *hostLimiter) limiterFor(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[host] = limiter
	}
	return limiter
}
