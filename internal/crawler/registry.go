package crawler

import (
	"log/slog"
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/nao1215/webcrawler/internal/workerpool"
)

// registry maps host names to their admission queues. Queues are created on
// first use.
//
// With maxHosts <= 0 queues are never removed, so memory grows with the number
// of distinct hosts seen over the engine's lifetime. With maxHosts > 0 the
// least recently used idle queue is dropped when a new host arrives at the
// bound. A queue with running or pending downloads is never dropped; if every
// tracked queue is busy the registry grows past the bound.
type registry struct {
	perHost  int
	pool     *workerpool.Pool
	logger   *slog.Logger
	maxHosts int

	mu     sync.Mutex
	queues map[string]*hostQueue

	// recent orders queues by last use when maxHosts > 0. Its own capacity is
	// effectively unlimited; the bound is applied in evictIdleLocked.
	recent *lru.Cache
}

// newRegistry creates a registry whose queues submit work to pool.
func newRegistry(perHost, maxHosts int, pool *workerpool.Pool, logger *slog.Logger) (*registry, error) {
	r := &registry{
		perHost:  perHost,
		pool:     pool,
		logger:   logger,
		maxHosts: maxHosts,
	}
	if maxHosts <= 0 {
		r.queues = make(map[string]*hostQueue)
		return r, nil
	}

	recent, err := lru.New(math.MaxInt32)
	if err != nil {
		return nil, err
	}
	r.recent = recent
	return r, nil
}

// admit hands rawURL to the queue for host on behalf of s.
func (r *registry) admit(host string, s *session, rawURL string) {
	if r.recent == nil {
		r.mu.Lock()
		q, ok := r.queues[host]
		if !ok {
			q = newHostQueue(host, r.perHost, r.pool)
			r.queues[host] = q
		}
		r.mu.Unlock()

		q.add(s, rawURL)
		return
	}

	// A pinned queue is not idle, so it cannot be evicted between the lookup
	// here and addPinned below, which runs outside the registry lock.
	r.mu.Lock()
	var q *hostQueue
	if v, ok := r.recent.Get(host); ok {
		q = v.(*hostQueue) //nolint:forcetypeassert // only *hostQueue is stored
	} else {
		r.evictIdleLocked()
		q = newHostQueue(host, r.perHost, r.pool)
		r.recent.Add(host, q)
	}
	q.pin()
	r.mu.Unlock()

	q.addPinned(s, rawURL)
}

// evictIdleLocked drops least recently used idle queues until there is room
// for one more host.
func (r *registry) evictIdleLocked() {
	for r.recent.Len() >= r.maxHosts {
		evicted := false
		for _, key := range r.recent.Keys() {
			v, ok := r.recent.Peek(key)
			if !ok {
				continue
			}
			if v.(*hostQueue).idle() { //nolint:forcetypeassert // only *hostQueue is stored
				r.recent.Remove(key)
				r.logger.Debug("evicted idle host queue", "host", key)
				evicted = true
				break
			}
		}
		if !evicted {
			r.logger.Debug("all tracked hosts busy, growing host registry",
				"hosts", r.recent.Len(),
				"maxHosts", r.maxHosts,
			)
			return
		}
	}
}

// lookup returns the queue for host without creating it.
func (r *registry) lookup(host string) (*hostQueue, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recent == nil {
		q, ok := r.queues[host]
		return q, ok
	}
	v, ok := r.recent.Peek(host)
	if !ok {
		return nil, false
	}
	return v.(*hostQueue), true //nolint:forcetypeassert // only *hostQueue is stored
}

// size returns the number of tracked hosts.
func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recent == nil {
		return len(r.queues)
	}
	return r.recent.Len()
}
