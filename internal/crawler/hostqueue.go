package crawler

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nao1215/webcrawler/internal/workerpool"
)

// queuedDownload is one URL waiting for a slot, bound to the session that
// scheduled it.
type queuedDownload struct {
	session *session
	url     string
}

// hostQueue admits downloads for a single host in arrival order, keeping at
// most limit of them in flight. It is shared by every session of an engine.
type hostQueue struct {
	host  string
	limit int
	pool  *workerpool.Pool

	// mu guards pending and free. It is held only while moving work between
	// the backlog and the download pool, never during a download.
	mu      sync.Mutex
	pending []queuedDownload
	free    int

	// pins counts admissions looked up in the registry but not added yet.
	// It is changed under the registry lock, never under mu.
	pins atomic.Int32
}

// newHostQueue creates a queue with limit free slots.
func newHostQueue(host string, limit int, pool *workerpool.Pool) *hostQueue {
	return &hostQueue{
		host:  host,
		limit: limit,
		pool:  pool,
		free:  limit,
	}
}

// add enqueues a download of rawURL for s and starts it if a slot is free.
// The session's outstanding counter must already account for it; the queue
// resolves it exactly once when the download finishes or is abandoned.
func (q *hostQueue) add(s *session, rawURL string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append(q.pending, queuedDownload{session: s, url: rawURL})
	q.dispatchLocked()
}

// pin marks an admission in progress so the queue does not look idle.
func (q *hostQueue) pin() {
	q.pins.Add(1)
}

// addPinned is add for an admission that called pin first.
func (q *hostQueue) addPinned(s *session, rawURL string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append(q.pending, queuedDownload{session: s, url: rawURL})
	q.pins.Add(-1)
	q.dispatchLocked()
}

// dispatchLocked moves pending downloads onto the pool while slots are free.
func (q *hostQueue) dispatchLocked() {
	for q.free > 0 && len(q.pending) > 0 {
		next := q.pending[0]
		q.pending[0] = queuedDownload{}
		q.pending = q.pending[1:]
		if len(q.pending) == 0 {
			q.pending = nil
		}
		q.free--

		q.pool.Submit(func(ctx context.Context) {
			defer next.session.resolve()
			defer q.release()
			next.session.fetch(ctx, next.url)
		})
	}
}

// release returns a slot and admits the next pending download.
func (q *hostQueue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.free++
	q.dispatchLocked()
}

// idle reports whether the queue has nothing running and nothing pending.
func (q *hostQueue) idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.free == q.limit && len(q.pending) == 0 && q.pins.Load() == 0
}

// stats returns the number of running and pending downloads.
func (q *hostQueue) stats() (running, pending int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.limit - q.free, len(q.pending)
}
