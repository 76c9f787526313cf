package workerpool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultGracePeriod is how long Close waits for submitted tasks before
// cancelling them.
const DefaultGracePeriod = 60 * time.Second

var (
	// ErrInvalidSize is returned by New when the pool size is not positive.
	ErrInvalidSize = errors.New("invalid pool size: must be positive")

	// ErrClosed is the cancellation cause seen by tasks that were rejected
	// because the pool is closed, or cancelled because the grace period expired.
	ErrClosed = errors.New("worker pool closed")
)

// Task is a unit of work executed by the pool.
// Tasks must return promptly once ctx is done.
type Task func(ctx context.Context)

// Pool runs submitted tasks with at most size of them executing concurrently.
type Pool struct {
	// name identifies the pool in log output.
	name string

	size int64
	sem  *semaphore.Weighted

	// ctx is handed to every task. It is cancelled with ErrClosed when the
	// grace period of Close expires.
	ctx    context.Context
	cancel context.CancelCauseFunc

	// rejected is an already-cancelled context given to tasks submitted
	// after Close.
	rejected context.Context

	grace  time.Duration
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	running   atomic.Int64
	waiting   atomic.Int64
	closeOnce sync.Once
}

// Option configures a Pool.
type Option func(*Pool)

// WithName sets the name used in log output.
func WithName(name string) Option {
	return func(p *Pool) {
		p.name = name
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithGracePeriod sets how long Close waits before cancelling remaining work.
// Non-positive values cancel immediately.
func WithGracePeriod(d time.Duration) Option {
	return func(p *Pool) {
		p.grace = d
	}
}

// New creates a pool that runs at most size tasks at once.
func New(size int, opts ...Option) (*Pool, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	rejected, reject := context.WithCancelCause(context.Background())
	reject(ErrClosed)

	p := &Pool{
		name:     "pool",
		size:     int64(size),
		sem:      semaphore.NewWeighted(int64(size)),
		ctx:      ctx,
		cancel:   cancel,
		rejected: rejected,
		grace:    DefaultGracePeriod,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p, nil
}

// Submit schedules task for execution and reports whether it was accepted.
//
// Submit never blocks. A task submitted after Close is still invoked, on its
// own goroutine, with a context already cancelled with ErrClosed.
func (p *Pool) Submit(task Task) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		go task(p.rejected)
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()

	p.waiting.Add(1)
	go p.run(task)
	return true
}

func (p *Pool) run(task Task) {
	defer p.wg.Done()

	err := p.sem.Acquire(p.ctx, 1)
	p.waiting.Add(-1)
	if err != nil {
		// Abandoned while queued: let the task resolve itself.
		task(p.ctx)
		return
	}
	defer p.sem.Release(1)

	p.running.Add(1)
	defer p.running.Add(-1)
	task(p.ctx)
}

// Close stops accepting new tasks, waits up to the grace period for submitted
// tasks to finish, then cancels whatever is left. It is idempotent and safe to
// call concurrently with Submit; concurrent callers return once the first call
// has finished.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		drained := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(drained)
		}()

		timer := time.NewTimer(p.grace)
		defer timer.Stop()

		select {
		case <-drained:
			p.logger.Debug("worker pool drained", "pool", p.name)
		case <-timer.C:
			p.logger.Warn("grace period expired, cancelling remaining tasks",
				"pool", p.name,
				"grace", p.grace,
				"running", p.running.Load(),
				"waiting", p.waiting.Load(),
			)
		}
		p.cancel(ErrClosed)
	})
}

// Size returns the maximum number of concurrently running tasks.
func (p *Pool) Size() int {
	return int(p.size)
}

// Running returns the number of tasks currently executing.
func (p *Pool) Running() int {
	return int(p.running.Load())
}

// Waiting returns the number of accepted tasks waiting for a slot.
func (p *Pool) Waiting() int {
	return int(p.waiting.Load())
}

// Closed reports whether Close has been called.
func (p *Pool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
