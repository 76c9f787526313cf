// Package workerpool provides a bounded pool of goroutines with an unbounded
// FIFO backlog and a two-phase shutdown (drain, then cancel).
//
// Submit never blocks, so it may be called while holding a lock. Queued work
// waits on a weighted semaphore without occupying a slot; waiters are admitted
// in submission order.
//
// # Shutdown
//
// Close stops accepting work and waits for running and queued tasks up to a
// grace period. When the grace period expires the pool context is cancelled:
// running tasks observe ctx.Done() and queued tasks are invoked with the
// already-cancelled context so they can resolve their bookkeeping without
// doing real work. Every submitted task is invoked exactly once.
package workerpool
