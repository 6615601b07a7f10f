// File: internal/recovery/workqueue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Deferred-work queue for follow-up work posted from interrupt/
// completion context, which must never block or allocate. Backed by
// eapache/queue, wrapped with an explicit mutex (eapache/queue.Queue is
// not itself concurrency-safe) and a bounded, drop-oldest-on-overflow
// admission policy since this path is reachable from completion
// callbacks and must never backpressure the hardware.

package recovery

import (
	"sync"

	"github.com/eapache/queue"
)

// WorkFunc is one deferred unit of work: a path-state update, a
// namespace revalidation, an AEN re-arm — anything the completion
// path cannot safely do inline.
type WorkFunc func()

// WorkQueue is a single-consumer FIFO of deferred work, safe to post
// to from any number of completion callbacks concurrently.
type WorkQueue struct {
	mu       sync.Mutex
	q        *queue.Queue
	maxDepth int
	dropped  uint64
	notify   chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

// NewWorkQueue constructs a bounded work queue and starts its single
// worker goroutine.
func NewWorkQueue(maxDepth int) *WorkQueue {
	wq := &WorkQueue{
		q:        queue.New(),
		maxDepth: maxDepth,
		notify:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	go wq.run()
	return wq
}

// Post enqueues fn for asynchronous execution. Never blocks: if the
// queue is at capacity the oldest pending item is dropped to make
// room, and the drop is counted (readable via Dropped) rather than
// silently lost without a trace.
func (wq *WorkQueue) Post(fn WorkFunc) {
	wq.mu.Lock()
	if wq.q.Length() >= wq.maxDepth {
		wq.q.Remove()
		wq.dropped++
	}
	wq.q.Add(fn)
	wq.mu.Unlock()

	select {
	case wq.notify <- struct{}{}:
	default:
	}
}

// Dropped returns the number of items ever dropped for capacity.
func (wq *WorkQueue) Dropped() uint64 {
	wq.mu.Lock()
	defer wq.mu.Unlock()
	return wq.dropped
}

// Close stops the worker goroutine. Pending work is discarded.
func (wq *WorkQueue) Close() {
	wq.stopOnce.Do(func() { close(wq.stop) })
}

func (wq *WorkQueue) run() {
	for {
		select {
		case <-wq.stop:
			return
		case <-wq.notify:
			wq.drain()
		}
	}
}

func (wq *WorkQueue) drain() {
	for {
		wq.mu.Lock()
		if wq.q.Length() == 0 {
			wq.mu.Unlock()
			return
		}
		item := wq.q.Peek()
		wq.q.Remove()
		wq.mu.Unlock()

		if fn, ok := item.(WorkFunc); ok {
			fn()
		}
	}
}
