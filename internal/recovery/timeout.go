// File: internal/recovery/timeout.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-queue timeout bucketing: a ring of counters indexed by timeout
// bucket id, so the periodic scanner only inspects one bucket per
// tick rather than walking every in-flight command.

package recovery

import "sync"

// BucketRing tracks outstanding-command counts per timeout bucket for
// one queue. T = device_timeout_seconds*1000/tick_period_ms buckets.
type BucketRing struct {
	mu      sync.Mutex
	buckets []int
	current int
}

// NewBucketRing constructs a ring with T buckets.
func NewBucketRing(t int) *BucketRing {
	if t < 1 {
		t = 1
	}
	return &BucketRing{buckets: make([]int, t)}
}

// Stamp returns the current bucket id and increments its counter; call
// this when a command is submitted, storing the returned id on the slot.
func (b *BucketRing) Stamp() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buckets[b.current]++
	return b.current
}

// Release decrements the counter for the bucket a completed or
// cleaned-up command was stamped with.
func (b *BucketRing) Release(bucketID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bucketID < 0 || bucketID >= len(b.buckets) {
		return
	}
	if b.buckets[bucketID] > 0 {
		b.buckets[bucketID]--
	}
}

// Tick advances the current bucket by one and reports whether the
// bucket exactly T ticks ago (the one about to be recycled) is still
// nonzero — meaning commands stamped there have exceeded the timeout
// and a reset should be scheduled.
func (b *BucketRing) Tick() (expired bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.buckets)
	next := (b.current + 1) % n
	expired = b.buckets[next] != 0
	b.current = next
	return expired
}

// Occupancy returns a snapshot of all bucket counts, for the stats/
// debug surface.
func (b *BucketRing) Occupancy() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]int, len(b.buckets))
	copy(out, b.buckets)
	return out
}
