// File: internal/queue/queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One submission ring + one completion ring sharing a doorbell pair,
// phase tag, head/tail indices, and an interrupt vector. Grounded on
// the mmap'd-ring/atomic-head-tail idiom used for io_uring rings, and
// on the suspend/resume/reset/flush sequencing from nvme_core.c's
// queue management functions.

package queue

import (
	"sync"

	"github.com/momentics/nvme-core/api"
	"github.com/momentics/nvme-core/internal/cmdpool"
	"github.com/momentics/nvme-core/internal/mmio"
	"github.com/momentics/nvme-core/internal/recovery"
	"github.com/momentics/nvme-core/internal/wire"
)

// Queue owns both directions of one queue pair.
type Queue struct {
	ID    int // 0 == admin
	Depth int

	SQRing *mmio.Entry // depth * SQESize bytes, physically contiguous
	CQRing *mmio.Entry // depth * CQESize bytes, physically contiguous

	win           *mmio.Window
	sqDoorbellOff uint32
	cqDoorbellOff uint32

	sqTail uint32
	sqHead uint32 // cached from the most recent CQE
	cqHead uint32
	phase  bool // initially true, flips on every CQ wrap

	intrVector int
	suspended  bool

	Pool *cmdpool.Pool

	// Timeouts is this queue's own outstanding-command bucket ring.
	// Every queue pair tracks its in-flight commands independently —
	// a slow admin queue must never arm a reset against an I/O queue's
	// commands, or vice versa. Nil until SetTimeoutRing is called by
	// the controller's bring-up/sweeper setup.
	Timeouts *recovery.BucketRing

	mu sync.Mutex // rank High, per the controller/namespace/queue lock order
}

// SetTimeoutRing installs this queue's bucket ring, sized in buckets of
// the sweeper's tick period. Called once during bring-up, and again on
// every sweeper restart (HwReset rebuilds every queue's ring to match
// a possibly-renegotiated device timeout).
func (q *Queue) SetTimeoutRing(r *recovery.BucketRing) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Timeouts = r
}

// New constructs a queue pair in the suspended state. The rings must
// already be allocated by the caller (ctrlr's bring-up sequence owns DMA
// lifetime); New builds the slot pool, whose PRP pages the caller
// attaches afterwards, and computes doorbell offsets.
func New(id int, depth int, sqRing, cqRing *mmio.Entry, win *mmio.Window, dstrd uint8, intrVector int) *Queue {
	return &Queue{
		ID:            id,
		Depth:         depth,
		SQRing:        sqRing,
		CQRing:        cqRing,
		win:           win,
		sqDoorbellOff: wire.SQTailDoorbell(id, dstrd),
		cqDoorbellOff: wire.CQHeadDoorbell(id, dstrd),
		phase:         true,
		suspended:     true,
		intrVector:    intrVector,
		Pool:          cmdpool.New(depth - 1),
	}
}

// Lock/Unlock expose the queue's single rank-High mutex to callers that
// must serialize a multi-step sequence (the engine's SubmitAsync and
// the completion loop both take this lock; never take it while holding
// a lower-rank lock).
func (q *Queue) Lock()   { q.mu.Lock() }
func (q *Queue) Unlock() { q.mu.Unlock() }

// FreeEntries returns the number of SQ slots available for new
// submissions: depth-1 minus the number in flight, since one entry
// must always stay empty to disambiguate full from empty.
func (q *Queue) FreeEntries() int {
	inFlight := (q.sqTail - q.sqHead + uint32(q.Depth)) % uint32(q.Depth)
	return q.Depth - 1 - int(inFlight)
}

// Suspended reports the queue's suspend state. Caller must hold the lock.
func (q *Queue) Suspended() bool { return q.suspended }

// Suspend disables new admissions and masks the interrupt vector.
// Idempotent-fail: returns BadParam if already suspended, and leaves
// state unchanged.
func (q *Queue) Suspend() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.suspended {
		return api.NewError(api.StatusBadParam, "queue already suspended")
	}
	q.suspended = true
	q.Pool.SetSuspended(true)
	if q.intrVector >= 0 {
		q.maskInterrupt()
	}
	return nil
}

// Resume is Suspend's inverse.
func (q *Queue) Resume() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.suspended {
		return api.NewError(api.StatusBadParam, "queue already resumed")
	}
	q.suspended = false
	q.Pool.SetSuspended(false)
	if q.intrVector >= 0 {
		q.unmaskInterrupt()
	}
	return nil
}

// Reset may only be called on a suspended queue. It zeroes both rings,
// resets indices and phase, and resets the slot pool to all-Free.
func (q *Queue) Reset() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.suspended {
		return api.NewError(api.StatusBusy, "reset requires a suspended queue")
	}
	zero(q.SQRing.VA)
	zero(q.CQRing.VA)
	q.sqTail, q.sqHead, q.cqHead = 0, 0, 0
	q.phase = true
	q.Pool.Reset()
	return nil
}

// Flush may only be called on a suspended queue. It first drains any
// pending completions, then synthesizes a completion with the given
// status for every remaining Active slot, and asserts the Active list
// is empty afterward.
func (q *Queue) Flush(statusForInflight api.Status) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.suspended {
		return api.NewError(api.StatusBusy, "flush requires a suspended queue")
	}
	q.drainCompletionsLocked()

	q.Pool.ForEachActive(func(s *cmdpool.Slot) {
		s.DecodedStatus = statusForInflight
		if s.OnComplete != nil {
			s.OnComplete(s)
		}
	})
	// ForEachActive snapshot was taken before OnComplete callbacks may
	// have called Put; walk again defensively until truly empty.
	for q.Pool.ActiveCount() > 0 {
		q.Pool.ForEachActive(func(s *cmdpool.Slot) {
			s.DecodedStatus = statusForInflight
			if s.OnComplete != nil {
				s.OnComplete(s)
			}
		})
	}
	return nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
