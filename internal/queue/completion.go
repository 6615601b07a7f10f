// File: internal/queue/completion.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Completion-queue draining: walk the CQ ring while the phase bit
// matches, map each CQE back to its command slot, decode status,
// invoke the slot's completion callback, advance head, flip phase on
// wrap, and finally publish the new head via the doorbell.

package queue

import (
	"github.com/momentics/nvme-core/api"
	"github.com/momentics/nvme-core/internal/wire"
)

// ProcessCompletions drains the CQ ring and returns the number of
// entries consumed. Must not be called with the queue lock held by
// the caller — it takes the lock itself — except from Flush, which
// uses the unexported locked variant.
func (q *Queue) ProcessCompletions() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drainCompletionsLocked()
}

func (q *Queue) drainCompletionsLocked() int {
	consumed := 0
	for {
		off := int(q.cqHead) * wire.CQESize
		cqe := wire.DecodeCQE(q.CQRing.VA[off : off+wire.CQESize])
		if cqe.Phase != q.phase {
			break
		}

		slot := q.Pool.Slot(cqe.CmdID)
		if slot == nil {
			// Invalid cmd_id (including the reserved 0): cannot route
			// this completion to any command. Advance past it so a
			// corrupted entry can never wedge the ring, but there is
			// nothing more useful to do with it.
			q.advanceHeadLocked()
			consumed++
			continue
		}

		slot.CQE = cqe
		slot.DecodedStatus = api.DecodeCQEStatus(cqe.SCT(), cqe.SC())
		q.sqHead = uint32(cqe.SQHead)

		if slot.OnComplete == nil {
			panic("queue: completion for slot with no OnComplete callback")
		}
		slot.OnComplete(slot)

		q.advanceHeadLocked()
		consumed++
	}
	if consumed > 0 {
		q.win.Write32(q.cqDoorbellOff, q.cqHead)
	}
	return consumed
}

func (q *Queue) advanceHeadLocked() {
	q.cqHead++
	if int(q.cqHead) == q.Depth {
		q.cqHead = 0
		q.phase = !q.phase
	}
}

func (q *Queue) maskInterrupt() {
	if q.win == nil {
		return
	}
	q.win.Write32(wire.RegINTMS, 1<<uint(q.intrVector))
}

func (q *Queue) unmaskInterrupt() {
	if q.win == nil {
		return
	}
	q.win.Write32(wire.RegINTMC, 1<<uint(q.intrVector))
}
