// File: internal/queue/submit.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package queue

import (
	"github.com/momentics/nvme-core/api"
	"github.com/momentics/nvme-core/internal/cmdpool"
	"github.com/momentics/nvme-core/internal/wire"
)

// WriteAndRing copies the slot's staged SQE into the ring at the
// current tail, advances tail with wraparound, and rings the SQ tail
// doorbell. Caller must hold the queue lock and must have already
// verified FreeEntries() > 0 and !Suspended().
func (q *Queue) WriteAndRing(slot *cmdpool.Slot) error {
	if q.suspended {
		return api.NewError(api.StatusInReset, "queue is suspended")
	}
	if q.FreeEntries() <= 0 {
		return api.NewError(api.StatusQueueFull, "submission queue full")
	}

	off := int(q.sqTail) * wire.SQESize
	copy(q.SQRing.VA[off:off+wire.SQESize], slot.SQEBuf[:])

	q.sqTail++
	if int(q.sqTail) == q.Depth {
		q.sqTail = 0
	}
	q.win.Write32(q.sqDoorbellOff, q.sqTail)
	return nil
}
