// File: ctrlr/aer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Asynchronous Event Notification loop (supplemented feature, see
// SPEC_FULL.md E-3): keeps min(maxAEN,4) AER commands outstanding on
// the admin queue, re-arming each as it completes, and dispatches
// decoded events to the ScanEvent collaborator hook.

package ctrlr

import (
	"github.com/momentics/nvme-core/api"
	"github.com/momentics/nvme-core/internal/cmdpool"
	"github.com/momentics/nvme-core/internal/engine"
	"github.com/momentics/nvme-core/internal/wire"
)

const maxOutstandingAER = 4

// armAER submits the initial batch of AER commands. Each one
// re-arms itself from its own completion callback, so the loop is
// self-sustaining until the admin queue is suspended (Flush then
// completes them with the flush status instead of a real event).
func (c *Controller) armAER() {
	n := c.maxAEN
	if n > maxOutstandingAER {
		n = maxOutstandingAER
	}
	c.mu.Lock()
	c.aerOutstanding = n
	c.mu.Unlock()

	for i := 0; i < n; i++ {
		c.submitOneAER()
	}
}

func (c *Controller) submitOneAER() {
	slot, err := c.admin.Pool.Get()
	if err != nil {
		return // pool momentarily exhausted; the next completion's re-arm will retry
	}
	slot.Kind = cmdpool.KindAdmin
	slot.CompletionKind = cmdpool.CompletionAERWatch

	sqe := wire.SQE{Opcode: wire.OpAER, CmdID: slot.ID}
	sqe.Encode(slot.SQEBuf[:])

	onComplete := func(s *cmdpool.Slot) {
		// Runs inside the completion loop, which already holds the
		// admin queue's lock.
		c.admin.Pool.Put(s)

		if s.DecodedStatus.Succeeded() {
			c.dispatchAEREvent(s.CQE)
		}

		if c.State() == api.StateOperational {
			c.workQ.Post(func() { c.submitOneAER() })
		}
	}

	if err := engine.SubmitAsync(c.admin, slot, onComplete); err != nil {
		c.admin.Lock()
		c.admin.Pool.Put(slot)
		c.admin.Unlock()
	}
}

func (c *Controller) dispatchAEREvent(cqe wire.CQE) {
	if c.cfg.ScanEvent == nil {
		return
	}
	eventType := "ns_changed"
	switch (cqe.CmdSpecific >> 8) & 0xFF {
	case 0x01:
		eventType = "smart_health"
	case 0x02:
		eventType = "ns_changed"
	case 0x03:
		eventType = "firmware_activation"
	}
	c.cfg.ScanEvent(eventType, nil)
}
