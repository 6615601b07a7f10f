// File: ctrlr/admin.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Thin synchronous wrapper over the admin queue for the handful of
// fixed admin commands the bring-up and management paths need.

package ctrlr

import (
	"time"

	"github.com/momentics/nvme-core/internal/cmdpool"
	"github.com/momentics/nvme-core/internal/engine"
	"github.com/momentics/nvme-core/internal/wire"
)

const defaultAdminTimeout = 10 * time.Second

// adminCmd describes one admin SQE's variable fields; PRP1/PRP2 are
// filled by the caller (usually a single 4 KiB DMA page, no PRP list
// needed since admin data buffers never span more than two pages).
type adminCmd struct {
	Opcode              uint8
	NSID                uint32
	PRP1, PRP2          uint64
	CDW10, CDW11, CDW12 uint32
	CDW13, CDW14, CDW15 uint32
	Timeout             time.Duration
}

// submitAdmin runs one admin command to completion and returns the
// decoded CQE. It is serialized by the admin queue's own lock; callers
// performing multi-step sequences (bring-up, reset) additionally hold
// the task-management semaphore for the whole sequence.
func (c *Controller) submitAdmin(cmd adminCmd) (wire.CQE, error) {
	slot, err := c.admin.Pool.Get()
	if err != nil {
		return wire.CQE{}, err
	}
	slot.Kind = cmdpool.KindAdmin

	sqe := wire.SQE{
		Opcode: cmd.Opcode,
		CmdID:  slot.ID,
		NSID:   cmd.NSID,
		PRP1:   cmd.PRP1,
		PRP2:   cmd.PRP2,
		CDW10:  cmd.CDW10,
		CDW11:  cmd.CDW11,
		CDW12:  cmd.CDW12,
		CDW13:  cmd.CDW13,
		CDW14:  cmd.CDW14,
		CDW15:  cmd.CDW15,
	}
	sqe.Encode(slot.SQEBuf[:])

	timeout := cmd.Timeout
	if timeout == 0 {
		timeout = defaultAdminTimeout
	}

	var out wire.CQE
	err = engine.SubmitWait(c.admin, slot, &out, timeout)

	c.admin.Lock()
	if slot.Status != cmdpool.SlotFreeOnComplete {
		c.admin.Pool.Put(slot)
	}
	c.admin.Unlock()

	return out, err
}
