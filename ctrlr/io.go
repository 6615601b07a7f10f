// File: ctrlr/io.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// NVM (I/O) command submission: the block-request entry point plus the
// bring-up probe read, both built on internal/engine and the PRP
// builder directly rather than through the admin helper (admin
// commands and NVM commands share a wire format but not a queue).

package ctrlr

import (
	"time"

	"github.com/momentics/nvme-core/api"
	"github.com/momentics/nvme-core/internal/cmdpool"
	"github.com/momentics/nvme-core/internal/engine"
	"github.com/momentics/nvme-core/internal/prp"
	"github.com/momentics/nvme-core/internal/queue"
	"github.com/momentics/nvme-core/internal/wire"
)

const probeTimeout = 5 * time.Second

// probeRead issues a single-LBA read against nsid on q and waits for
// it to complete, used only during bring-up to confirm the namespace
// is actually servicing I/O.
func (c *Controller) probeRead(q *queue.Queue, nsid uint32, destIOAddr uint64) error {
	slot, err := q.Pool.Get()
	if err != nil {
		return err
	}
	slot.Kind = cmdpool.KindBlockIO
	slot.NamespaceID = nsid

	sqe := wire.SQE{
		Opcode: wire.OpRead,
		CmdID:  slot.ID,
		NSID:   nsid,
		PRP1:   destIOAddr,
		CDW10:  0, // start LBA low
		CDW11:  0, // start LBA high
		CDW12:  0, // NLB=0 -> one block
	}
	sqe.Encode(slot.SQEBuf[:])

	var out wire.CQE
	err = engine.SubmitWait(q, slot, &out, probeTimeout)

	q.Lock()
	if slot.Status != cmdpool.SlotFreeOnComplete {
		q.Pool.Put(slot)
	}
	q.Unlock()
	return err
}

// BlockIORequest is one upper-layer I/O: an already DMA-mapped scatter
// -gather list plus the logical range it targets.
type BlockIORequest struct {
	NSID      uint32
	Write     bool
	StartLBA  uint64
	NumBlocks uint32 // NVMe NLB is zero-based; caller passes the true count
	SG        *prp.SGArray
	CPUHint   int
}

// SubmitBlockIO selects an I/O queue, builds PRPs (splitting into
// multiple child commands if the SG array does not fit one command's
// PRP1/PRP2), and submits every child asynchronously. done is invoked
// once per child command from the completion path; the caller is
// responsible for counting children down to the parent request if it
// cares about whole-request completion (namespaces pass a shared
// counter closure as done).
func (c *Controller) SubmitBlockIO(req BlockIORequest, done api.BlockRequestDone) error {
	if c.State() != api.StateOperational {
		return api.NewError(api.StatusNotReady, "controller is not operational")
	}

	idx, err := c.selectIOQueue(req.CPUHint)
	if err != nil {
		return err
	}
	c.mu.Lock()
	q := c.ioQueues[idx]
	c.mu.Unlock()

	pos := cmdpool.SGPosition{}
	remaining := sgTotalLen(req.SG)
	lba := req.StartLBA

	for remaining > 0 {
		slot, err := q.Pool.Get()
		if err != nil {
			return err
		}
		slot.Kind = cmdpool.KindBlockIO
		slot.NamespaceID = req.NSID
		q.Lock()
		ring := q.Timeouts
		q.Unlock()
		if ring != nil {
			slot.TimeoutBucket = ring.Stamp()
		} else {
			slot.TimeoutBucket = -1
		}

		res, err := c.builder.Build(slot, req.SG, pos, remaining)
		if err != nil {
			q.Lock()
			q.Pool.Put(slot)
			q.Unlock()
			return err
		}

		opcode := wire.OpRead
		if req.Write {
			opcode = wire.OpWrite
		}
		nlb := uint32(res.CoveredBytes/512) - 1

		sqe := wire.SQE{
			Opcode: opcode,
			CmdID:  slot.ID,
			NSID:   req.NSID,
			PRP1:   res.PRP1,
			PRP2:   res.PRP2,
			CDW10:  uint32(lba),
			CDW11:  uint32(lba >> 32),
			CDW12:  nlb,
		}
		sqe.Encode(slot.SQEBuf[:])

		localDone := done
		slot.CompletionKind = cmdpool.CompletionBlockIO
		onComplete := func(s *cmdpool.Slot) {
			status := s.DecodedStatus
			bucket := s.TimeoutBucket
			// Runs inside the completion loop, which already holds q's lock.
			q.Pool.Put(s)
			if ring != nil && bucket >= 0 {
				ring.Release(bucket)
			}
			if localDone != nil {
				localDone(status, res.CoveredBytes)
			}
		}

		if err := engine.SubmitAsync(q, slot, onComplete); err != nil {
			q.Lock()
			q.Pool.Put(slot)
			q.Unlock()
			return err
		}

		pos = res.NextPos
		remaining -= res.CoveredBytes
		lba += uint64(res.CoveredBytes / 512)
	}
	return nil
}

func sgTotalLen(sg *prp.SGArray) int {
	total := 0
	for i := 0; i < sg.Len(); i++ {
		total += sg.Get(i).Len
	}
	return total
}
