// File: ctrlr/identify.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Post-HwStart bring-up: IDENTIFY CONTROLLER, SET FEATURES
// (NumberOfQueues), per-I/O-queue CREATE CQ/CREATE SQ, namespace
// enumeration, the probe read, and AER re-arming (the supplemented
// AEN loop — see DESIGN.md).

package ctrlr

import (
	"bytes"
	"fmt"
	"runtime"
	"time"

	"github.com/momentics/nvme-core/api"
	"github.com/momentics/nvme-core/internal/mmio"
	"github.com/momentics/nvme-core/internal/normalize"
	"github.com/momentics/nvme-core/internal/queue"
	"github.com/momentics/nvme-core/internal/wire"
)

const identifyPageSize = 4096

// Bootstrap resumes the admin queue, IDENTIFIEs the controller, negotiates
// I/O queue count, creates and resumes each I/O queue, enumerates
// namespaces, probes the first eligible one, arms AER, and finally
// transitions the controller to Operational.
func (c *Controller) Bootstrap() error {
	if err := c.admin.Resume(); err != nil {
		return fmt.Errorf("ctrlr: bootstrap: resume admin queue: %w", err)
	}

	if err := c.identifyController(); err != nil {
		return fmt.Errorf("ctrlr: bootstrap: %w", err)
	}

	numQ, err := c.negotiateQueueCount()
	if err != nil {
		return fmt.Errorf("ctrlr: bootstrap: %w", err)
	}

	if err := c.createIOQueues(numQ); err != nil {
		return fmt.Errorf("ctrlr: bootstrap: %w", err)
	}

	if err := c.enumerateNamespaces(); err != nil {
		return fmt.Errorf("ctrlr: bootstrap: %w", err)
	}

	if err := c.probeFirstNamespace(60 * time.Second); err != nil {
		return fmt.Errorf("ctrlr: bootstrap: %w", err)
	}

	c.armAER()
	c.startTimeoutSweeper()

	if _, ok := c.st.SetState(api.StateOperational); !ok {
		return fmt.Errorf("ctrlr: bootstrap: illegal transition to Operational")
	}
	return nil
}

func (c *Controller) identifyController() error {
	page, err := c.dma.Alloc(identifyPageSize, -1, mmio.DirFromDevice)
	if err != nil {
		return fmt.Errorf("identify controller: alloc: %w", err)
	}
	defer c.dma.Free(page)

	_, err = c.submitAdmin(adminCmd{
		Opcode: wire.OpIdentify,
		PRP1:   page.IOAddr,
		CDW10:  wire.CNSController,
	})
	if err != nil {
		return fmt.Errorf("identify controller: %w", err)
	}

	// Field offsets follow the NVMe Identify Controller data structure
	// (bytes 0-519 of the 4KiB page): VendorID(0:2), Ssvid(2:4),
	// SerialNumber(4:24), ModelNumber(24:64), Firmware(64:72),
	// Rab(72), IEEE(73:76), ..., Aerl(259), ..., Nn(516:520).
	buf := page.VA
	vid := uint16(buf[0]) | uint16(buf[1])<<8
	c.vendor = fmt.Sprintf("0x%04x", vid)
	c.serial = sanitizeString(buf[4:24])
	c.model = sanitizeString(buf[24:64])
	c.firmware = sanitizeString(buf[64:72])
	copy(c.ieeeOUI[:], buf[73:76])
	c.maxAEN = int(buf[259]) + 1
	c.nsCount = int(le32(buf[516:520]))
	return nil
}

// sanitizeString mirrors the source's NUL/colon scrubbing: embedded
// NULs become spaces, colons become spaces (colons collide with the
// path-string separator the upper layer uses to build device names),
// and the result is trimmed.
func sanitizeString(b []byte) string {
	out := make([]byte, len(b))
	copy(out, b)
	for i, ch := range out {
		if ch == 0 {
			out[i] = ' '
		}
		if ch == ':' {
			out[i] = ' '
		}
	}
	return string(bytes.TrimSpace(out))
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// negotiateQueueCount asks SET FEATURES (Number of Queues) for
// RequestedIOQs queues, or runtime.NumCPU() when that is unset, encoded
// zero-based. It accepts the controller's grant capped at that request,
// and falls back to 1 if the command fails.
func (c *Controller) negotiateQueueCount() (int, error) {
	want := c.cfg.RequestedIOQs
	if want <= 0 {
		want = runtime.NumCPU()
	}
	out, err := c.submitAdmin(adminCmd{
		Opcode: wire.OpSetFeatures,
		CDW10:  0x07, // Feature ID 07h: Number of Queues
		CDW11:  uint32(want-1) | uint32(want-1)<<16,
	})
	if err != nil {
		return 1, nil
	}
	granted := int(out.CmdSpecific&0xFFFF) + 1
	if granted < 1 {
		granted = 1
	}
	if granted > want {
		granted = want
	}
	return granted, nil
}

func (c *Controller) createIOQueues(n int) error {
	created := make([]*queue.Queue, 0, n)
	rollback := func() {
		for i := len(created) - 1; i >= 0; i-- {
			c.destroyIOQueueHW(created[i])
		}
	}

	depth := c.cfg.AdminCQDepth // I/O queues default to the same depth class as admin; callers size via Config in a fuller build
	for i := 1; i <= n; i++ {
		sqBytes := depth * wire.SQESize
		cqBytes := depth * wire.CQESize
		sqRing, err := c.dma.Alloc(sqBytes, normalize.NUMANode(i%2, 2), mmio.DirToDevice)
		if err != nil {
			rollback()
			return fmt.Errorf("io queue %d: sq alloc: %w", i, err)
		}
		cqRing, err := c.dma.Alloc(cqBytes, normalize.NUMANode(i%2, 2), mmio.DirFromDevice)
		if err != nil {
			c.dma.Free(sqRing)
			rollback()
			return fmt.Errorf("io queue %d: cq alloc: %w", i, err)
		}

		q := queue.New(i, depth, sqRing, cqRing, c.win, c.cap.DSTRD, i)
		if err := attachPRPPages(q, c.dma, c.builder); err != nil {
			rollback()
			return err
		}

		if err := c.createCQHW(q); err != nil {
			rollback()
			return fmt.Errorf("io queue %d: create cq: %w", i, err)
		}
		if err := c.createSQHW(q); err != nil {
			c.deleteCQHW(q)
			rollback()
			return fmt.Errorf("io queue %d: create sq: %w", i, err)
		}

		created = append(created, q)
	}

	for _, q := range created {
		if err := q.Resume(); err != nil {
			rollback()
			return fmt.Errorf("io queue resume: %w", err)
		}
	}

	c.mu.Lock()
	c.ioQueues = created
	pollers := c.startQueuePollers(created)
	c.pollers = pollers
	c.mu.Unlock()
	return nil
}

func (c *Controller) createCQHW(q *queue.Queue) error {
	_, err := c.submitAdmin(adminCmd{
		Opcode: wire.OpCreateCQ,
		PRP1:   q.CQRing.IOAddr,
		CDW10:  uint32(q.ID) | uint32(q.Depth-1)<<16,
		CDW11:  0x1 | uint32(q.ID)<<16, // PC=1 contiguous, interrupt vector = queue id
	})
	return err
}

func (c *Controller) createSQHW(q *queue.Queue) error {
	_, err := c.submitAdmin(adminCmd{
		Opcode: wire.OpCreateSQ,
		PRP1:   q.SQRing.IOAddr,
		CDW10:  uint32(q.ID) | uint32(q.Depth-1)<<16,
		CDW11:  0x1 | 0x4 | uint32(q.ID)<<16, // PC=1, QPRIO=Medium(10b), associated CQ id
	})
	return err
}

func (c *Controller) deleteCQHW(q *queue.Queue) {
	_, _ = c.submitAdmin(adminCmd{Opcode: wire.OpDeleteCQ, CDW10: uint32(q.ID)})
}

func (c *Controller) deleteSQHW(q *queue.Queue) {
	_, _ = c.submitAdmin(adminCmd{Opcode: wire.OpDeleteSQ, CDW10: uint32(q.ID)})
}

func (c *Controller) destroyIOQueueHW(q *queue.Queue) {
	c.deleteSQHW(q)
	c.deleteCQHW(q)
	c.dma.Free(q.SQRing)
	c.dma.Free(q.CQRing)
}
