// File: ctrlr/namespace.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Namespace registry (C7): per-NSID entity with block count, LBA
// shift, online/offline flag, refcount.

package ctrlr

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/nvme-core/api"
	"github.com/momentics/nvme-core/internal/mmio"
	"github.com/momentics/nvme-core/internal/wire"
)

// Namespace is one NSID's state, shared between the controller's list
// and upper-layer path bindings via refcount.
type Namespace struct {
	mu sync.Mutex // rank Medium: protects Online/flags

	NSID       uint32
	BlockCount uint64
	LBAShift   uint8
	MetaSize   uint16
	PIEnabled  bool
	EUI64      [8]byte

	Online   bool
	ReadOnly bool
	Flushing bool

	refcount int32

	ctrl *Controller
}

func (c *Controller) enumerateNamespaces() error {
	if c.nsCount <= 0 {
		return nil
	}
	for nsid := uint32(1); int(nsid) <= c.nsCount; nsid++ {
		ns, err := c.identifyNamespace(nsid)
		if err != nil {
			continue // a failed IDENTIFY NAMESPACE just leaves that nsid unregistered
		}
		if ns == nil {
			continue
		}
		c.mu.Lock()
		c.namespaces[nsid] = ns
		c.mu.Unlock()
	}
	return nil
}

func (c *Controller) identifyNamespace(nsid uint32) (*Namespace, error) {
	page, err := c.dma.Alloc(identifyPageSize, -1, mmio.DirFromDevice)
	if err != nil {
		return nil, fmt.Errorf("identify namespace %d: alloc: %w", nsid, err)
	}
	defer c.dma.Free(page)

	_, err = c.submitAdmin(adminCmd{
		Opcode: wire.OpIdentify,
		NSID:   nsid,
		PRP1:   page.IOAddr,
		CDW10:  wire.CNSNamespace,
	})
	if err != nil {
		return nil, err
	}

	buf := page.VA
	blockCount := le64(buf[0:8])
	if blockCount == 0 {
		// A zero-size namespace is not returned, so callers leave its
		// nsid unregistered; no empty record is kept for it.
		return nil, nil
	}
	flbas := buf[26]
	fmtIdx := flbas & 0xF
	lbafOff := 128 + int(fmtIdx)*4
	lbaf := le32(buf[lbafOff : lbafOff+4])
	metaSize := uint16(lbaf & 0xFFFF)
	lbaShift := uint8((lbaf >> 16) & 0xFF) // LBADS, bits 23:16

	ns := &Namespace{
		NSID:       nsid,
		BlockCount: blockCount,
		LBAShift:   lbaShift,
		MetaSize:   metaSize,
		PIEnabled:  buf[29]&0x7 != 0, // Dps: end-to-end protection type enabled, low 3 bits
		Online:     true,
		ctrl:       c,
	}
	copy(ns.EUI64[:], buf[120:128])
	return ns, nil
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

// Validate is called by the upper layer during path discovery. It
// rejects and forces the namespace offline unless it is online, has a
// nonzero block count, a 512-byte LBA, zero metadata, and PI disabled.
func (ns *Namespace) Validate() error {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	fail := func(reason string) error {
		ns.Online = false
		return api.NewError(api.StatusInvalidNsOrFormat, reason)
	}

	if !ns.Online {
		return fail("namespace is offline")
	}
	if ns.BlockCount == 0 {
		return fail("namespace has zero block count")
	}
	if (uint64(1) << ns.LBAShift) != 512 {
		return fail("namespace LBA size is not 512 bytes")
	}
	if ns.MetaSize != 0 {
		return fail("namespace carries metadata, unsupported")
	}
	if ns.PIEnabled {
		return fail("namespace has protection information enabled, unsupported")
	}
	return nil
}

// Get increments the path reference count.
func (ns *Namespace) Get() { atomic.AddInt32(&ns.refcount, 1) }

// Put decrements the path reference count; when it drops to zero and
// the controller is not Operational, the namespace is dropped from the
// registry.
func (ns *Namespace) Put() {
	if atomic.AddInt32(&ns.refcount, -1) == 0 {
		if ns.ctrl.State() != api.StateOperational {
			ns.ctrl.mu.Lock()
			delete(ns.ctrl.namespaces, ns.NSID)
			ns.ctrl.mu.Unlock()
		}
	}
}

// probeFirstNamespace issues a probe read to an online namespace (the
// first one met in map iteration order, not necessarily the lowest
// NSID) and waits up to timeout for it to report ready, retrying on any
// error until the deadline passes.
func (c *Controller) probeFirstNamespace(timeout time.Duration) error {
	c.mu.Lock()
	var first *Namespace
	for _, ns := range c.namespaces {
		if ns.Online {
			first = ns
			break
		}
	}
	c.mu.Unlock()
	if first == nil {
		return nil // no namespaces yet is not a bring-up failure
	}

	c.mu.Lock()
	if len(c.ioQueues) == 0 {
		c.mu.Unlock()
		return nil // no I/O queues yet (degenerate single-admin-queue config)
	}
	q := c.ioQueues[0]
	c.mu.Unlock()

	deadline := time.Now().Add(timeout)
	page, err := c.dma.Alloc(512, -1, mmio.DirFromDevice)
	if err != nil {
		return fmt.Errorf("probe namespace: alloc: %w", err)
	}
	defer c.dma.Free(page)

	for {
		err := c.probeRead(q, first.NSID, page.IOAddr)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("probe namespace %d: timed out waiting for ready", first.NSID)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
