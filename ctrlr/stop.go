// File: ctrlr/stop.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stop is the orderly teardown path: quiesce, flush and reset every
// queue, tear down I/O queue hardware, disable the controller, and
// unmap the BAR. Unlike HwReset it never comes back up.

package ctrlr

import (
	"fmt"

	"github.com/momentics/nvme-core/api"
)

var _ api.GracefulShutdown = (*Controller)(nil)

// Shutdown satisfies api.GracefulShutdown by delegating to Stop, the
// controller's own orderly-teardown terminology.
func (c *Controller) Shutdown() error { return c.Stop() }

// Stop transitions the controller through Quiesced to Detached,
// draining in-flight I/O with StatusAborted and releasing all DMA and
// MMIO resources. Safe to call once; a second call returns an error
// since Detached has no outgoing transitions.
func (c *Controller) Stop() error {
	if _, ok := c.st.SetState(api.StateQuiesced); !ok {
		return api.NewError(api.StatusBusy, "controller cannot be quiesced from its current state")
	}

	c.stopTimeoutSweeper()

	c.mu.Lock()
	admin := c.admin
	queues := c.ioQueues
	stopQueuePollers(c.pollers)
	c.pollers = nil
	c.mu.Unlock()

	for _, q := range queues {
		if !q.Suspended() {
			_ = q.Suspend()
		}
		_ = q.Flush(api.StatusAborted)
		c.deleteSQHW(q)
		c.deleteCQHW(q)
		c.dma.Free(q.SQRing)
		c.dma.Free(q.CQRing)
	}

	if admin != nil {
		if !admin.Suspended() {
			_ = admin.Suspend()
		}
		_ = admin.Flush(api.StatusAborted)
	}

	if c.win != nil {
		if err := c.hwStop(); err != nil {
			return fmt.Errorf("ctrlr: stop: %w", err)
		}
	}

	if admin != nil {
		c.dma.Free(admin.SQRing)
		c.dma.Free(admin.CQRing)
	}

	c.mu.Lock()
	c.namespaces = make(map[uint32]*Namespace)
	c.ioQueues = nil
	c.mu.Unlock()

	c.workQ.Close()

	if c.win != nil {
		c.win.Unmap()
	}

	if _, ok := c.st.SetState(api.StateDetached); !ok {
		return fmt.Errorf("ctrlr: stop: illegal transition to Detached")
	}
	return nil
}
