// File: ctrlr/queue_select.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// I/O queue selection. Resolves the Open Question on the source's
// queue-selection helper: here pickQueue always returns a value in
// [0, numIoQueues) — an index equal to numIoQueues is never produced,
// and numIoQueues == 0 is rejected up front with NotReady rather than
// silently routed to a sentinel "quiesced" index.

package ctrlr

import (
	"sync/atomic"

	"github.com/momentics/nvme-core/api"
)

var rrCounter uint64

// roundRobinPickQueue is the default PickQueue: CPU ID is ignored,
// selection is a simple monotonically increasing counter taken modulo
// numQueues before lookup, so the bound is computed once and never
// straddles the queue array.
func roundRobinPickQueue(cpuID, numQueues int) int {
	if numQueues <= 0 {
		return 0
	}
	n := atomic.AddUint64(&rrCounter, 1)
	return int(n % uint64(numQueues))
}

// selectIOQueue resolves an upper-layer submission to one of the
// controller's I/O queues via the configured PickQueue hook, rejecting
// the request outright if no I/O queues exist yet.
func (c *Controller) selectIOQueue(cpuID int) (int, error) {
	c.mu.Lock()
	n := len(c.ioQueues)
	c.mu.Unlock()
	if n == 0 {
		return 0, api.NewError(api.StatusNotReady, "no I/O queues available")
	}
	idx := c.cfg.PickQueue(cpuID, n)
	if idx < 0 || idx >= n {
		idx = idx % n
		if idx < 0 {
			idx += n
		}
	}
	return idx, nil
}
