// File: ctrlr/sweeper.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The timeout sweeper: a single goroutine ticking every queue pair's
// own BucketRing on cfg.TickPeriod. Each queue stamps and releases its
// own commands into its own ring (internal/queue.Queue.Timeouts), so
// two independent queues never share counters. When any queue's bucket
// recycles with commands still stamped into it, those commands have
// outlived the device's own advertised timeout and the only safe
// recourse is a full controller reset.

package ctrlr

import (
	"time"

	"github.com/momentics/nvme-core/api"
	"github.com/momentics/nvme-core/internal/queue"
	"github.com/momentics/nvme-core/internal/recovery"
)

// startTimeoutSweeper sizes a bucket ring from CAP.TO (500ms units) and
// cfg.TickPeriod, installs a fresh ring on the admin queue and on every
// I/O queue, and launches the sweeper goroutine. Called once from
// Bootstrap, and again after every HwReset since a reset may have
// renegotiated CAP.TO or rebuilt the queue set; a second call replaces
// every ring, dropping whatever occupancy the old ones tracked.
func (c *Controller) startTimeoutSweeper() {
	deviceTimeout := time.Duration(c.cap.TO) * 500 * time.Millisecond
	if deviceTimeout <= 0 {
		deviceTimeout = 30 * time.Second
	}
	buckets := int(deviceTimeout / c.cfg.TickPeriod)
	if buckets < 1 {
		buckets = 1
	}

	c.mu.Lock()
	queues := append([]*queue.Queue{c.admin}, c.ioQueues...)
	for _, q := range queues {
		q.SetTimeoutRing(recovery.NewBucketRing(buckets))
	}
	if c.sweepStop != nil {
		close(c.sweepStop)
	}
	c.sweepStop = make(chan struct{})
	c.sweepDone = make(chan struct{})
	stop := c.sweepStop
	done := c.sweepDone
	c.mu.Unlock()

	go c.sweepLoop(queues, stop, done)
}

// sweepLoop ticks every queue's bucket ring once per TickPeriod. A
// queue whose ring reports an expired bucket has at least one command
// that has outstood the device timeout; the whole controller is reset
// rather than just that queue, since NVMe error recovery in this core
// is a controller-wide operation (see HwReset).
func (c *Controller) sweepLoop(queues []*queue.Queue, stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.cfg.TickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			expired := false
			for _, q := range queues {
				q.Lock()
				ring := q.Timeouts
				q.Unlock()
				if ring == nil {
					continue
				}
				if ring.Tick() {
					expired = true
				}
			}
			if expired && c.State() == api.StateOperational {
				c.workQ.Post(func() {
					_ = c.HwReset(api.StatusTimeout)
				})
			}
		}
	}
}

// stopTimeoutSweeper signals the sweeper goroutine to exit and waits
// for it, if one was ever started.
func (c *Controller) stopTimeoutSweeper() {
	c.mu.Lock()
	stop := c.sweepStop
	done := c.sweepDone
	c.sweepStop = nil
	c.sweepDone = nil
	c.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}
