// File: ctrlr/stats.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stats surfaces per-queue occupancy through api.ControllerStats and
// publishes the same figures into the MetricsRegistry so control.Debug
// probes and external scrapers see a consistent snapshot.

package ctrlr

import (
	"fmt"

	"github.com/momentics/nvme-core/api"
	"github.com/momentics/nvme-core/internal/queue"
)

// Stats reports a point-in-time snapshot of queue depths and recovery
// counters. Safe to call from any state; queues not yet built report a
// zeroed AdminQueue entry.
func (c *Controller) Stats() api.ControllerStats {
	c.mu.Lock()
	admin := c.admin
	ioQueues := append([]*queue.Queue(nil), c.ioQueues...)
	resetCount := c.resetCount
	abortedCmds := c.abortedCmds
	c.mu.Unlock()

	st := api.ControllerStats{
		State:       c.State(),
		ResetCount:  resetCount,
		AbortedCmds: abortedCmds,
	}
	if admin != nil {
		st.AdminQueue = queueStats(admin)
	}
	for _, q := range ioQueues {
		st.IOQueues = append(st.IOQueues, queueStats(q))
	}

	c.metrics.Set("state", st.State.String())
	c.metrics.Set("reset_count", st.ResetCount)
	c.metrics.Set("aborted_cmds", st.AbortedCmds)
	for _, qs := range st.IOQueues {
		c.metrics.Set(fmt.Sprintf("io_queue.%d.active", qs.QueueID), qs.ActiveCmds)
	}
	return st
}

func queueStats(q *queue.Queue) api.QueueStats {
	q.Lock()
	defer q.Unlock()
	return api.QueueStats{
		QueueID:    q.ID,
		Depth:      q.Depth,
		ActiveCmds: q.Pool.ActiveCount(),
		FreeCmds:   q.Pool.FreeCount(),
	}
}
