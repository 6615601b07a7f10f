// File: ctrlr/recovery.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error recovery (C8): suspend->flush->reset->recreate, task-management
// abort, and the classification pass they both share. HwReset is the
// one-shot cancel-all primitive every other trigger funnels into.

package ctrlr

import (
	"fmt"
	"time"

	"github.com/momentics/nvme-core/api"
	"github.com/momentics/nvme-core/internal/cmdpool"
	"github.com/momentics/nvme-core/internal/queue"
)

// HwReset suspends every queue, stops the controller, flushes and
// resets admin then each I/O queue with the given status for
// in-flight commands, restarts hardware, re-identifies, and resumes
// operation. It refuses to proceed if the I/O queue count changed —
// this core does not handle topology changes mid-flight.
func (c *Controller) HwReset(statusForInflight api.Status) error {
	if _, ok := c.st.SetState(api.StateInReset); !ok {
		return api.NewError(api.StatusBusy, "reset already in progress")
	}

	c.mu.Lock()
	c.resetCount++
	c.metrics.Incr("reset_count_total", 1)
	priorIOCount := len(c.ioQueues)
	ioQueues := append([]*queue.Queue(nil), c.ioQueues...)
	c.mu.Unlock()

	c.mu.Lock()
	stopQueuePollers(c.pollers)
	c.pollers = nil
	c.mu.Unlock()

	_ = c.admin.Suspend()
	for _, q := range ioQueues {
		_ = q.Suspend()
	}

	if err := c.hwStop(); err != nil {
		c.st.SetState(api.StateFailed)
		return fmt.Errorf("ctrlr: hwreset: %w", err)
	}

	if err := c.admin.Flush(api.StatusInReset); err != nil {
		c.st.SetState(api.StateFailed)
		return fmt.Errorf("ctrlr: hwreset: admin flush: %w", err)
	}
	if err := c.admin.Reset(); err != nil {
		c.st.SetState(api.StateFailed)
		return fmt.Errorf("ctrlr: hwreset: admin reset: %w", err)
	}
	for _, q := range ioQueues {
		if err := q.Flush(statusForInflight); err != nil {
			c.st.SetState(api.StateFailed)
			return fmt.Errorf("ctrlr: hwreset: io queue %d flush: %w", q.ID, err)
		}
		if err := q.Reset(); err != nil {
			c.st.SetState(api.StateFailed)
			return fmt.Errorf("ctrlr: hwreset: io queue %d reset: %w", q.ID, err)
		}
	}

	c.mu.Lock()
	c.aerOutstanding = 0
	c.mu.Unlock()

	if err := c.hwStart(); err != nil {
		c.st.SetState(api.StateFailed)
		return fmt.Errorf("ctrlr: hwreset: hwstart: %w", err)
	}
	if err := c.admin.Resume(); err != nil {
		c.st.SetState(api.StateFailed)
		return fmt.Errorf("ctrlr: hwreset: admin resume: %w", err)
	}

	if err := c.identifyController(); err != nil {
		c.st.SetState(api.StateFailed)
		return fmt.Errorf("ctrlr: hwreset: re-identify: %w", err)
	}

	numQ, err := c.negotiateQueueCount()
	if err != nil {
		c.st.SetState(api.StateFailed)
		return fmt.Errorf("ctrlr: hwreset: re-negotiate queues: %w", err)
	}
	if numQ != priorIOCount {
		c.st.SetState(api.StateFailed)
		return fmt.Errorf("ctrlr: hwreset: io queue count changed from %d to %d, topology change unsupported mid-flight", priorIOCount, numQ)
	}

	for _, q := range ioQueues {
		if err := c.createCQHW(q); err != nil {
			c.st.SetState(api.StateFailed)
			return fmt.Errorf("ctrlr: hwreset: recreate cq %d: %w", q.ID, err)
		}
		if err := c.createSQHW(q); err != nil {
			c.st.SetState(api.StateFailed)
			return fmt.Errorf("ctrlr: hwreset: recreate sq %d: %w", q.ID, err)
		}
		if err := q.Resume(); err != nil {
			c.st.SetState(api.StateFailed)
			return fmt.Errorf("ctrlr: hwreset: resume io queue %d: %w", q.ID, err)
		}
	}

	c.mu.Lock()
	c.pollers = c.startQueuePollers(ioQueues)
	c.mu.Unlock()

	c.armAER()
	c.startTimeoutSweeper()

	if _, ok := c.st.SetState(api.StateOperational); !ok {
		return fmt.Errorf("ctrlr: hwreset: illegal transition back to Operational")
	}
	return nil
}

// TaskMgmtAbort implements the task-management Abort sequence: serialize
// on the task-mgmt semaphore, allow in-flight commands 100ms to
// complete naturally, suspend everything, and classify each I/O
// queue's remaining Active slots against matchesAbort. If any matched,
// the only reliable recourse is a full HwReset with status Aborted;
// otherwise queues simply resume.
func (c *Controller) TaskMgmtAbort(matchesAbort func(request any) bool) error {
	c.taskMgmtSem.Lock()
	defer c.taskMgmtSem.Unlock()

	if c.State() != api.StateOperational {
		return api.NewError(api.StatusBusy, "controller not operational")
	}

	time.Sleep(100 * time.Millisecond)

	if _, ok := c.st.SetState(api.StateSuspend); !ok {
		return api.NewError(api.StatusBusy, "could not suspend for task management")
	}

	c.mu.Lock()
	ioQueues := append([]*queue.Queue(nil), c.ioQueues...)
	c.mu.Unlock()

	for _, q := range ioQueues {
		_ = q.Suspend()
	}

	matched := false
	for _, q := range ioQueues {
		q.ProcessCompletions()
		q.Lock()
		q.Pool.ForEachActive(func(s *cmdpool.Slot) {
			if matchesAbort(s.Request) {
				matched = true
			}
		})
		q.Unlock()
	}

	if matched {
		c.mu.Lock()
		c.abortedCmds++
		c.metrics.Incr("aborted_cmds_total", 1)
		c.mu.Unlock()
		for _, q := range ioQueues {
			_ = q.Resume()
		}
		// HwReset enters InReset, which the state machine only allows
		// from Operational.
		if _, ok := c.st.SetState(api.StateOperational); !ok {
			return fmt.Errorf("ctrlr: task mgmt abort: illegal transition back to Operational")
		}
		return c.HwReset(api.StatusAborted)
	}

	for _, q := range ioQueues {
		if err := q.Resume(); err != nil {
			return err
		}
	}
	if _, ok := c.st.SetState(api.StateOperational); !ok {
		return fmt.Errorf("ctrlr: task mgmt abort: illegal transition back to Operational")
	}
	return nil
}
