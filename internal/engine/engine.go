// File: internal/engine/engine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// SubmitAsync / SubmitWait / SubmitPoll and the completion dispatch
// they ride on. Grounded on NvmeCore_SubmitCommandAsync/Wait/Poll's
// lock/doorbell/wraparound/timeout-bucket sequencing, with the
// Peek/Wait/ForEach completion idiom borrowed from the io_uring
// reference ring's CQE handling.

package engine

import (
	"time"

	"github.com/momentics/nvme-core/api"
	"github.com/momentics/nvme-core/internal/cmdpool"
	"github.com/momentics/nvme-core/internal/queue"
	"github.com/momentics/nvme-core/internal/wire"
)

// pollInterval is SubmitPoll's busy-wait granularity, per spec's
// 10 microsecond increments.
const pollInterval = 10 * time.Microsecond

// SubmitAsync stages no I/O itself — the caller has already filled
// slot.SQEBuf (directly or via the PRP builder) and set slot's kind —
// and hands the command to hardware: lock the queue, verify room and
// liveness, install the completion callback, write the ring, bump the
// doorbell.
func SubmitAsync(q *queue.Queue, slot *cmdpool.Slot, onComplete func(*cmdpool.Slot)) error {
	q.Lock()
	defer q.Unlock()

	if q.Suspended() {
		return api.NewError(api.StatusInReset, "queue is suspended")
	}
	if q.FreeEntries() <= 0 {
		return api.NewError(api.StatusQueueFull, "submission queue full")
	}

	slot.Status = cmdpool.SlotActive
	slot.OnComplete = onComplete
	slot.StartedAt = time.Now()

	return q.WriteAndRing(slot)
}

// SubmitWait submits and blocks on a per-slot event until completion
// or timeout. On timeout the slot becomes abandoned (FreeOnComplete /
// AbortContext in spirit): ownership passes to error recovery, which
// reclaims it on the next reset's flush or whenever the hardware
// eventually does return the CQE.
func SubmitWait(q *queue.Queue, slot *cmdpool.Slot, out *wire.CQE, timeout time.Duration) error {
	waiter := make(chan struct{})
	slot.Waiter = waiter
	slot.DoneData = out
	slot.CompletionKind = cmdpool.CompletionSyncWait

	onComplete := func(s *cmdpool.Slot) {
		if s.Status == cmdpool.SlotFreeOnComplete {
			// Abandoned by the timeout below: nobody waits any more, so
			// the completion path returns the slot to the pool itself.
			// Runs with the queue lock held by the completion loop.
			q.Pool.Put(s)
			return
		}
		if s.DoneData != nil {
			*s.DoneData = s.CQE
		}
		s.Status = cmdpool.SlotDone
		close(s.Waiter)
	}

	if err := SubmitAsync(q, slot, onComplete); err != nil {
		return err
	}

	select {
	case <-waiter:
		if !slot.DecodedStatus.Succeeded() {
			return &api.Error{Status: slot.DecodedStatus, Message: "command completed with error status"}
		}
		return nil
	case <-time.After(timeout):
		q.Lock()
		slot.Status = cmdpool.SlotFreeOnComplete
		slot.Kind = cmdpool.KindAbortContext
		q.Unlock()
		return api.NewError(api.StatusTimeout, "command timed out, slot abandoned to recovery")
	}
}

// SubmitPoll is SubmitWait's non-blocking-context twin: it busy-waits
// in fixed increments instead of parking on a channel, calling
// ProcessCompletions itself since there may be no interrupt handler
// driving the queue in a pollable context.
func SubmitPoll(q *queue.Queue, slot *cmdpool.Slot, out *wire.CQE, timeout time.Duration) error {
	slot.DoneData = out
	slot.CompletionKind = cmdpool.CompletionPoll

	done := false
	onComplete := func(s *cmdpool.Slot) {
		if s.DoneData != nil {
			*s.DoneData = s.CQE
		}
		s.Status = cmdpool.SlotDone
		done = true
	}

	if err := SubmitAsync(q, slot, onComplete); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for !done {
		q.ProcessCompletions()
		if done {
			break
		}
		if time.Now().After(deadline) {
			q.Lock()
			slot.Status = cmdpool.SlotFreeOnComplete
			slot.Kind = cmdpool.KindAbortContext
			q.Unlock()
			return api.NewError(api.StatusTimeout, "command timed out, slot abandoned to recovery")
		}
		time.Sleep(pollInterval)
	}
	if !slot.DecodedStatus.Succeeded() {
		return &api.Error{Status: slot.DecodedStatus, Message: "command completed with error status"}
	}
	return nil
}
