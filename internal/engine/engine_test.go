package engine_test

import (
	"testing"
	"time"

	"github.com/momentics/nvme-core/internal/cmdpool"
	"github.com/momentics/nvme-core/internal/engine"
	"github.com/momentics/nvme-core/internal/mmio"
	"github.com/momentics/nvme-core/internal/queue"
	"github.com/momentics/nvme-core/internal/wire"
)

const testDepth = 4

func newTestQueue(t *testing.T) *queue.Queue {
	t.Helper()
	winBuf := make([]byte, 8192)
	win, err := mmio.NewWindow(winBuf)
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	sqRing := &mmio.Entry{VA: make([]byte, testDepth*wire.SQESize)}
	cqRing := &mmio.Entry{VA: make([]byte, testDepth*wire.CQESize)}
	q := queue.New(0, testDepth, sqRing, cqRing, win, 0, -1)
	for i := 1; i <= q.Pool.Depth(); i++ {
		s := q.Pool.Slot(uint16(i))
		s.PRPPage = &mmio.Entry{VA: make([]byte, 4096), IOAddr: uint64(0x900000 + i*0x1000)}
	}
	if err := q.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	return q
}

// respondAfterSubmit runs a tiny background loop that waits for a
// command to appear on the SQ ring, then synthesizes its completion —
// standing in for the device in these unit tests.
func respondAfterSubmit(q *queue.Queue, status uint16, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(200 * time.Microsecond)
		defer ticker.Stop()
		served := make(map[uint16]bool)
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				for i := 1; i <= q.Pool.Depth(); i++ {
					s := q.Pool.Slot(uint16(i))
					if s.Status == cmdpool.SlotActive && !served[uint16(i)] {
						off := 0
						wire.EncodeCQE(wire.CQE{CmdID: s.ID, Phase: true, Status: status}, q.CQRing.VA[off:off+wire.CQESize])
						served[uint16(i)] = true
					}
				}
				q.ProcessCompletions()
			}
		}
	}()
}

func TestSubmitWaitSucceeds(t *testing.T) {
	q := newTestQueue(t)
	stop := make(chan struct{})
	defer close(stop)
	respondAfterSubmit(q, 0, stop)

	slot, err := q.Pool.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	sqe := wire.SQE{Opcode: wire.OpFlush, CmdID: slot.ID}
	sqe.Encode(slot.SQEBuf[:])

	var out wire.CQE
	if err := engine.SubmitWait(q, slot, &out, 2*time.Second); err != nil {
		t.Fatalf("SubmitWait: %v", err)
	}
	if out.CmdID != slot.ID {
		t.Fatalf("completed CmdID = %d, want %d", out.CmdID, slot.ID)
	}
}

func TestSubmitWaitTimesOutAndAbandonsSlot(t *testing.T) {
	q := newTestQueue(t)
	slot, err := q.Pool.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	sqe := wire.SQE{Opcode: wire.OpFlush, CmdID: slot.ID}
	sqe.Encode(slot.SQEBuf[:])

	var out wire.CQE
	err = engine.SubmitWait(q, slot, &out, 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error, got nil")
	}
	if slot.Status != cmdpool.SlotFreeOnComplete {
		t.Fatalf("timed-out slot status = %v, want FreeOnComplete", slot.Status)
	}
}

func TestSuspendedQueuePoolRejectsGet(t *testing.T) {
	q := newTestQueue(t)
	if err := q.Suspend(); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	slot, err := q.Pool.Get()
	if err == nil {
		// pool is also suspended alongside the queue; Get itself should fail.
		q.Pool.Put(slot)
		t.Fatal("Pool.Get succeeded on a suspended queue's pool")
	}
}
