package queue_test

import (
	"testing"

	"github.com/momentics/nvme-core/internal/cmdpool"
	"github.com/momentics/nvme-core/internal/mmio"
	"github.com/momentics/nvme-core/internal/queue"
	"github.com/momentics/nvme-core/internal/wire"
)

const testDepth = 4

// newTestQueue builds a queue pair entirely over plain byte slices
// standing in for mmap'd DMA rings and the register window, so the
// submission/completion path can be exercised without real hardware.
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

func TestQueueFreeEntriesAndSuspendResume(t *testing.T) {
	q := newTestQueue(t)
	if q.FreeEntries() != testDepth-1 {
		t.Fatalf("FreeEntries() = %d, want %d", q.FreeEntries(), testDepth-1)
	}
	if err := q.Suspend(); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if err := q.Suspend(); err == nil {
		t.Fatal("double Suspend should fail")
	}
	if err := q.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if err := q.Resume(); err == nil {
		t.Fatal("double Resume should fail")
	}
}

func TestQueueWriteAndRingAdvancesTailAndDoorbell(t *testing.T) {
	q := newTestQueue(t)
	slot, err := q.Pool.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	sqe := wire.SQE{Opcode: wire.OpFlush, CmdID: slot.ID}
	sqe.Encode(slot.SQEBuf[:])

	q.Lock()
	err = q.WriteAndRing(slot)
	q.Unlock()
	if err != nil {
		t.Fatalf("WriteAndRing: %v", err)
	}
	if q.FreeEntries() != testDepth-2 {
		t.Fatalf("FreeEntries() after one submit = %d, want %d", q.FreeEntries(), testDepth-2)
	}
}

func TestQueueProcessCompletionsInvokesCallback(t *testing.T) {
	q := newTestQueue(t)
	slot, err := q.Pool.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	called := false
	slot.OnComplete = func(s *cmdpool.Slot) { called = true }
	slot.Status = cmdpool.SlotActive

	// Synthesize a completion for this command directly into the CQ
	// ring, matching the phase the fresh queue starts with (true).
	wire.EncodeCQE(wire.CQE{CmdID: slot.ID, Phase: true}, q.CQRing.VA[0:wire.CQESize])

	n := q.ProcessCompletions()
	if n != 1 {
		t.Fatalf("ProcessCompletions() = %d, want 1", n)
	}
	if !called {
		t.Fatal("OnComplete was not invoked")
	}
}

func TestQueueFlushSynthesizesCompletionsForActiveSlots(t *testing.T) {
	q := newTestQueue(t)
	slot, err := q.Pool.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var gotStatus int
	slot.OnComplete = func(s *cmdpool.Slot) {
		gotStatus = int(s.DecodedStatus)
		q.Pool.Put(s)
	}

	if err := q.Suspend(); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if err := q.Flush(7); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if gotStatus != 7 {
		t.Fatalf("flushed status = %d, want 7", gotStatus)
	}
	if q.Pool.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() after Flush = %d, want 0", q.Pool.ActiveCount())
	}
}

func TestQueueResetRequiresSuspended(t *testing.T) {
	q := newTestQueue(t)
	if err := q.Reset(); err == nil {
		t.Fatal("Reset on a resumed queue should fail")
	}
	if err := q.Suspend(); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if err := q.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if q.FreeEntries() != testDepth-1 {
		t.Fatalf("FreeEntries() after Reset = %d, want %d", q.FreeEntries(), testDepth-1)
	}
}
