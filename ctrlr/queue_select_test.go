package ctrlr

import (
	"testing"

	"github.com/momentics/nvme-core/internal/queue"
)

func TestRoundRobinPickQueueStaysInBounds(t *testing.T) {
	for i := 0; i < 50; i++ {
		idx := roundRobinPickQueue(0, 4)
		if idx < 0 || idx >= 4 {
			t.Fatalf("roundRobinPickQueue returned %d, want [0,4)", idx)
		}
	}
}

func TestRoundRobinPickQueueZeroQueues(t *testing.T) {
	if idx := roundRobinPickQueue(0, 0); idx != 0 {
		t.Fatalf("roundRobinPickQueue(_, 0) = %d, want 0", idx)
	}
}

func TestSelectIOQueueRejectsWhenNoQueues(t *testing.T) {
	c := &Controller{cfg: Config{PickQueue: roundRobinPickQueue}}
	if _, err := c.selectIOQueue(0); err == nil {
		t.Fatal("expected an error with no I/O queues present")
	}
}

func TestSelectIOQueueClampsOutOfRangeIndex(t *testing.T) {
	c := &Controller{
		cfg:      Config{PickQueue: func(cpuID, numQueues int) int { return numQueues + 5 }},
		ioQueues: make([]*queue.Queue, 3),
	}
	idx, err := c.selectIOQueue(0)
	if err != nil {
		t.Fatalf("selectIOQueue: %v", err)
	}
	if idx < 0 || idx >= 3 {
		t.Fatalf("idx = %d, want [0,3)", idx)
	}
}
