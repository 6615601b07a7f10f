package ctrlr

import (
	"testing"

	"github.com/momentics/nvme-core/api"
)

func TestFormatNamespaceRejectsWhenNotOperational(t *testing.T) {
	c := New(Config{ResourcePath: "unused"})
	if err := c.FormatNamespace(1, 0, 0); err == nil {
		t.Fatal("expected an error when the controller is not operational")
	}
}

func TestFormatNamespaceRejectsUnknownNamespace(t *testing.T) {
	c := New(Config{ResourcePath: "unused"})
	if _, ok := c.st.SetState(api.StateStarted); !ok {
		t.Fatal("setup: Init -> Started should be legal")
	}
	if _, ok := c.st.SetState(api.StateOperational); !ok {
		t.Fatal("setup: Started -> Operational should be legal")
	}
	if err := c.FormatNamespace(42, 0, 0); err == nil {
		t.Fatal("expected an error for an unknown namespace id")
	}
}

func TestStopRejectsFromInit(t *testing.T) {
	c := New(Config{})
	if err := c.Stop(); err == nil {
		t.Fatal("Stop from Init should be rejected since Init cannot transition to Quiesced")
	}
	if c.State() != api.StateInit {
		t.Fatalf("state changed after a rejected Stop: %v", c.State())
	}
}

func TestStatsReportsStateAndCounters(t *testing.T) {
	c := New(Config{})
	st := c.Stats()
	if st.State != api.StateInit {
		t.Fatalf("Stats().State = %v, want Init", st.State)
	}
	if st.ResetCount != 0 || st.AbortedCmds != 0 {
		t.Fatalf("fresh controller: reset=%d aborted=%d, want 0/0", st.ResetCount, st.AbortedCmds)
	}
	if st.AdminQueue.QueueID != 0 || len(st.IOQueues) != 0 {
		t.Fatalf("fresh controller should report no queues, got admin=%+v io=%v", st.AdminQueue, st.IOQueues)
	}
}

func TestTaskMgmtAbortRejectsWhenNotOperational(t *testing.T) {
	c := New(Config{})
	err := c.TaskMgmtAbort(func(request any) bool { return true })
	if err == nil {
		t.Fatal("expected an error when the controller is not operational")
	}
}
