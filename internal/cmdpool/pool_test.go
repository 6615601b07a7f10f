package cmdpool_test

import (
	"testing"

	"github.com/momentics/nvme-core/internal/cmdpool"
)

func TestPoolGetPutRoundTrip(t *testing.T) {
	p := cmdpool.New(4)
	if p.Depth() != 4 {
		t.Fatalf("Depth() = %d, want 4", p.Depth())
	}
	if p.FreeCount() != 4 || p.ActiveCount() != 0 {
		t.Fatalf("fresh pool: free=%d active=%d, want 4/0", p.FreeCount(), p.ActiveCount())
	}

	s, err := p.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.ID == 0 {
		t.Fatal("Get returned the reserved id 0")
	}
	if p.ActiveCount() != 1 || p.FreeCount() != 3 {
		t.Fatalf("after Get: free=%d active=%d, want 3/1", p.FreeCount(), p.ActiveCount())
	}

	p.Put(s)
	if p.ActiveCount() != 0 || p.FreeCount() != 4 {
		t.Fatalf("after Put: free=%d active=%d, want 4/0", p.FreeCount(), p.ActiveCount())
	}
}

func TestPoolExhaustion(t *testing.T) {
	p := cmdpool.New(2)
	s1, err := p.Get()
	if err != nil {
		t.Fatalf("Get 1: %v", err)
	}
	_, err = p.Get()
	if err != nil {
		t.Fatalf("Get 2: %v", err)
	}
	if _, err := p.Get(); err == nil {
		t.Fatal("Get on exhausted pool succeeded, want QueueFull error")
	}
	p.Put(s1)
	if _, err := p.Get(); err != nil {
		t.Fatalf("Get after Put: %v", err)
	}
}

func TestPoolDoubleFreePanics(t *testing.T) {
	p := cmdpool.New(2)
	s, _ := p.Get()
	p.Put(s)
	defer func() {
		if recover() == nil {
			t.Fatal("double Put did not panic")
		}
	}()
	p.Put(s)
}

func TestPoolSlotLookupRejectsReservedID(t *testing.T) {
	p := cmdpool.New(4)
	if p.Slot(0) != nil {
		t.Fatal("Slot(0) should always be nil")
	}
	s, _ := p.Get()
	if p.Slot(s.ID) != s {
		t.Fatal("Slot(id) did not return the slot obtained via Get")
	}
}

func TestPoolSuspendedRejectsGet(t *testing.T) {
	p := cmdpool.New(2)
	p.SetSuspended(true)
	if _, err := p.Get(); err == nil {
		t.Fatal("Get on suspended pool succeeded")
	}
}

func TestPoolForEachActiveOrderAndReset(t *testing.T) {
	p := cmdpool.New(3)
	s1, _ := p.Get()
	s2, _ := p.Get()

	var seen []uint16
	p.ForEachActive(func(s *cmdpool.Slot) { seen = append(seen, s.ID) })
	if len(seen) != 2 || seen[0] != s1.ID || seen[1] != s2.ID {
		t.Fatalf("ForEachActive order = %v, want [%d %d]", seen, s1.ID, s2.ID)
	}

	p.Reset()
	if p.ActiveCount() != 0 || p.FreeCount() != 3 {
		t.Fatalf("after Reset: free=%d active=%d, want 3/0", p.FreeCount(), p.ActiveCount())
	}
}
