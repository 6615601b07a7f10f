package prp_test

import (
	"testing"

	"github.com/momentics/nvme-core/internal/cmdpool"
	"github.com/momentics/nvme-core/internal/mmio"
	"github.com/momentics/nvme-core/internal/prp"
)

func newSlotWithPRPPage(t *testing.T) *cmdpool.Slot {
	t.Helper()
	pool := cmdpool.New(1)
	s, err := pool.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	s.PRPPage = &mmio.Entry{VA: make([]byte, 4096), IOAddr: 0x900000}
	return s
}

func TestBuilderSinglePageNoSplit(t *testing.T) {
	b := prp.NewBuilder(0, 1<<20) // 4KiB pages
	sg := prp.NewSGArray([]prp.Element{{IOAddr: 0x100000, Len: 4096}})
	slot := newSlotWithPRPPage(t)

	res, err := b.Build(slot, sg, cmdpool.SGPosition{}, 4096)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.PRP1 != 0x100000 {
		t.Fatalf("PRP1 = %#x, want 0x100000", res.PRP1)
	}
	if res.PRP2 != 0 {
		t.Fatalf("PRP2 = %#x, want 0 (single page)", res.PRP2)
	}
	if res.CoveredBytes != 4096 || res.Split {
		t.Fatalf("CoveredBytes=%d Split=%t, want 4096/false", res.CoveredBytes, res.Split)
	}
}

func TestBuilderTwoPagesBarePRP2(t *testing.T) {
	b := prp.NewBuilder(0, 1<<20)
	sg := prp.NewSGArray([]prp.Element{{IOAddr: 0x100000, Len: 8192}})
	slot := newSlotWithPRPPage(t)

	res, err := b.Build(slot, sg, cmdpool.SGPosition{}, 8192)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.PRP1 != 0x100000 {
		t.Fatalf("PRP1 = %#x, want 0x100000", res.PRP1)
	}
	// Exactly two pages, full coverage: PRP2 must be promoted to the
	// bare second-page address rather than a one-entry list.
	if res.PRP2 != 0x101000 {
		t.Fatalf("PRP2 = %#x, want bare 0x101000 (single-entry promotion)", res.PRP2)
	}
	if res.CoveredBytes != 8192 || res.Split {
		t.Fatalf("CoveredBytes=%d Split=%t, want 8192/false", res.CoveredBytes, res.Split)
	}
}

func TestBuilderMultiPageUsesListPage(t *testing.T) {
	b := prp.NewBuilder(0, 1<<20)
	sg := prp.NewSGArray([]prp.Element{{IOAddr: 0x100000, Len: 3 * 4096}})
	slot := newSlotWithPRPPage(t)

	res, err := b.Build(slot, sg, cmdpool.SGPosition{}, 3*4096)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.PRP2 != slot.PRPPage.IOAddr {
		t.Fatalf("PRP2 = %#x, want list page address %#x", res.PRP2, slot.PRPPage.IOAddr)
	}
	if res.CoveredBytes != 3*4096 || res.Split {
		t.Fatalf("CoveredBytes=%d Split=%t, want %d/false", res.CoveredBytes, res.Split, 3*4096)
	}
}

func TestBuilderSplitsOnMisalignedElement(t *testing.T) {
	b := prp.NewBuilder(0, 1<<20)
	// First element is a whole page; the second starts mid-page, which
	// is illegal for any PRP entry after the first and forces a split.
	sg := prp.NewSGArray([]prp.Element{
		{IOAddr: 0x100000, Len: 4096},
		{IOAddr: 0x200010, Len: 4096},
	})
	slot := newSlotWithPRPPage(t)

	res, err := b.Build(slot, sg, cmdpool.SGPosition{}, 8192)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !res.Split {
		t.Fatal("expected Split=true when the second element is misaligned")
	}
	if res.CoveredBytes != 4096 {
		t.Fatalf("CoveredBytes = %d, want 4096 (only the first page covered)", res.CoveredBytes)
	}
}
