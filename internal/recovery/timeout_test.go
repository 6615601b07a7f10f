package recovery_test

import (
	"testing"

	"github.com/momentics/nvme-core/internal/recovery"
)

func TestBucketRingStampReleaseTick(t *testing.T) {
	r := recovery.NewBucketRing(3)

	id := r.Stamp()
	if id != 0 {
		t.Fatalf("first Stamp() = %d, want 0", id)
	}

	if expired := r.Tick(); expired {
		t.Fatal("bucket 1 ticked expired immediately, want not-expired")
	}
	if expired := r.Tick(); expired {
		t.Fatal("bucket 2 ticked expired, want not-expired")
	}
	// Third tick recycles bucket 0, which still holds the un-released stamp.
	if expired := r.Tick(); !expired {
		t.Fatal("expected the recycled bucket holding the stamp to report expired")
	}
}

func TestBucketRingReleasePreventsExpiry(t *testing.T) {
	r := recovery.NewBucketRing(2)
	id := r.Stamp()
	r.Release(id)
	r.Tick()
	if expired := r.Tick(); expired {
		t.Fatal("released stamp should not report expired on recycle")
	}
}

func TestBucketRingReleaseOutOfRangeIsNoop(t *testing.T) {
	r := recovery.NewBucketRing(2)
	r.Release(-1)
	r.Release(99)
	occ := r.Occupancy()
	for i, c := range occ {
		if c != 0 {
			t.Fatalf("bucket %d = %d, want 0 after no-op releases", i, c)
		}
	}
}

func TestShouldReissue(t *testing.T) {
	cases := []struct {
		policy      recovery.ReissuePolicy
		hasNS       bool
		wantReissue bool
	}{
		{recovery.ReissueNever, true, false},
		{recovery.ReissueNever, false, false},
		{recovery.ReissueIfNamespaceKnown, true, true},
		{recovery.ReissueIfNamespaceKnown, false, false},
	}
	for _, c := range cases {
		got := recovery.ShouldReissue(c.policy, c.hasNS)
		if got != c.wantReissue {
			t.Errorf("ShouldReissue(%v, %t) = %t, want %t", c.policy, c.hasNS, got, c.wantReissue)
		}
	}
}
