package mmio_test

import (
	"testing"

	"github.com/momentics/nvme-core/internal/mmio"
)

func TestNewWindowRejectsUndersizedBuffer(t *testing.T) {
	if _, err := mmio.NewWindow(make([]byte, 16)); err == nil {
		t.Fatal("expected an error for a window smaller than the minimum")
	}
}

func TestWindowReadWrite32(t *testing.T) {
	win, err := mmio.NewWindow(make([]byte, 4096))
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	win.Write32(0x14, 0xdeadbeef)
	if got := win.Read32(0x14); got != 0xdeadbeef {
		t.Fatalf("Read32 = 0x%x, want 0xdeadbeef", got)
	}
}

func TestWindowReadWrite64(t *testing.T) {
	win, err := mmio.NewWindow(make([]byte, 4096))
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	win.Write64(0x00, 0x0102030405060708)
	if got := win.Read64(0x00); got != 0x0102030405060708 {
		t.Fatalf("Read64 = 0x%x, want 0x0102030405060708", got)
	}
	// Write64 splits into two 32-bit writes, low dword first.
	if lo := win.Read32(0x00); lo != 0x05060708 {
		t.Fatalf("low dword = 0x%x, want 0x05060708", lo)
	}
	if hi := win.Read32(0x04); hi != 0x01020304 {
		t.Fatalf("high dword = 0x%x, want 0x01020304", hi)
	}
}

func TestDeadDetectsAllOnes(t *testing.T) {
	if mmio.Dead(0x12345678) {
		t.Fatal("a normal register value should not read as dead")
	}
	if !mmio.Dead(0xFFFFFFFF) {
		t.Fatal("all-ones should read as dead")
	}
}
