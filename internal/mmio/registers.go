// File: internal/mmio/registers.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// 32/64-bit MMIO access over a mapped PCIe BAR window, with explicit
// acquire/release fence semantics expressed as sync/atomic loads and
// stores over pointers into the mapped region — the idiomatic Go
// substitute for explicit memory-barrier instructions.

package mmio

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/momentics/nvme-core/internal/wire"
)

// Window is a mapped PCIe register window. Read/Write methods are safe
// for concurrent use by independent callers touching independent
// registers; callers that need read-modify-write atomicity across
// multiple registers must serialize externally (the controller lock).
type Window struct {
	base []byte // mmap'd BAR region
}

// NewWindow wraps an already-mapped BAR region. The caller (platform
// attach code) owns the mmap lifetime; Unmap releases it.
func NewWindow(mapped []byte) (*Window, error) {
	if len(mapped) < wire.RegisterWindowMinBytes {
		return nil, fmt.Errorf("mmio: register window too small: %d bytes", len(mapped))
	}
	return &Window{base: mapped}, nil
}

func (w *Window) ptr32(off uint32) *uint32 {
	return (*uint32)(unsafe.Pointer(&w.base[off]))
}

func (w *Window) ptr64(off uint32) *uint64 {
	return (*uint64)(unsafe.Pointer(&w.base[off]))
}

// Read32 issues an acquire-fenced 32-bit register read.
func (w *Window) Read32(off uint32) uint32 {
	return atomic.LoadUint32(w.ptr32(off))
}

// Write32 issues a release-fenced 32-bit register write.
func (w *Window) Write32(off uint32, v uint32) {
	atomic.StoreUint32(w.ptr32(off), v)
}

// Read64 issues an acquire-fenced 64-bit register read. On platforms
// whose word size makes a native 64-bit atomic load available this is
// a single access; it is never split on read, only on write (see
// Write64).
func (w *Window) Read64(off uint32) uint64 {
	return atomic.LoadUint64(w.ptr64(off))
}

// Write64 writes a 64-bit register. Some controllers do not guarantee
// an atomic 64-bit MMIO write path, so per spec this is split into the
// lower dword then the upper dword, in that order.
func (w *Window) Write64(off uint32, v uint64) {
	w.Write32(off, uint32(v))
	w.Write32(off+4, uint32(v>>32))
}

// Dead reports whether the most recent read observed the all-ones
// pattern that indicates a severed PCIe link (hot-removal).
func Dead(v uint32) bool { return v == wire.RegMissing32 }

// Unmap releases the underlying mapping. Safe to call once; callers
// must not use the Window afterward.
func (w *Window) Unmap() error {
	return unmapPlatform(w.base)
}
