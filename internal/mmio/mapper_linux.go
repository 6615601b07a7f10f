// File: internal/mmio/mapper_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux DMA mapper: NUMA-local page allocation via libnuma (cgo), pages
// locked in physical memory so the address handed to the device cannot
// be paged out from under an in-flight command, and — when a VFIO
// group path is supplied — a real type-1 IOMMU translation for the
// buffer's bus address (see vfio_linux.go). Without a group path the
// mapper falls back to a 1:1 software mapping (IOAddr equals the
// host virtual address); that fallback is only valid against a
// simulated controller or a platform where the IOMMU is configured in
// passthrough mode, and NewPlatformMapper documents this at the call
// site rather than silently reporting success.

//go:build linux

package mmio

/*
#cgo LDFLAGS: -lnuma
#include <numa.h>
#include <stdlib.h>
#include <sys/mman.h>

void* nvmecore_numa_alloc(int size, int node) {
	if (numa_available() == -1 || node < 0) {
		void *p = NULL;
		if (posix_memalign(&p, 4096, size) != 0) {
			return NULL;
		}
		return p;
	}
	return numa_alloc_onnode(size, node);
}
void nvmecore_numa_free(void *mem, int size, int node) {
	if (numa_available() == -1 || node < 0) {
		free(mem);
		return;
	}
	numa_free(mem, size);
}
*/
import "C"

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

type linuxMapHandle struct {
	ptr   unsafe.Pointer
	alloc int
	node  int
	iova  uint64 // non-zero only when mapped through vfio
}

type linuxMapper struct {
	vfio *vfioContainer
	next uint64 // bump allocator for IOVA space, used only when vfio != nil
}

// NewPlatformMapper returns the Linux NUMA/libnuma-backed Mapper. When
// vfioGroupPath is non-empty, every allocation is additionally mapped
// through that IOMMU group's type-1 container, so Entry.IOAddr is a
// real device-visible IOVA; the group must already be bound to the
// vfio-pci driver (see DESIGN.md). When vfioGroupPath is empty the
// mapper does not attempt IOMMU translation at all — callers must only
// use that mode against hosts where the IOMMU is absent or configured
// for passthrough, never against a production IOMMU-enabled host.
func NewPlatformMapper(vfioGroupPath string) (Mapper, error) {
	m := &linuxMapper{next: 0x100000000} // IOVA space starts well above low memory
	if vfioGroupPath != "" {
		container, err := openVFIOContainer(vfioGroupPath)
		if err != nil {
			return nil, fmt.Errorf("mmio: vfio iommu setup: %w", err)
		}
		m.vfio = container
	}
	return m, nil
}

func (m *linuxMapper) Alloc(size int, node int, dir Direction) (*Entry, error) {
	aligned := PageAlign(size)
	ptr := C.nvmecore_numa_alloc(C.int(aligned), C.int(node))
	if ptr == nil {
		return nil, fmt.Errorf("numa_alloc_onnode(%d, node=%d) failed", aligned, node)
	}
	va := unsafe.Slice((*byte)(ptr), aligned)
	if err := unix.Mlock(va); err != nil {
		C.nvmecore_numa_free(ptr, C.int(aligned), C.int(node))
		return nil, fmt.Errorf("mlock dma buffer: %w", err)
	}

	ioAddr := uint64(uintptr(ptr))
	handle := linuxMapHandle{ptr: ptr, alloc: aligned, node: node}

	if m.vfio != nil {
		iova := atomic.AddUint64(&m.next, uint64(aligned)) - uint64(aligned)
		if err := m.vfio.mapDMA(uintptr(ptr), iova, uint64(aligned), dir); err != nil {
			_ = unix.Munlock(va)
			C.nvmecore_numa_free(ptr, C.int(aligned), C.int(node))
			return nil, fmt.Errorf("vfio dma map: %w", err)
		}
		handle.iova = iova
		ioAddr = iova
	}

	return &Entry{
		VA:        va[:size],
		IOAddr:    ioAddr,
		Size:      size,
		Direction: dir,
		mapHandle: handle,
	}, nil
}

func (m *linuxMapper) Free(e *Entry) error {
	h, ok := e.mapHandle.(linuxMapHandle)
	if !ok {
		return fmt.Errorf("dma entry missing linux map handle")
	}
	if m.vfio != nil && h.iova != 0 {
		if err := m.vfio.unmapDMA(h.iova, uint64(h.alloc)); err != nil {
			return fmt.Errorf("vfio dma unmap: %w", err)
		}
	}
	_ = unix.Munlock(unsafe.Slice((*byte)(h.ptr), h.alloc))
	C.nvmecore_numa_free(h.ptr, C.int(h.alloc), C.int(h.node))
	return nil
}
