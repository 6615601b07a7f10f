// File: internal/mmio/mapper_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build !linux

package mmio

import "fmt"

type stubMapper struct{}

// NewPlatformMapper returns a plain-heap Mapper on platforms without a
// libnuma/VFIO binding. vfioGroupPath is ignored — no IOMMU translation
// is available on this build target. The IOAddr is synthetic and only
// usable against a simulated controller in tests.
func NewPlatformMapper(vfioGroupPath string) (Mapper, error) { return &stubMapper{}, nil }

func (stubMapper) Alloc(size int, node int, dir Direction) (*Entry, error) {
	aligned := PageAlign(size)
	va := make([]byte, aligned)
	if len(va) == 0 {
		return nil, fmt.Errorf("mmio: zero-length dma alloc")
	}
	return &Entry{
		VA:        va[:size],
		IOAddr:    uint64(uintptr(0)) + 0, // unusable against real hardware
		Size:      size,
		Direction: dir,
	}, nil
}

func (stubMapper) Free(e *Entry) error { return nil }
