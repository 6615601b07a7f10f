// File: internal/mmio/vfio_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// VFIO type-1 IOMMU container/group setup and DMA_MAP/DMA_UNMAP, so
// dma_alloc's I/O address is an actual device-visible IOVA rather than
// the host virtual address's own bits. Grounded on the Linux
// <linux/vfio.h> userspace driver contract: open the container,
// bind a group to it (the group must already be bound to the vfio-pci
// driver before this process starts, ordinarily via the device's
// sysfs driver_override), select the type-1 IOMMU backend, then every
// DMA buffer is mapped into that address space before it is handed to
// the device in a PRP entry.

//go:build linux

package mmio

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl request numbers from <linux/vfio.h>: _IO(VFIO_TYPE, VFIO_BASE+n)
// with VFIO_TYPE = ';' (0x3b) and VFIO_BASE = 100.
const (
	vfioGetAPIVersion        = 0x3b64
	vfioCheckExtension       = 0x3b65
	vfioSetIOMMU             = 0x3b66
	vfioGroupGetStatus       = 0x3b67
	vfioGroupSetContainer    = 0x3b68
	vfioGroupUnsetContainer  = 0x3b69
	vfioIOMMUMapDMA          = 0x3b71
	vfioIOMMUUnmapDMA        = 0x3b72
	vfioAPIVersion           = 0
	vfioType1IOMMU           = 1
	vfioGroupFlagsViable     = 1 << 0
	vfioDMAMapFlagRead       = 1 << 0
	vfioDMAMapFlagWrite      = 1 << 1
)

type vfioGroupStatus struct {
	ArgSz uint32
	Flags uint32
}

type vfioIOMMUTyp1DMAMap struct {
	ArgSz uint32
	Flags uint32
	VAddr uint64
	IOVA  uint64
	Size  uint64
}

type vfioIOMMUTyp1DMAUnmap struct {
	ArgSz uint32
	Flags uint32
	IOVA  uint64
	Size  uint64
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// vfioContainer owns the /dev/vfio/vfio container fd and one bound
// group, set to the type-1 IOMMU backend. One container is shared by
// every DMA buffer a controller allocates.
type vfioContainer struct {
	containerFd int
	groupFd     int
}

func openVFIOContainer(groupPath string) (*vfioContainer, error) {
	container, err := os.OpenFile("/dev/vfio/vfio", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open vfio container: %w", err)
	}
	cfd := int(container.Fd())

	if err := ioctl(cfd, vfioGetAPIVersion, nil); err != nil {
		container.Close()
		return nil, fmt.Errorf("vfio api version check: %w", err)
	}

	group, err := os.OpenFile(groupPath, os.O_RDWR, 0)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("open vfio group %s: %w", groupPath, err)
	}
	gfd := int(group.Fd())

	var status vfioGroupStatus
	status.ArgSz = uint32(unsafe.Sizeof(status))
	if err := ioctl(gfd, vfioGroupGetStatus, unsafe.Pointer(&status)); err != nil {
		container.Close()
		group.Close()
		return nil, fmt.Errorf("vfio group status: %w", err)
	}
	if status.Flags&vfioGroupFlagsViable == 0 {
		container.Close()
		group.Close()
		return nil, fmt.Errorf("vfio group %s not viable (device not bound to vfio-pci?)", groupPath)
	}

	if err := ioctl(gfd, vfioGroupSetContainer, unsafe.Pointer(&cfd)); err != nil {
		container.Close()
		group.Close()
		return nil, fmt.Errorf("vfio group set container: %w", err)
	}
	if err := ioctl(cfd, vfioSetIOMMU, unsafe.Pointer(uintptr(vfioType1IOMMU))); err != nil {
		container.Close()
		group.Close()
		return nil, fmt.Errorf("vfio set type1 iommu: %w", err)
	}

	return &vfioContainer{containerFd: cfd, groupFd: gfd}, nil
}

// mapDMA establishes a type-1 IOMMU translation for [vaddr, vaddr+size)
// to the IOVA of the caller's choosing, so a PRP entry built from iova
// is a real device-visible bus address rather than the host's own.
func (v *vfioContainer) mapDMA(vaddr uintptr, iova uint64, size uint64, dir Direction) error {
	req := vfioIOMMUTyp1DMAMap{
		VAddr: uint64(vaddr),
		IOVA:  iova,
		Size:  size,
	}
	req.ArgSz = uint32(unsafe.Sizeof(req))
	switch dir {
	case DirToDevice:
		req.Flags = vfioDMAMapFlagRead
	case DirFromDevice:
		req.Flags = vfioDMAMapFlagWrite
	default:
		req.Flags = vfioDMAMapFlagRead | vfioDMAMapFlagWrite
	}
	return ioctl(v.containerFd, vfioIOMMUMapDMA, unsafe.Pointer(&req))
}

func (v *vfioContainer) unmapDMA(iova uint64, size uint64) error {
	req := vfioIOMMUTyp1DMAUnmap{IOVA: iova, Size: size}
	req.ArgSz = uint32(unsafe.Sizeof(req))
	return ioctl(v.containerFd, vfioIOMMUUnmapDMA, unsafe.Pointer(&req))
}

func (v *vfioContainer) close() {
	unix.Close(v.groupFd)
	unix.Close(v.containerFd)
}
