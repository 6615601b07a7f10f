// File: internal/mmio/map_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux BAR mapping via the PCI sysfs resource file and unix.Mmap.

//go:build linux

package mmio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MapBAR maps the given PCI resource file (e.g.
// /sys/bus/pci/devices/0000:01:00.0/resource0) as the register window.
func MapBAR(resourcePath string, size int) ([]byte, error) {
	f, err := os.OpenFile(resourcePath, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmio: open %s: %w", resourcePath, err)
	}
	defer f.Close()

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmio: mmap %s: %w", resourcePath, err)
	}
	return data, nil
}

func unmapPlatform(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Munmap(b)
}
