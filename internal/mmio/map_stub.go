// File: internal/mmio/map_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

//go:build !linux

package mmio

import "fmt"

// MapBAR is unsupported outside Linux; this core targets Linux PCIe
// passthrough. Tests on other platforms construct a Window directly
// over a plain byte slice standing in for the register file.
func MapBAR(resourcePath string, size int) ([]byte, error) {
	return nil, fmt.Errorf("mmio: BAR mapping not supported on this platform")
}

func unmapPlatform(b []byte) error {
	return nil
}
