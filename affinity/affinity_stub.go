//go:build !linux && !windows
// +build !linux,!windows

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms. Queue completion
// pollers still run without pinning here — they just lose the
// NUMA-locality guarantee DMA allocation tries to set up for them.

package affinity

import "fmt"

// setAffinityPlatform is a stub for platforms where CPU affinity is not supported.
func setAffinityPlatform(cpuID int) error {
	return fmt.Errorf("affinity: pinning to cpu %d not supported on this platform", cpuID)
}
