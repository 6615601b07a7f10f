// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are located
// in separate files (affinity_linux.go, affinity_windows.go, etc.) guarded by build tags.

package affinity

import "github.com/momentics/nvme-core/internal/normalize"

// SetAffinity pins current OS thread to a given logical CPU/core on supported platforms.
// On unsupported platforms returns an error.
func SetAffinity(cpuID int) error {
	return setAffinityPlatform(cpuID)
}

// PinCurrentThread pins the calling OS thread to cpu, clamping an
// out-of-range index to a valid logical CPU via normalize.CPUIndexAuto
// first. A queue-pinned completion poller is useless if it lands on
// the wrong core, but failing outright over a miscomputed index is
// worse than clamping to *some* valid CPU, so this is the call every
// per-queue poller goroutine uses instead of SetAffinity directly.
func PinCurrentThread(cpu int) error {
	return SetAffinity(normalize.CPUIndexAuto(cpu))
}
