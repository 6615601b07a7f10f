// File: ctrlr/logpage.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// GetLogPage wraps the GET LOG PAGE admin command (opcode 0x02) for
// the handful of fixed-size pages the debug CLI cares about (SMART/
// Health at log id 0x02).

package ctrlr

import (
	"fmt"

	"github.com/momentics/nvme-core/internal/mmio"
	"github.com/momentics/nvme-core/internal/wire"
)

const (
	LogPageSMARTHealth = 0x02
	logPageSize        = 512
)

// GetLogPage reads logID for nsid (0xFFFFFFFF targets the controller
// rather than a specific namespace) and returns the raw page bytes.
func (c *Controller) GetLogPage(nsid uint32, logID uint8) ([]byte, error) {
	page, err := c.dma.Alloc(logPageSize, -1, mmio.DirFromDevice)
	if err != nil {
		return nil, fmt.Errorf("get log page: alloc: %w", err)
	}
	defer c.dma.Free(page)

	numDwords := uint32(logPageSize/4) - 1
	_, err = c.submitAdmin(adminCmd{
		Opcode: wire.OpGetLogPage,
		NSID:   nsid,
		PRP1:   page.IOAddr,
		CDW10:  uint32(logID) | (numDwords << 16),
	})
	if err != nil {
		return nil, fmt.Errorf("get log page %#x: %w", logID, err)
	}

	out := make([]byte, logPageSize)
	copy(out, page.VA)
	return out, nil
}
