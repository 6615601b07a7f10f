// File: ctrlr/format.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// FormatNamespace is a supplemented admin wrapper (FORMAT NVM, opcode
// 0x80): the namespace is forced offline for the duration, the command
// is issued on the admin queue, and the namespace is re-identified and
// re-validated afterward so BlockCount/LBAShift reflect the new layout.

package ctrlr

import (
	"fmt"

	"github.com/momentics/nvme-core/api"
	"github.com/momentics/nvme-core/internal/wire"
)

// FormatNamespace issues FORMAT NVM against nsid with the given LBA
// format index, blocking until the admin command completes. lbaf
// selects an index into the namespace's supported LBA format list
// (CDW10 bits 3:0); ses selects the secure-erase setting (CDW10 bits
// 11:9), 0 meaning no secure erase.
func (c *Controller) FormatNamespace(nsid uint32, lbaf uint8, ses uint8) error {
	if c.State() != api.StateOperational {
		return api.NewError(api.StatusNotReady, "controller is not operational")
	}

	c.mu.Lock()
	ns := c.namespaces[nsid]
	c.mu.Unlock()
	if ns == nil {
		return api.NewError(api.StatusInvalidNsOrFormat, "unknown namespace")
	}

	ns.mu.Lock()
	ns.Online = false
	ns.mu.Unlock()

	cdw10 := uint32(lbaf&0xF) | uint32(ses&0x7)<<9
	_, err := c.submitAdmin(adminCmd{
		Opcode: wire.OpFormatNVM,
		NSID:   nsid,
		CDW10:  cdw10,
	})
	if err != nil {
		return fmt.Errorf("ctrlr: format namespace %d: %w", nsid, err)
	}

	refreshed, err := c.identifyNamespace(nsid)
	if err != nil {
		return fmt.Errorf("ctrlr: format namespace %d: re-identify: %w", nsid, err)
	}
	if refreshed == nil {
		return api.NewError(api.StatusInvalidNsOrFormat, "namespace reports zero blocks after format")
	}

	c.mu.Lock()
	c.namespaces[nsid] = refreshed
	c.mu.Unlock()

	return refreshed.Validate()
}
