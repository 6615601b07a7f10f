// File: ctrlr/info.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Read-only accessors for the identify-derived descriptive fields,
// kept separate from controller.go since they exist purely to let
// callers (the debug CLI, log dispatch) read what Bootstrap populated
// without reaching into the struct.

package ctrlr

import "github.com/momentics/nvme-core/internal/wire"

// Identity bundles the descriptive fields IDENTIFY CONTROLLER populated
// during Bootstrap.
type Identity struct {
	Vendor   string
	Model    string
	Serial   string
	Firmware string
	IEEEOUI  [3]byte
	MaxAEN   int
	NSCount  int
}

// Identity returns a copy of the controller's identify-derived fields.
func (c *Controller) Identity() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Identity{
		Vendor:   c.vendor,
		Model:    c.model,
		Serial:   c.serial,
		Firmware: c.firmware,
		IEEEOUI:  c.ieeeOUI,
		MaxAEN:   c.maxAEN,
		NSCount:  c.nsCount,
	}
}

// Namespaces returns a snapshot of every known namespace's public
// fields, keyed by NSID.
func (c *Controller) Namespaces() map[uint32]Namespace {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uint32]Namespace, len(c.namespaces))
	for nsid, ns := range c.namespaces {
		ns.mu.Lock()
		out[nsid] = Namespace{
			NSID:       ns.NSID,
			BlockCount: ns.BlockCount,
			LBAShift:   ns.LBAShift,
			MetaSize:   ns.MetaSize,
			PIEnabled:  ns.PIEnabled,
			EUI64:      ns.EUI64,
			Online:     ns.Online,
			ReadOnly:   ns.ReadOnly,
		}
		ns.mu.Unlock()
	}
	return out
}

// RegisterSnapshot dumps the handful of controller registers relevant
// to a debug CLI; it is a plain struct rather than the live mmio.Window
// so it can be printed after Detach too.
type RegisterSnapshot struct {
	CAPRaw uint64
	VS     uint32
	CSTS   uint32
	CC     uint32
}

// DumpRegisters reads the live BAR; returns the zero value if the
// controller has not been Attached.
func (c *Controller) DumpRegisters() RegisterSnapshot {
	c.mu.Lock()
	win := c.win
	c.mu.Unlock()
	if win == nil {
		return RegisterSnapshot{}
	}
	return RegisterSnapshot{
		CAPRaw: win.Read64(wire.RegCAP),
		VS:     win.Read32(wire.RegVS),
		CSTS:   win.Read32(wire.RegCSTS),
		CC:     win.Read32(wire.RegCC),
	}
}
