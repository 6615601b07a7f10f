// File: ctrlr/hwstart.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// HwStart/HwStop: the CC/CSTS register dance that brings the
// controller's admin queue live, per §4.6.

package ctrlr

import (
	"fmt"
	"time"

	"github.com/momentics/nvme-core/internal/wire"
)

const rdyPollInterval = 1 * time.Millisecond

func (c *Controller) toReadyTimeout() time.Duration {
	return time.Duration(c.cap.TO) * 500 * time.Millisecond
}

// hwStart runs steps (a)-(e) of the bring-up sequence: disable if
// already enabled, program AQA/ASQ/ACQ, program CC, wait for RDY, then
// read VS and reject an all-ones (missing) controller.
func (c *Controller) hwStart() error {
	deadline := time.Now().Add(c.toReadyTimeout())

	if wire.CSTSReady(c.win.Read32(wire.RegCSTS)) {
		c.win.Write32(wire.RegCC, 0)
		for wire.CSTSReady(c.win.Read32(wire.RegCSTS)) {
			if time.Now().After(deadline) {
				return fmt.Errorf("ctrlr: timed out waiting for CSTS.RDY=0")
			}
			time.Sleep(rdyPollInterval)
		}
	}

	c.win.Write32(wire.RegAQA, wire.EncodeAQA(c.cfg.AdminSQDepth, c.cfg.AdminCQDepth))
	c.win.Write64(wire.RegASQ, c.admin.SQRing.IOAddr)
	c.win.Write64(wire.RegACQ, c.admin.CQRing.IOAddr)

	c.win.Write32(wire.RegCC, wire.EncodeCC(true, c.mps))

	deadline = time.Now().Add(c.toReadyTimeout())
	for !wire.CSTSReady(c.win.Read32(wire.RegCSTS)) {
		if time.Now().After(deadline) {
			return fmt.Errorf("ctrlr: timed out waiting for CSTS.RDY=1")
		}
		time.Sleep(rdyPollInterval)
	}

	vs := c.win.Read32(wire.RegVS)
	if mmioDead(vs) {
		return fmt.Errorf("ctrlr: VS register reads all-ones, controller missing")
	}
	c.vs = vs
	return nil
}

// hwStop sets CC.EN=0 and waits for CSTS.RDY to drop, used by both
// Stop and HwReset.
func (c *Controller) hwStop() error {
	c.win.Write32(wire.RegCC, 0)
	deadline := time.Now().Add(c.toReadyTimeout())
	for wire.CSTSReady(c.win.Read32(wire.RegCSTS)) {
		if time.Now().After(deadline) {
			return fmt.Errorf("ctrlr: timed out waiting for CSTS.RDY=0 on stop")
		}
		time.Sleep(rdyPollInterval)
	}
	return nil
}

func mmioDead(v uint32) bool { return v == wire.RegMissing32 }
