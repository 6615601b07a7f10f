// File: internal/wire/cqe.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package wire

// CQESize is the fixed size of a completion queue entry (IOCQES=4 -> 16B).
const CQESize = 16

// CQE is a decoded view over the 16-byte completion queue entry.
type CQE struct {
	CmdSpecific uint32
	SQHead      uint16
	SQID        uint16
	CmdID       uint16
	Phase       bool
	Status      uint16 // raw 15-bit status field: SC[7:0] | SCT[10:8] | M[13] | DNR[14], phase already stripped
}

// SC and SCT extract the status-code and status-code-type fields from
// the raw status bitfield.
func (c CQE) SC() uint8  { return uint8(c.Status & 0xFF) }
func (c CQE) SCT() uint8 { return uint8((c.Status >> 8) & 0x7) }
func (c CQE) More() bool { return c.Status&(1<<13) != 0 }
func (c CQE) DNR() bool  { return c.Status&(1<<14) != 0 }

// DecodeCQE unpacks a 16-byte little-endian CQE from the completion ring.
func DecodeCQE(buf []byte) CQE {
	_ = buf[:CQESize]
	raw := getLE16(buf[14:16])
	return CQE{
		CmdSpecific: getLE32(buf[0:4]),
		SQHead:      getLE16(buf[8:10]),
		SQID:        getLE16(buf[10:12]),
		CmdID:       getLE16(buf[12:14]),
		Phase:       raw&0x1 != 0,
		Status:      raw >> 1,
	}
}

// EncodeCQE is the inverse of DecodeCQE, used by tests to synthesize
// controller completions without real hardware.
func EncodeCQE(c CQE, buf []byte) {
	_ = buf[:CQESize]
	putLE32(buf[0:4], c.CmdSpecific)
	putLE16(buf[8:10], c.SQHead)
	putLE16(buf[10:12], c.SQID)
	putLE16(buf[12:14], c.CmdID)
	raw := c.Status << 1
	if c.Phase {
		raw |= 0x1
	}
	putLE16(buf[14:16], raw)
}
