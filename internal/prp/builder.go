// File: internal/prp/builder.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Converts a scatter-gather cursor into PRP1/PRP2 (and, if needed, a
// PRP list page) for one child command, possibly stopping short of the
// full requested length — the caller then allocates another slot and
// resumes the builder at the returned cursor (the split case).

package prp

import (
	"encoding/binary"
	"fmt"

	"github.com/momentics/nvme-core/internal/cmdpool"
)

// Builder fills PRP fields using the negotiated memory page size.
type Builder struct {
	pageShift uint8 // CC.MPS: page size = 1 << (12 + MPS)
	maxPRP    int   // maxTransfer / page, upper bound on list entries
}

// NewBuilder constructs a Builder for the given CC.MPS value and
// maximum transfer size in bytes.
func NewBuilder(mps uint8, maxTransferBytes int) *Builder {
	pageShift := 12 + mps
	page := 1 << pageShift
	return &Builder{pageShift: pageShift, maxPRP: maxTransferBytes / page}
}

func (b *Builder) page() int { return 1 << b.pageShift }

// Result carries what the caller needs to decide whether to resume
// with a child command.
type Result struct {
	PRP1         uint64
	PRP2         uint64
	CoveredBytes int
	NextPos      cmdpool.SGPosition
	Split        bool // true iff remaining bytes still need a further child command
}

// Build fills PRP1/PRP2 (and the slot's PRP list page, if used) for one
// child command starting at pos, covering up to `remaining` bytes of
// the base request.
func (b *Builder) Build(slot *cmdpool.Slot, sg *SGArray, pos cmdpool.SGPosition, remaining int) (Result, error) {
	if remaining <= 0 {
		return Result{}, fmt.Errorf("prp: remaining must be positive")
	}
	page := b.page()
	mask := uint64(page - 1)

	elem := sg.Get(pos.ElementIndex)
	if elem.Len == 0 {
		return Result{}, fmt.Errorf("prp: scatter-gather cursor out of range at element %d", pos.ElementIndex)
	}
	addr := elem.IOAddr + uint64(pos.ByteOffset)
	elemRemain := elem.Len - pos.ByteOffset

	firstLen := elemRemain
	if room := page - int(addr&mask); room < firstLen {
		firstLen = room
	}
	if firstLen > remaining {
		firstLen = remaining
	}

	prp1 := addr
	covered := firstLen
	remaining -= firstLen

	cur, elemIdx := advance(sg, pos, firstLen)

	if remaining <= 0 {
		return Result{
			PRP1:         prp1,
			PRP2:         0,
			CoveredBytes: covered,
			NextPos:      cur,
			Split:        false,
		}, nil
	}

	// Need PRP2: either a single page-aligned entry, or a PRP list.
	listEntries := make([]uint64, 0, b.maxPRP)
	pos2 := cur
	_ = elemIdx
	for remaining > 0 {
		if len(listEntries) >= b.maxPRP {
			break
		}
		e := sg.Get(pos2.ElementIndex)
		if e.Len == 0 {
			break // cursor ran off the end of the SG array
		}
		entryAddr := e.IOAddr + uint64(pos2.ByteOffset)
		if pos2.ByteOffset == 0 && entryAddr&mask != 0 {
			// NVMe requires every PRP entry after the first to be
			// page-aligned; a fresh element starting mid-page forces
			// a split here.
			break
		}
		chunk := e.Len - pos2.ByteOffset
		if chunk > page {
			chunk = page
		}
		if chunk > remaining {
			chunk = remaining
		}
		listEntries = append(listEntries, entryAddr)
		remaining -= chunk
		covered += chunk
		pos2, _ = advance(sg, pos2, chunk)
	}

	split := remaining > 0

	var prp2 uint64
	if len(listEntries) == 1 && !split {
		// Open-question decision: promotion to a bare PRP2 is only
		// safe when the stop reason was full coverage, never when the
		// loop broke early due to misalignment with bytes still
		// remaining (that case must keep going through the list path
		// representation so the split boundary is unambiguous).
		prp2 = listEntries[0]
	} else {
		if slot.PRPPage == nil {
			return Result{}, fmt.Errorf("prp: slot has no preallocated PRP list page")
		}
		if len(listEntries)*8 > len(slot.PRPPage.VA) {
			return Result{}, fmt.Errorf("prp: list of %d entries exceeds preallocated page", len(listEntries))
		}
		for i, e := range listEntries {
			binary.LittleEndian.PutUint64(slot.PRPPage.VA[i*8:i*8+8], e)
		}
		prp2 = slot.PRPPage.IOAddr
	}

	return Result{
		PRP1:         prp1,
		PRP2:         prp2,
		CoveredBytes: covered,
		NextPos:      pos2,
		Split:        split,
	}, nil
}

// advance walks an SG cursor forward by n bytes within the current
// element, or to the start of the next element when n fully drains it.
func advance(sg *SGArray, pos cmdpool.SGPosition, n int) (cmdpool.SGPosition, int) {
	elem := sg.Get(pos.ElementIndex)
	newOff := pos.ByteOffset + n
	if newOff >= elem.Len {
		return cmdpool.SGPosition{ElementIndex: pos.ElementIndex + 1, ByteOffset: 0}, pos.ElementIndex + 1
	}
	return cmdpool.SGPosition{ElementIndex: pos.ElementIndex, ByteOffset: newOff}, pos.ElementIndex
}
