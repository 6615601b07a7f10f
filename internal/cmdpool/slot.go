// File: internal/cmdpool/slot.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One command slot per logical in-flight command. Grounded on the
// NvmeCore_GetCmdInfo/PutCmdInfo free/active list pair, translated per
// the pool-with-indices pattern: prev/next are slot indices, not
// pointers, so the pool stays a flat array with no per-slot heap
// allocation after construction.

package cmdpool

import (
	"time"

	"github.com/momentics/nvme-core/api"
	"github.com/momentics/nvme-core/internal/mmio"
	"github.com/momentics/nvme-core/internal/wire"
)

// SlotStatus is a slot's lifecycle state, distinct from api.Status (which
// decodes hardware completion outcomes).
type SlotStatus int

const (
	SlotFree SlotStatus = iota
	SlotActive
	SlotDone
	SlotFreeOnComplete // abandoned by SubmitWait/Poll timeout; recovery owns cleanup
)

func (s SlotStatus) String() string {
	switch s {
	case SlotFree:
		return "free"
	case SlotActive:
		return "active"
	case SlotDone:
		return "done"
	case SlotFreeOnComplete:
		return "free-on-complete"
	default:
		return "unknown"
	}
}

// Kind tags what a slot's command is, for logging and abort-predicate
// matching.
type Kind int

const (
	KindAdmin Kind = iota
	KindBlockIO
	KindPassthrough
	KindAbortContext
)

// CompletionKind selects which discriminated-union payload a slot's
// completion dispatch carries, replacing function-pointer dispatch
// with an enum switch in the completion engine.
type CompletionKind int

const (
	CompletionSyncWait CompletionKind = iota
	CompletionPoll
	CompletionBlockIO
	CompletionAdminPassthru
	CompletionAERWatch
	CompletionDummy
)

// Slot is one entry in a queue's fixed command-descriptor array. Slot
// id 0 is never assigned to a real command — it is reserved so a CQE
// carrying cmd_id==0 is recognizable as invalid.
type Slot struct {
	ID     uint16
	Status SlotStatus
	Kind   Kind

	prev, next int // intrusive list links; -1 terminates

	SQEBuf [wire.SQESize]byte // staged SQE, filled by caller + PRP builder
	CQE    wire.CQE           // cached copy of the completion, valid once Status==SlotDone

	DecodedStatus api.Status

	CompletionKind CompletionKind
	OnComplete     func(*Slot)      // dispatched by the engine's completion loop; never nil while Active
	Cleanup        func()           // deferred resource release (e.g. passthrough DMA free on timeout)
	DoneData       *wire.CQE        // SubmitWait's out-CQE destination, nil otherwise
	Waiter         chan struct{}    // closed by OnComplete for SubmitWait wakeups (SubmitPoll does not use it)

	Request any // upper-layer request handle, opaque to the core

	BaseIdx     int  // index of the base slot for a split command's child, -1 if not a child
	ChildCount  int32 // outstanding child count, meaningful only on the base
	NamespaceID uint32

	TimeoutBucket int

	PRPPage *mmio.Entry // preallocated once at queue construction, reused across commands
	SGPos   SGPosition  // saved scatter-gather cursor for split-command resumption

	RequestedBytes int
	RemainingBytes int

	StartedAt time.Time
}

// SGPosition is a resumable cursor into an upper-layer scatter-gather
// array: element index plus byte offset within that element. The PRP
// builder accepts and returns a nonzero offset: a child command that
// ends partway through an element (for example when the PRP list
// reaches its entry limit) leaves the next child starting mid-element.
type SGPosition struct {
	ElementIndex int
	ByteOffset   int
}

// reset clears per-command fields but keeps the slot's id and its
// preallocated PRP page, so Get returns a slot ready for immediate use.
func (s *Slot) reset() {
	s.Status = SlotFree
	s.Kind = KindAdmin
	s.DecodedStatus = api.StatusSuccess
	s.CompletionKind = CompletionDummy
	s.OnComplete = nil
	s.Cleanup = nil
	s.DoneData = nil
	s.Waiter = nil
	s.Request = nil
	s.BaseIdx = -1
	s.ChildCount = 0
	s.NamespaceID = 0
	s.TimeoutBucket = 0
	s.SGPos = SGPosition{}
	s.RequestedBytes = 0
	s.RemainingBytes = 0
	for i := range s.SQEBuf {
		s.SQEBuf[i] = 0
	}
}
