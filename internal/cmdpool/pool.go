// File: internal/cmdpool/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed-size command slot pool with intrusive free/active lists modeled
// as indices, per NvmeCore_GetCmdInfo/PutCmdInfo. Every method here
// requires the caller to already hold the owning queue's lock (§5);
// the pool itself does no locking.

package cmdpool

import "github.com/momentics/nvme-core/api"

// Pool is a queue's fixed array of command slots plus the free/active
// list heads. Depth is chosen at construction and never changes.
type Pool struct {
	slots []Slot // index 0 unused; slots[1..depth] are the real descriptors

	freeHead, freeTail     int
	activeHead, activeTail int
	activeCount            int

	suspended bool
}

// New constructs a pool with `depth` usable slots (ids 1..depth). Each
// slot's PRPPage must be set before the pool is used; the controller
// does this once per queue (ctrlr's attachPRPPages), right after
// queue.New builds the pool.
func New(depth int) *Pool {
	p := &Pool{
		slots: make([]Slot, depth+1),
	}
	for i := 1; i <= depth; i++ {
		p.slots[i].ID = uint16(i)
		p.slots[i].prev = i - 1
		p.slots[i].next = i + 1
		if i == depth {
			p.slots[i].next = -1
		} else {
			// next already i+1
		}
		if i == 1 {
			p.slots[i].prev = -1
		}
	}
	p.freeHead = 1
	p.freeTail = depth
	p.activeHead = -1
	p.activeTail = -1
	return p
}

// Depth returns the number of usable slots (excludes the reserved id 0).
func (p *Pool) Depth() int { return len(p.slots) - 1 }

// ActiveCount returns the number of slots currently on the Active list.
func (p *Pool) ActiveCount() int { return p.activeCount }

// FreeCount returns the number of slots currently on the Free list.
func (p *Pool) FreeCount() int { return p.Depth() - p.activeCount }

// SetSuspended marks the pool as refusing new Get calls; Put still
// works so in-flight commands can complete or be flushed.
func (p *Pool) SetSuspended(v bool) { p.suspended = v }

// Get removes a slot from the Free list and moves it to the tail of
// Active, zeroing its per-command fields. Fails with QueueFull if the
// pool has no free slots or is suspended.
func (p *Pool) Get() (*Slot, error) {
	if p.suspended || p.freeHead == -1 {
		return nil, api.NewError(api.StatusQueueFull, "command slot pool exhausted")
	}
	idx := p.freeHead
	s := &p.slots[idx]
	p.freeHead = s.next
	if p.freeHead == -1 {
		p.freeTail = -1
	} else {
		p.slots[p.freeHead].prev = -1
	}

	s.reset()
	s.Status = SlotActive
	s.prev = p.activeTail
	s.next = -1
	if p.activeTail == -1 {
		p.activeHead = idx
	} else {
		p.slots[p.activeTail].next = idx
	}
	p.activeTail = idx
	p.activeCount++
	return s, nil
}

// Put removes a slot from the Active list and returns it to the tail
// of Free. Callers must not hold a reference to the slot afterward.
func (p *Pool) Put(s *Slot) {
	idx := int(s.ID)
	if p.slots[idx].Status == SlotFree {
		panic("cmdpool: double free of command slot")
	}
	p.unlinkActive(idx)
	p.activeCount--

	p.slots[idx].Status = SlotFree
	p.slots[idx].prev = p.freeTail
	p.slots[idx].next = -1
	if p.freeTail == -1 {
		p.freeHead = idx
	} else {
		p.slots[p.freeTail].next = idx
	}
	p.freeTail = idx
}

func (p *Pool) unlinkActive(idx int) {
	s := &p.slots[idx]
	if s.prev != -1 {
		p.slots[s.prev].next = s.next
	} else {
		p.activeHead = s.next
	}
	if s.next != -1 {
		p.slots[s.next].prev = s.prev
	} else {
		p.activeTail = s.prev
	}
}

// Slot returns the slot for a 1-based id without touching the lists;
// used by the completion path to map a CQE's cmd_id back to its slot.
// id 0 always returns nil, matching the reserved-id invariant.
func (p *Pool) Slot(id uint16) *Slot {
	if id == 0 || int(id) >= len(p.slots) {
		return nil
	}
	return &p.slots[id]
}

// ForEachActive invokes fn for every slot currently on the Active list,
// in list order. Used by Flush to synthesize completions on reset.
func (p *Pool) ForEachActive(fn func(*Slot)) {
	for idx := p.activeHead; idx != -1; {
		s := &p.slots[idx]
		next := s.next
		fn(s)
		idx = next
	}
}

// Reset reinitializes every slot to Free, id order, discarding whatever
// state Active slots carried — callers must have already flushed or
// accounted for in-flight commands before calling Reset.
func (p *Pool) Reset() {
	depth := p.Depth()
	for i := 1; i <= depth; i++ {
		p.slots[i].reset()
		p.slots[i].prev = i - 1
		p.slots[i].next = i + 1
	}
	p.slots[1].prev = -1
	p.slots[depth].next = -1
	p.freeHead = 1
	p.freeTail = depth
	p.activeHead = -1
	p.activeTail = -1
	p.activeCount = 0
}
