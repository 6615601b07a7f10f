// File: ctrlr/prppages.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Preallocates each slot's PRP-list page once at queue construction,
// per §4.2's "PRP list pages are allocated once per slot ... and
// reused."

package ctrlr

import (
	"fmt"

	"github.com/momentics/nvme-core/internal/mmio"
	"github.com/momentics/nvme-core/internal/prp"
	"github.com/momentics/nvme-core/internal/queue"
)

const prpListPageSize = 4096

func attachPRPPages(q *queue.Queue, dma *mmio.Allocator, builder *prp.Builder) error {
	depth := q.Pool.Depth()
	for i := 1; i <= depth; i++ {
		slot := q.Pool.Slot(uint16(i))
		entry, err := dma.Alloc(prpListPageSize, -1, mmio.DirToDevice)
		if err != nil {
			return fmt.Errorf("ctrlr: prp page alloc for slot %d: %w", i, err)
		}
		slot.PRPPage = entry
	}
	return nil
}
