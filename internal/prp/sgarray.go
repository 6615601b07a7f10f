// File: internal/prp/sgarray.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Scatter-gather array the PRP builder walks. Implements api.Batch so
// it composes with the same zero-alloc slice/split contract used
// elsewhere for buffer batches.

package prp

import "github.com/momentics/nvme-core/api"

// Element is one already-DMA-mapped region: its device-visible I/O
// address and length in bytes.
type Element struct {
	IOAddr uint64
	Len    int
}

// SGArray is a zero-copy, sliceable array of Elements.
type SGArray struct {
	elems []Element
}

var _ api.Batch[Element] = (*SGArray)(nil)

// NewSGArray wraps elems without copying.
func NewSGArray(elems []Element) *SGArray {
	return &SGArray{elems: elems}
}

func (a *SGArray) Len() int { return len(a.elems) }

func (a *SGArray) Get(index int) Element {
	if index < 0 || index >= len(a.elems) {
		return Element{}
	}
	return a.elems[index]
}

func (a *SGArray) Slice(start, end int) api.Batch[Element] {
	return &SGArray{elems: a.elems[start:end]}
}

func (a *SGArray) Underlying() []Element { return a.elems }

func (a *SGArray) Split(idx int) (first, second api.Batch[Element]) {
	return &SGArray{elems: a.elems[:idx]}, &SGArray{elems: a.elems[idx:]}
}

func (a *SGArray) Reset() { a.elems = a.elems[:0] }
