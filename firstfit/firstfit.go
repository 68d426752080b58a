// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package firstfit implements the first-fit allocation engine (C4):
// scan-to-fit allocation, tail-merge splitting, and eager neighbour
// fusion on free.
//
// Grounded on lldb/falloc.go's (*Allocator).alloc/free/free2/link/unlink/realloc,
// ported from file-offset/atom handles to in-memory uintptr addresses
// over an internal/heapsrc.Source.
package firstfit

import (
	"io"
	"unsafe"

	"github.com/cznic/mathutil"

	"github.com/alihatamitajik/mallocator/filter"
	"github.com/alihatamitajik/mallocator/internal/aerrors"
	"github.com/alihatamitajik/mallocator/internal/block"
	"github.com/alihatamitajik/mallocator/internal/heapsrc"
	"github.com/alihatamitajik/mallocator/stats"
)

// Engine is a first-fit allocator over a heapsrc.Source. The zero
// value is not usable; construct with New.
type Engine struct {
	Src    heapsrc.Source
	List   block.List
	Filter *filter.Filter
}

// New returns an Engine allocating out of src.
func New(src heapsrc.Source) *Engine {
	return &Engine{
		Src:    src,
		List:   block.List{Src: src},
		Filter: filter.New(),
	}
}

// Allocate implements spec §4.1's Allocate.
func (e *Engine) Allocate(size uint, fill byte) (unsafe.Pointer, error) {
	if size == 0 {
		return nil, nil
	}

	if !e.Filter.Allows(int(size)) {
		return nil, &aerrors.OutOfRangeError{Size: int(size), Min: e.Filter.Min, Max: e.Filter.Max}
	}

	return e.allocate(uintptr(size), fill)
}

func (e *Engine) allocate(size uintptr, fill byte) (unsafe.Pointer, error) {
	var found uintptr
	e.List.Walk(func(addr uintptr, h *block.Header) bool {
		if h.IsFree && h.Size >= size {
			found = addr
			return false
		}

		return true
	})

	if found == 0 {
		addr, err := e.extend(size)
		if err != nil {
			return nil, err
		}

		found = addr
	} else if block.At(e.Src, found).Size > size {
		e.split(found, size)
	}

	h := block.At(e.Src, found)
	h.IsFree = false
	e.fillPayload(found, fill)
	return e.Src.At(block.Payload(found)), nil
}

// extend implements spec §4.1's Extend.
func (e *Engine) extend(size uintptr) (uintptr, error) {
	if last := e.List.Tail; last != 0 {
		if h := block.At(e.Src, last); h.IsFree {
			if _, err := e.Src.Grow(int(size - h.Size)); err != nil {
				return 0, err
			}

			h.Size = size
			return last, nil
		}
	}

	base, err := e.Src.Grow(int(block.HeaderSize + size))
	if err != nil {
		return 0, err
	}

	*block.At(e.Src, base) = block.Header{Size: size}
	e.List.Append(base)
	return base, nil
}

// split implements spec §4.1's Split cases A-D for b.Size > s.
func (e *Engine) split(addr uintptr, s uintptr) {
	h := block.At(e.Src, addr)
	if h.Size <= s {
		return
	}

	if h.Next != 0 {
		if nh := block.At(e.Src, h.Next); nh.IsFree {
			e.splitMergeNext(addr, s)
			return
		}
	}

	if addr == e.List.Tail {
		e.splitShrinkTail(addr, s)
		return
	}

	if leftover := h.Size - s; leftover >= block.HeaderSize {
		e.splitCarveGap(addr, s, leftover)
	}
	// else: Case D, surplus stays internal to addr, no-op.
}

// splitMergeNext is Split Case A: slide the free next block's header
// backward to reclaim the surplus, rather than allocating a new one.
func (e *Engine) splitMergeNext(addr, s uintptr) {
	h := block.At(e.Src, addr)
	nextAddr := h.Next
	nh := block.At(e.Src, nextAddr)
	reclaimed := h.Size - s

	slid := block.Payload(addr) + s
	*block.At(e.Src, slid) = block.Header{
		Size:   nh.Size + reclaimed,
		Next:   nh.Next,
		Prev:   addr,
		IsFree: true,
	}

	if nh.Next != 0 {
		block.At(e.Src, nh.Next).Prev = slid
	} else {
		e.List.Tail = slid
	}

	h.Next = slid
	h.Size = s
}

// splitShrinkTail is Split Case B: addr is the tail, so the surplus is
// returned to the heap source via SetBreak.
func (e *Engine) splitShrinkTail(addr, s uintptr) {
	h := block.At(e.Src, addr)
	if err := e.Src.SetBreak(block.Payload(addr) + s); err != nil {
		return
	}

	h.Size = s
}

// splitCarveGap is Split Case C: the leftover is large enough to host
// a fresh free block header of its own.
func (e *Engine) splitCarveGap(addr, s, leftover uintptr) {
	h := block.At(e.Src, addr)
	newAddr := block.Payload(addr) + s
	*block.At(e.Src, newAddr) = block.Header{Size: leftover - block.HeaderSize, IsFree: true}
	e.List.InsertAfter(addr, newAddr)
	h.Size = s
}

// Deallocate implements spec §4.1's Free.
func (e *Engine) Deallocate(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	addr, ok := e.List.Find(uintptr(ptr))
	if !ok {
		return
	}

	e.free(addr)
}

func (e *Engine) free(addr uintptr) {
	h := block.At(e.Src, addr)
	if h.IsFree {
		return
	}

	h.IsFree = true
	e.fuse(addr)
}

// fuse implements spec §4.1's Free fusion: merge backward then forward.
func (e *Engine) fuse(addr uintptr) {
	h := block.At(e.Src, addr)
	if h.Prev != 0 {
		if ph := block.At(e.Src, h.Prev); ph.IsFree {
			e.absorb(h.Prev, addr)
			addr = h.Prev
			h = block.At(e.Src, addr)
		}
	}

	if h.Next != 0 {
		if nh := block.At(e.Src, h.Next); nh.IsFree {
			e.absorb(addr, h.Next)
		}
	}
}

// absorb merges the block at absorbAddr into the block at keepAddr,
// which must be its immediate list neighbour. One header-size is
// reclaimed since absorbAddr's own header disappears.
func (e *Engine) absorb(keepAddr, absorbAddr uintptr) {
	keep := block.At(e.Src, keepAddr)
	absorb := block.At(e.Src, absorbAddr)

	keep.Size += block.HeaderSize + absorb.Size
	keep.Next = absorb.Next

	if absorb.Next != 0 {
		block.At(e.Src, absorb.Next).Prev = keepAddr
	} else {
		e.List.Tail = keepAddr
	}
}

// Reallocate implements spec §4.1's Realloc.
func (e *Engine) Reallocate(ptr unsafe.Pointer, size uint, fill byte) (unsafe.Pointer, error) {
	if size == 0 {
		e.Deallocate(ptr)
		return nil, nil
	}

	if ptr == nil {
		return e.Allocate(size, fill)
	}

	addr, ok := e.List.Find(uintptr(ptr))
	if !ok {
		return nil, &aerrors.InvalidPointerError{Reason: "not found"}
	}

	h := block.At(e.Src, addr)
	if h.IsFree {
		return nil, &aerrors.InvalidPointerError{Reason: "already free"}
	}

	if h.Size == uintptr(size) {
		return ptr, nil
	}

	if h.Size > uintptr(size) && int(size) >= e.Filter.Min {
		e.split(addr, uintptr(size))
		return ptr, nil
	}

	newPtr, err := e.Allocate(size, fill)
	if err != nil || newPtr == nil {
		return nil, err
	}

	copyLen := mathutil.Min(int(size), int(h.Size))
	block.CopyBytes(newPtr, ptr, copyLen)
	e.free(addr)
	return newPtr, nil
}

func (e *Engine) fillPayload(addr uintptr, fill byte) {
	h := block.At(e.Src, addr)
	block.FillPayload(e.Src, addr, h.Size, fill)
}

// SetMin implements spec §4.4.
func (e *Engine) SetMin(x int) int { return e.Filter.SetMin(x) }

// SetMax implements spec §4.4.
func (e *Engine) SetMax(x int) int { return e.Filter.SetMax(x) }

// ShowStats implements spec §4.5, writing to w.
func (e *Engine) ShowStats(w io.Writer) {
	stats.Walk(&e.List, w)
}

// ReclaimDiskSpace punches holes for every interior free block in e's
// list, returning the number of blocks punched. See
// stats.PunchFreeBlocks.
func (e *Engine) ReclaimDiskSpace(fh *heapsrc.FileHeap) (int, error) {
	return stats.PunchFreeBlocks(&e.List, fh)
}

// DefineMinMax is a convenience restoring original_source/mm_alloc.h's
// define_min_max_allocation, setting both limits in one call.
func (e *Engine) DefineMinMax(min, max int) {
	e.SetMin(min)
	e.SetMax(max)
}
