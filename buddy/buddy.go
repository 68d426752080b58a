// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package buddy implements the power-of-two buddy allocation engine
// (C5): size-class rounding, recursive splitting, and sibling
// coalescence tracked by an explicit depth/rightness bit trail rather
// than an address-derived XOR.
//
// Grounded on lldb/falloc.go's block-header and address-ordered-list
// shape (same internal/block representation as firstfit), with the
// split/coalesce recursion adapted from other_examples' fuchsia thinfs
// buddy allocator - itself address/XOR based, reworked here to the
// depth/rightness trail spec §5 requires.
package buddy

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

// MinBlockSize is the smallest block the engine ever carves, header
// included. Requests rounding below this are bumped up to it.
const MinBlockSize = 64

// Engine is a buddy allocator over a heapsrc.Source. The zero value is
// not usable; construct with New.
type Engine struct {
	Src    heapsrc.Source
	List   block.List
	Filter *filter.Filter

	// total is the sum of every Grow call issued so far - the
	// "total_heap_bytes" of spec §5's extension rule. It doubles on
	// every extension after the first.
	total uintptr
}

// New returns an Engine allocating out of src.
func New(src heapsrc.Source) *Engine {
	return &Engine{
		Src:    src,
		List:   block.List{Src: src},
		Filter: filter.New(),
	}
}

// nextPow2 rounds n up to the nearest power of two, floored at
// MinBlockSize.
func nextPow2(n uintptr) uintptr {
	p := uintptr(MinBlockSize)
	for p < n {
		p <<= 1
	}

	return p
}

// Allocate implements spec §5's Allocate: round to a size class, find
// or make a free block of exactly that size, and hand back its
// payload.
func (e *Engine) Allocate(size uint, fill byte) (unsafe.Pointer, error) {
	if !e.Filter.Allows(int(size)) {
		return nil, &aerrors.OutOfRangeError{Size: int(size), Min: e.Filter.Min, Max: e.Filter.Max}
	}

	request := nextPow2(block.HeaderSize + uintptr(size))

	var addr uintptr
	var err error
	if e.List.Head == 0 {
		addr, err = e.extendExact(request)
	} else if addr = e.bestFit(request); addr == 0 {
		addr, err = e.extendToFit(request)
	}

	if err != nil {
		return nil, err
	}

	e.shrinkToFit(addr, request)

	h := block.At(e.Src, addr)
	h.IsFree = false
	block.FillPayload(e.Src, addr, h.Size-block.HeaderSize, fill)
	return e.Src.At(block.Payload(addr)), nil
}

// bestFit returns the smallest free block with Size >= request, or 0
// if none exists. An exact match short-circuits the scan.
func (e *Engine) bestFit(request uintptr) uintptr {
	var bestAddr, bestSize uintptr
	e.List.Walk(func(addr uintptr, h *block.Header) bool {
		if !h.IsFree || h.Size < request {
			return true
		}

		if h.Size == request {
			bestAddr = addr
			return false
		}

		if bestAddr == 0 || h.Size < bestSize {
			bestAddr, bestSize = addr, h.Size
		}

		return true
	})

	return bestAddr
}

// shrinkToFit repeatedly splits addr's block in half until its size
// equals request, per spec §5's Split.
func (e *Engine) shrinkToFit(addr, request uintptr) {
	for block.At(e.Src, addr).Size > request {
		e.split(addr)
	}
}

// split halves the block at addr, inserting the new right sibling
// immediately after it. Both halves get Depth+1; the left keeps trail
// bit 0, the right gets trail bit 1, per spec §5's rightness rule.
func (e *Engine) split(addr uintptr) {
	h := block.At(e.Src, addr)
	half := h.Size / 2
	newDepth := h.Depth + 1
	leftTrail := h.Rightness << 1

	siblingAddr := addr + half
	*block.At(e.Src, siblingAddr) = block.Header{
		Size:      half,
		IsFree:    true,
		Depth:     newDepth,
		Rightness: leftTrail | 1,
	}

	h.Size = half
	h.Depth = newDepth
	h.Rightness = leftTrail

	e.List.InsertAfter(addr, siblingAddr)
}

// extendExact is the first-ever extension: the heap starts as exactly
// one free block of the requested size, depth 0, at the tree root.
func (e *Engine) extendExact(request uintptr) (uintptr, error) {
	base, err := e.Src.Grow(int(request))
	if err != nil {
		return 0, err
	}

	*block.At(e.Src, base) = block.Header{Size: request, IsFree: true}
	e.List.Append(base)
	e.total = request
	return base, nil
}

// extendToFit doubles the heap (growDouble) at least once, and until
// the newest region is at least as large as request, per spec §5's and
// §9's resolution of the doubling-loop boundary: stop as soon as
// total/2 >= request, rather than the source's ambiguous strict
// inequality. The returned block is that newest, still free region.
func (e *Engine) extendToFit(request uintptr) (uintptr, error) {
	for {
		if err := e.growDouble(); err != nil {
			return 0, err
		}

		if e.total/2 >= request {
			return e.List.Tail, nil
		}
	}
}

// growDouble obtains a fresh region of exactly total bytes (doubling
// the heap), appends it as one unsplit free block one level above
// every existing block, and bumps every existing block's depth by one
// to reflect that its old implicit root now has a sibling.
func (e *Engine) growDouble() error {
	n := e.total
	base, err := e.Src.Grow(int(n))
	if err != nil {
		return err
	}

	e.List.Walk(func(_ uintptr, h *block.Header) bool {
		h.Depth++
		return true
	})

	*block.At(e.Src, base) = block.Header{Size: n, IsFree: true, Depth: 1, Rightness: 1}
	e.List.Append(base)
	e.total *= 2
	return nil
}

// Deallocate implements spec §5's Free.
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
	e.coalesce(addr)
}

// coalesce walks upward fusing addr with its buddy as long as the
// buddy is free and at the same depth, per spec §5's Coalesce: a right
// child (trail LSB 1) pairs with its list-predecessor, a left child
// with its list-successor.
func (e *Engine) coalesce(addr uintptr) {
	for {
		h := block.At(e.Src, addr)

		if h.Rightness&1 == 1 {
			if h.Prev == 0 {
				return
			}

			sib := block.At(e.Src, h.Prev)
			if !sib.IsFree || sib.Depth != h.Depth {
				return
			}

			e.fuse(h.Prev, addr)
			addr = h.Prev
			continue
		}

		if h.Next == 0 {
			return
		}

		sib := block.At(e.Src, h.Next)
		if !sib.IsFree || sib.Depth != h.Depth {
			return
		}

		e.fuse(addr, h.Next)
	}
}

// fuse splices the right block out of the list and folds it into
// left: left doubles in size, its depth drops by one, and its trail
// loses its low bit - the inverse of split.
func (e *Engine) fuse(leftAddr, rightAddr uintptr) {
	left := block.At(e.Src, leftAddr)
	e.List.Unlink(rightAddr)
	left.Size *= 2
	left.Depth--
	left.Rightness >>= 1
}

// Reallocate implements spec §5's Realloc: same skeleton as first-fit,
// but there is no in-place grow or shrink-by-split - a size-class
// change always allocates fresh, copies, and frees the old block.
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

	request := nextPow2(block.HeaderSize + uintptr(size))
	if h.Size == request {
		return ptr, nil
	}

	newPtr, err := e.Allocate(size, fill)
	if err != nil || newPtr == nil {
		return nil, err
	}

	copyLen := mathutil.Min(int(size), int(h.Size-block.HeaderSize))
	block.CopyBytes(newPtr, ptr, copyLen)
	e.free(addr)
	return newPtr, nil
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

// DefineMinMax sets both limits in one call, restoring
// original_source/mm_alloc.h's define_min_max_allocation.
func (e *Engine) DefineMinMax(min, max int) {
	e.SetMin(min)
	e.SetMax(max)
}
