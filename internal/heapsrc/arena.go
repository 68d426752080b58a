// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapsrc

import "unsafe"

// ArenaHeap stands in for the process data segment. Go cannot extend
// the real break with brk(2), so ArenaHeap reserves a fixed-capacity
// backing array once and only ever grows the *logical* length of the
// segment living inside it. Reserving the whole capacity up front,
// instead of growing a []byte (which the runtime is free to relocate
// on append), is what keeps addresses handed out by Grow stable for
// the lifetime of the ArenaHeap - the "Pointer contract" of §6 depends
// on it.
//
// Modelled on lldb.MemFiler's page-table-of-slices growth bookkeeping,
// collapsed to one flat slice since a malloc-like client needs real
// pointers back, not (page, offset) pairs.
type ArenaHeap struct {
	buf   []byte
	base  uintptr
	used  int
	limit int
}

var _ Source = (*ArenaHeap)(nil)

// NewArenaHeap reserves limit bytes of backing storage. limit models
// a data-segment/rlimit ceiling, exhaustible under resource pressure.
func NewArenaHeap(limit int) *ArenaHeap {
	if limit <= 0 {
		panic("heapsrc: non-positive arena limit")
	}

	buf := make([]byte, limit)
	return &ArenaHeap{
		buf:   buf,
		base:  uintptr(unsafe.Pointer(&buf[0])),
		limit: limit,
	}
}

// Grow implements Source.
func (a *ArenaHeap) Grow(n int) (base uintptr, err error) {
	if n <= 0 {
		panic("heapsrc: non-positive Grow request")
	}

	if a.used+n > a.limit {
		return 0, ErrOutOfMemory
	}

	base = a.base + uintptr(a.used)
	a.used += n
	return base, nil
}

// SetBreak implements Source. It is used only by the first-fit
// engine's tail-shrink split case.
func (a *ArenaHeap) SetBreak(addr uintptr) error {
	if addr < a.base || addr > a.base+uintptr(a.used) {
		return ErrInvalidBreak
	}

	a.used = int(addr - a.base)
	return nil
}

// CurrentBreak implements Source.
func (a *ArenaHeap) CurrentBreak() uintptr {
	return a.base + uintptr(a.used)
}

// At implements Source. Addresses handed out by Grow already point
// directly into buf's backing array, so no translation table lookup
// is needed - the conversion is the whole point of reserving buf's
// capacity up front.
func (a *ArenaHeap) At(addr uintptr) unsafe.Pointer {
	return unsafe.Pointer(addr)
}

// Used reports the number of bytes currently committed, for stats and
// tests. Grow only ever adds and SetBreak is guarded to never go below
// base, so a.used is never negative - no clamp needed.
func (a *ArenaHeap) Used() int {
	return a.used
}

// Cap reports the total reservation.
func (a *ArenaHeap) Cap() int { return a.limit }

// Offset translates addr, as returned by Grow or held in a block
// header, into this heap's own byte offset from base - the coordinate
// FileHeap.PunchFreeRegion's off parameter expects.
func (a *ArenaHeap) Offset(addr uintptr) int64 {
	return int64(addr - a.base)
}
