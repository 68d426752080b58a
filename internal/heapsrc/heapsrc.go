// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package heapsrc provides the monotonic, sbrk-like heap extension
// primitive (C1) consumed by the firstfit and buddy engines. A Source
// is not safe for concurrent access, mirroring lldb.Filer's single
// goroutine contract.
package heapsrc

import (
	"errors"
	"unsafe"
)

// ErrOutOfMemory is returned by Grow when the backing reservation is
// exhausted. It is the heap-source analogue of lldb.Filer running out
// of room to extend a file.
var ErrOutOfMemory = errors.New("heapsrc: out of memory")

// ErrInvalidBreak is returned by SetBreak when addr lies outside the
// committed segment (below its base or above the current break), and
// by FileHeap.PunchFreeRegion for a region outside it.
var ErrInvalidBreak = errors.New("heapsrc: invalid break address")

// A Source is a monotonic byte-segment extender. Grow appends n bytes
// and returns the address of the first new byte. SetBreak is used only
// by the first-fit engine's tail-shrink case; buddy never calls it.
// CurrentBreak reports the current end of the segment. At translates
// an address previously returned by Grow (or any address between a
// block's start and the current break) into a Go pointer usable to
// read or write the header/payload living there.
type Source interface {
	Grow(n int) (base uintptr, err error)
	SetBreak(addr uintptr) error
	CurrentBreak() uintptr
	At(addr uintptr) unsafe.Pointer
}
