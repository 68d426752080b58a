// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package block

import (
	"github.com/alihatamitajik/mallocator/internal/aerrors"
	"github.com/alihatamitajik/mallocator/internal/heapsrc"
)

// List is the heap-wide, address-ascending doubly linked list of
// blocks (spec invariant 1). Head and Tail are 0 when the list is
// empty. Modelled on the insert/remove shape of lldb.falloc.go's
// (*Allocator).link/unlink, adapted from file-offset handles to
// in-memory addresses.
type List struct {
	Src  heapsrc.Source
	Head uintptr
	Tail uintptr
}

// Append threads a freshly formatted block (already written at addr)
// onto the end of the list, linking it after the current Tail.
func (l *List) Append(addr uintptr) {
	h := At(l.Src, addr)
	h.Prev = l.Tail
	h.Next = 0

	if l.Tail != 0 {
		At(l.Src, l.Tail).Next = addr
	} else {
		l.Head = addr
	}

	l.Tail = addr
}

// InsertAfter threads addr into the list immediately after prev,
// which must already be a member of the list.
func (l *List) InsertAfter(prev, addr uintptr) {
	h := At(l.Src, addr)
	prevHdr := At(l.Src, prev)

	h.Prev = prev
	h.Next = prevHdr.Next

	if prevHdr.Next != 0 {
		At(l.Src, prevHdr.Next).Prev = addr
	} else {
		l.Tail = addr
	}

	prevHdr.Next = addr
}

// Unlink removes addr from the list without touching its header's own
// Next/Prev fields, which the caller may still want to inspect.
func (l *List) Unlink(addr uintptr) {
	h := At(l.Src, addr)

	if h.Prev != 0 {
		At(l.Src, h.Prev).Next = h.Next
	} else {
		l.Head = h.Next
	}

	if h.Next != 0 {
		At(l.Src, h.Next).Prev = h.Prev
	} else {
		l.Tail = h.Prev
	}
}

// Walk calls fn for every block address from Head to Tail, in address
// order. Walk stops early if fn returns false.
func (l *List) Walk(fn func(addr uintptr, h *Header) bool) {
	for addr := l.Head; addr != 0; {
		h := At(l.Src, addr)
		next := h.Next
		if !fn(addr, h) {
			return
		}

		addr = next
	}
}

// Find returns the address of the block whose payload pointer equals
// payload, scanning the list - the "O(N) lookup of the owning block
// given a user pointer" spec §3 describes. Returns 0, false if no
// block matches.
func (l *List) Find(payload uintptr) (addr uintptr, ok bool) {
	l.Walk(func(a uintptr, h *Header) bool {
		if Payload(a) == payload {
			addr, ok = a, true
			return false
		}

		return true
	})

	return
}

// CheckInvariants re-walks the list verifying spec §8's universal
// invariants: address-ascending order and no two adjacent free blocks.
// It is a defensive, read-only check, not part of any hot allocation
// path - callers are expected to be tests or diagnostic code, mirroring
// falloc_test.go's own post-operation list audits.
func (l *List) CheckInvariants() error {
	var prevAddr uintptr
	var prevFree bool
	var err error

	l.Walk(func(addr uintptr, h *Header) bool {
		if prevAddr != 0 {
			if addr <= prevAddr {
				err = &aerrors.CorruptListError{Reason: "list not address-ordered", Addr: addr}
				return false
			}

			if prevFree && h.IsFree {
				err = &aerrors.CorruptListError{Reason: "adjacent free blocks not coalesced", Addr: addr}
				return false
			}
		}

		prevAddr, prevFree = addr, h.IsFree
		return true
	})

	return err
}
