// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package block implements the shared block header and the address-
// ordered doubly linked list of blocks (C2) threaded through by both
// the firstfit and buddy engines.
//
// A Header is written directly into the heap arena at a block's
// address rather than kept in a side table - the "header-in-payload"
// layout spec §9's design notes call for - so that Payload(addr)
// remains an O(1) pointer computation even when cached by a caller.
package block

import (
	"unsafe"

	"github.com/alihatamitajik/mallocator/internal/heapsrc"
)

// Header is the fixed metadata prefix of every block, shared between
// the two engines. Depth and Rightness are meaningful only for the
// buddy engine; firstfit leaves them zero.
type Header struct {
	Size      uintptr // first-fit: exact payload bytes. buddy: total block size, power of two.
	Next      uintptr // address of the next block's header, 0 = none
	Prev      uintptr // address of the previous block's header, 0 = none
	IsFree    bool
	Depth     uint8
	Rightness uint64
}

// HeaderSize is the fixed number of bytes a Header occupies at the
// front of every block.
const HeaderSize = unsafe.Sizeof(Header{})

// At returns the Header living at addr inside src.
func At(src heapsrc.Source, addr uintptr) *Header {
	return (*Header)(src.At(addr))
}

// Payload returns the address of the first byte past a block's
// header - the block's payload_ptr, per spec invariant 3.
func Payload(addr uintptr) uintptr {
	return addr + HeaderSize
}

// FromPayload recovers a block's header address given a payload
// pointer, the inverse of Payload.
func FromPayload(payload uintptr) uintptr {
	return payload - HeaderSize
}
