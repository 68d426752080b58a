// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package block

import (
	"unsafe"

	"github.com/alihatamitajik/mallocator/internal/heapsrc"
)

// FillPayload sets the first size bytes of the payload at addr to
// fill, per spec §6's fill semantics. Callers pass the payload length:
// Size for first-fit, Size minus HeaderSize for buddy.
func FillPayload(src heapsrc.Source, addr uintptr, size uintptr, fill byte) {
	if size == 0 {
		return
	}

	p := (*byte)(src.At(Payload(addr)))
	buf := unsafe.Slice(p, int(size))
	for i := range buf {
		buf[i] = fill
	}
}

// CopyBytes copies n bytes from src to dst, both Go pointers obtained
// from a heapsrc.Source.
func CopyBytes(dst, src unsafe.Pointer, n int) {
	if n <= 0 {
		return
	}

	d := unsafe.Slice((*byte)(dst), n)
	s := unsafe.Slice((*byte)(src), n)
	copy(d, s)
}
