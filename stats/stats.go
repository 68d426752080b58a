// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stats implements the read-only stats walker (C7): textual
// reporting of allocated/free blocks, and a compressible snapshot
// export for diagnostics.
//
// Grounded on lldb/falloc.go's AllocStats/list-walking diagnostics
// shape and lldb/flt.go's read-only Report() walk. Per spec §9's open
// question, the walk here iterates from head inclusive, not
// head.Next - the skip in the source is treated as the accidental
// behaviour the spec names it.
package stats

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/cznic/sortutil"
	"github.com/cznic/zappy"

	"github.com/alihatamitajik/mallocator/internal/block"
	"github.com/alihatamitajik/mallocator/internal/heapsrc"
)

// Row describes one block for reporting purposes.
type Row struct {
	Start uintptr
	End   uintptr
	Size  uintptr
	Free  bool
}

func collect(list *block.List) []Row {
	var rows []Row
	list.Walk(func(addr uintptr, h *block.Header) bool {
		// A block ends where its successor begins, and the tail at the
		// break; this holds whether Size excludes the header
		// (first-fit) or includes it (buddy).
		end := h.Next
		if end == 0 {
			end = list.Src.CurrentBreak()
		}

		rows = append(rows, Row{
			Start: addr,
			End:   end,
			Size:  h.Size,
			Free:  h.IsFree,
		})

		return true
	})

	return rows
}

// checkOrder defensively re-verifies spec invariant 1 (address
// ascending order) over a snapshot of rows before they are reported,
// using sortutil.Int64Slice the same way lldb/falloc_test.go sorts
// collected handles before asserting on them.
func checkOrder(rows []Row) bool {
	addrs := make(sortutil.Int64Slice, len(rows))
	for i, r := range rows {
		addrs[i] = int64(r.Start)
	}

	return sort.IsSorted(addrs)
}

// Walk reports every block in list, allocated and free, with columns
// (start address, end address, size), followed by a summary line with
// totals and the gap between the current heap break and the sum of
// accounted block bytes. For first-fit, whose Size excludes the
// header, that gap is the total header overhead; buddy's Size includes
// the header, so there the gap is 0.
func Walk(list *block.List, w io.Writer) {
	rows := collect(list)
	if !checkOrder(rows) {
		fmt.Fprintln(w, "warning: block list is not address-ordered")
	}

	var allocBytes, freeBytes int64

	fmt.Fprintln(w, "Allocated blocks")
	for _, r := range rows {
		if r.Free {
			continue
		}

		fmt.Fprintf(w, "  %#016x .. %#016x  %d\n", r.Start, r.End, r.Size)
		allocBytes += int64(r.Size)
	}

	fmt.Fprintln(w, "Free blocks")
	for _, r := range rows {
		if !r.Free {
			continue
		}

		fmt.Fprintf(w, "  %#016x .. %#016x  %d\n", r.Start, r.End, r.Size)
		freeBytes += int64(r.Size)
	}

	brkDelta := int64(0)
	if len(rows) > 0 {
		brkDelta = int64(list.Src.CurrentBreak()) - int64(rows[0].Start) - (allocBytes + freeBytes)
	}

	fmt.Fprintf(w, "total: %d allocated, %d free, %d header overhead\n", allocBytes, freeBytes, brkDelta)
}

// Snapshot is a point-in-time capture of the block list, independent
// of any live heapsrc.Source, suitable for export.
type Snapshot struct {
	Rows      []Row
	BreakAddr uintptr
}

// NewSnapshot captures list's current state.
func NewSnapshot(list *block.List) Snapshot {
	return Snapshot{Rows: collect(list), BreakAddr: list.Src.CurrentBreak()}
}

func (s Snapshot) encode() []byte {
	var buf bytes.Buffer
	for _, r := range s.Rows {
		fmt.Fprintf(&buf, "%d,%d,%d,%t\n", r.Start, r.End, r.Size, r.Free)
	}

	return buf.Bytes()
}

// Compress returns s encoded as comma-separated rows and compressed
// with zappy - the teacher's own modern replacement for the snappy
// dependency it used to compress stored content (falloc.go), applied
// here to a diagnostic export instead of user payload bytes.
func (s Snapshot) Compress() ([]byte, error) {
	return zappy.Encode(nil, s.encode())
}

// DecompressSnapshot reverses Snapshot.Compress, returning the raw
// encoded rows.
func DecompressSnapshot(b []byte) ([]byte, error) {
	return zappy.Decode(nil, b)
}

// PunchFreeBlocks reclaims on-disk space for every free block in list
// that isn't the tail, by calling fh.PunchFreeRegion over each block's
// full on-disk span (header plus payload). The tail's surplus is
// already reclaimed through SetBreak (first-fit's Split Case B; buddy
// never shrinks the tail), so only interior free blocks need
// hole-punching here. A block's span is computed as the distance to
// its list successor rather than from its own Size field, since
// first-fit's Size excludes the header while buddy's includes it -
// using list adjacency instead of engine-specific header arithmetic
// keeps this helper correct for both. It returns the number of blocks
// punched.
func PunchFreeBlocks(list *block.List, fh *heapsrc.FileHeap) (int, error) {
	var n int
	var err error

	list.Walk(func(addr uintptr, h *block.Header) bool {
		if !h.IsFree || h.Next == 0 {
			return true
		}

		span := int64(h.Next - addr)
		if e := fh.PunchFreeRegion(fh.Offset(addr), span); e != nil {
			err = e
			return false
		}

		n++
		return true
	})

	return n, err
}
