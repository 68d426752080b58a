// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapsrc

import (
	"os"

	"github.com/cznic/fileutil"
)

// FileHeap is an os.File-backed heap source used by cmd/mallocdemo and
// by persistence-flavoured tests. It keeps the same flat, pointer-
// stable in-memory arena as ArenaHeap (real pointers must still come
// out of Grow) and keeps the file's length equal to the committed
// size: Grow appends zeros to the file and SetBreak truncates it.
// Bytes written into the arena (headers and payloads) are not written
// to the file.
//
// Grounded on lldb.SimpleFileFiler/lldb.OSFiler's os.File wrapping and
// on lldb.SimpleFileFiler's use of fileutil.PunchHole.
type FileHeap struct {
	*ArenaHeap
	file *os.File
}

var _ Source = (*FileHeap)(nil)

// NewFileHeap reserves limit bytes of in-memory arena and truncates f
// to zero length to start a fresh heap image.
func NewFileHeap(f *os.File, limit int) (*FileHeap, error) {
	if err := f.Truncate(0); err != nil {
		return nil, err
	}

	return &FileHeap{ArenaHeap: NewArenaHeap(limit), file: f}, nil
}

// Grow extends the in-memory arena as ArenaHeap.Grow does, then mirrors
// the newly committed, zeroed region onto disk.
func (f *FileHeap) Grow(n int) (base uintptr, err error) {
	before := f.used
	if base, err = f.ArenaHeap.Grow(n); err != nil {
		return 0, err
	}

	zero := make([]byte, n)
	if _, err = f.file.WriteAt(zero, int64(before)); err != nil {
		f.ArenaHeap.used = before
		return 0, err
	}

	return base, nil
}

// SetBreak mirrors ArenaHeap.SetBreak and truncates the backing file to
// match, returning any surplus disk space to the filesystem the same
// way the in-memory break returns surplus bytes to the arena.
func (f *FileHeap) SetBreak(addr uintptr) error {
	before := f.used
	if err := f.ArenaHeap.SetBreak(addr); err != nil {
		return err
	}

	if err := f.file.Truncate(int64(f.used)); err != nil {
		f.ArenaHeap.used = before
		return err
	}

	return nil
}

// PunchFreeRegion reclaims disk blocks backing a free interior block
// that isn't at the tail (and so can't be reclaimed by SetBreak's
// truncation). The in-memory arena and logical heap size are
// unaffected - only the underlying disk allocation shrinks, exactly as
// lldb's FLT documentation describes for "large" free blocks. Called
// by stats.PunchFreeBlocks, which is in turn reachable from
// mallocator.Allocator.ReclaimDiskSpace - see cmd/mallocdemo.
func (f *FileHeap) PunchFreeRegion(off, size int64) error {
	if off < 0 || size <= 0 || off+size > int64(f.used) {
		return ErrInvalidBreak
	}

	return fileutil.PunchHole(f.file, off, size)
}

// Used reports the committed byte count; see ArenaHeap.Used.
func (f *FileHeap) Used() int {
	return f.used
}

// Close closes the backing file.
func (f *FileHeap) Close() error { return f.file.Close() }
