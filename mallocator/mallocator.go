// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mallocator is the public façade (C6): strategy selection and
// dispatch over the firstfit and buddy engines.
//
// Grounded on dbm.Options's "configure once, validate, lock" shape
// (dbm/options.go, dbm/handle.go's create2) and on original_source's
// myalloc.h AlgorithmWrapper/ALG_CHECK macro - the C original's
// tagged-struct-of-function-pointers, which spec §9 explicitly asks to
// be replaced with a Go sum type/vtable rather than ported literally.
package mallocator

import (
	"io"
	"strings"
	"unsafe"

	"github.com/alihatamitajik/mallocator/buddy"
	"github.com/alihatamitajik/mallocator/firstfit"
	"github.com/alihatamitajik/mallocator/internal/aerrors"
	"github.com/alihatamitajik/mallocator/internal/heapsrc"
)

// Strategy identifies an allocation engine, per spec §6's
// select_strategy return value.
type Strategy int

// Invalid is returned by Select when name does not name a known
// strategy; the Allocator's selection is left untouched.
const Invalid Strategy = -1

const (
	// FirstFit is the scan/split/coalesce engine (C4), select_strategy's "1".
	FirstFit Strategy = iota + 1
	// Buddy is the power-of-two split/coalesce engine (C5), select_strategy's "2".
	Buddy
)

// engine is the small internal interface both concrete engines
// satisfy - the "tagged variant" spec §9 calls for in place of the
// original's struct-of-function-pointers.
type engine interface {
	Allocate(size uint, fill byte) (unsafe.Pointer, error)
	Reallocate(ptr unsafe.Pointer, size uint, fill byte) (unsafe.Pointer, error)
	Deallocate(ptr unsafe.Pointer)
	SetMin(int) int
	SetMax(int) int
	ShowStats(w io.Writer)
	ReclaimDiskSpace(fh *heapsrc.FileHeap) (int, error)
}

// Allocator dispatches to whichever engine has been selected. The
// zero value is not usable; construct with New.
type Allocator struct {
	src      heapsrc.Source
	eng      engine
	strategy Strategy
	locked   bool
}

// New returns an Allocator over src with no strategy yet selected.
// The strategy is chosen on the first call to Select, or lazily
// defaults to FirstFit on the first Allocate/Reallocate/Deallocate
// call if Select was never called - per spec §4.3's lazy-default rule.
func New(src heapsrc.Source) *Allocator {
	return &Allocator{src: src}
}

// Select implements spec §4.3/§6's select_strategy: the first call
// picks and locks the engine; later calls are rejected with a
// SelectionError, returning Invalid. name is matched case-insensitively
// against "firstfit"/"first-fit"/"buddy".
func (a *Allocator) Select(name string) (Strategy, error) {
	if a.locked {
		return Invalid, &aerrors.SelectionError{Reason: "strategy already selected"}
	}

	strategy, ok := parseStrategy(name)
	if !ok {
		return Invalid, &aerrors.SelectionError{Reason: "unknown strategy: " + name}
	}

	a.lock(strategy)
	return strategy, nil
}

func parseStrategy(name string) (Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "firstfit", "first-fit", "first_fit":
		return FirstFit, true
	case "buddy":
		return Buddy, true
	default:
		return Invalid, false
	}
}

func (a *Allocator) lock(strategy Strategy) {
	a.strategy = strategy
	switch strategy {
	case Buddy:
		a.eng = buddy.New(a.src)
	default:
		a.eng = firstfit.New(a.src)
	}

	a.locked = true
}

// ensureSelected applies the lazy-default-to-first-fit rule: any
// allocation-surface call made before an explicit Select locks the
// Allocator onto FirstFit.
func (a *Allocator) ensureSelected() {
	if !a.locked {
		a.lock(FirstFit)
	}
}

// Allocate implements spec §6's malloc entry point.
func (a *Allocator) Allocate(size uint, fill byte) (unsafe.Pointer, error) {
	a.ensureSelected()
	return a.eng.Allocate(size, fill)
}

// Reallocate implements spec §6's realloc entry point.
func (a *Allocator) Reallocate(ptr unsafe.Pointer, size uint, fill byte) (unsafe.Pointer, error) {
	a.ensureSelected()
	return a.eng.Reallocate(ptr, size, fill)
}

// Deallocate implements spec §6's free entry point.
func (a *Allocator) Deallocate(ptr unsafe.Pointer) {
	a.ensureSelected()
	a.eng.Deallocate(ptr)
}

// SetMin implements spec §4.4, forwarded to the selected engine's filter.
func (a *Allocator) SetMin(x int) int {
	a.ensureSelected()
	return a.eng.SetMin(x)
}

// SetMax implements spec §4.4, forwarded to the selected engine's filter.
func (a *Allocator) SetMax(x int) int {
	a.ensureSelected()
	return a.eng.SetMax(x)
}

// ShowStats implements spec §4.5, forwarded to the selected engine.
func (a *Allocator) ShowStats(w io.Writer) {
	a.ensureSelected()
	a.eng.ShowStats(w)
}

// ReclaimDiskSpace punches holes for every interior free block in the
// selected engine's list, returning the number of blocks punched. fh
// must be the same heapsrc.FileHeap the Allocator was constructed
// over - see cmd/mallocdemo for the intended usage, reclaiming disk
// space left behind by a run's frees before exit.
func (a *Allocator) ReclaimDiskSpace(fh *heapsrc.FileHeap) (int, error) {
	a.ensureSelected()
	return a.eng.ReclaimDiskSpace(fh)
}

// Strategy reports which engine is currently selected, locking in the
// lazy FirstFit default if nothing has been selected yet.
func (a *Allocator) Strategy() Strategy {
	a.ensureSelected()
	return a.strategy
}

func (s Strategy) String() string {
	switch s {
	case FirstFit:
		return "firstfit"
	case Buddy:
		return "buddy"
	default:
		return "invalid"
	}
}
