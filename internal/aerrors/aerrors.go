// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package aerrors defines the structured error types shared by the
// firstfit and buddy engines and the mallocator façade. Following
// lldb's convention (*ErrINVAL, *ErrILSEQ), these are small, inspectable
// struct types rather than fmt.Errorf-wrapped strings.
package aerrors

import "fmt"

// OutOfRangeError reports a request rejected by the size-range filter
// (C3), before the request ever reaches an engine.
type OutOfRangeError struct {
	Size int
	Min  int
	Max  int // filter.Unbounded if there is no upper bound
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("mallocator: size %d out of range [%d, %d]", e.Size, e.Min, e.Max)
}

// CorruptListError is returned when a defensive walk of the block list
// finds a state the address-ordering invariants forbid - the Go
// analogue of lldb's *ErrILSEQ ("impossible sequence").
type CorruptListError struct {
	Reason string
	Addr   uintptr
}

func (e *CorruptListError) Error() string {
	return fmt.Sprintf("mallocator: corrupt block list at %#x: %s", e.Addr, e.Reason)
}

// InvalidPointerError is returned by Reallocate when ptr does not
// refer to a currently allocated block.
type InvalidPointerError struct {
	Reason string
}

func (e *InvalidPointerError) Error() string {
	return "mallocator: invalid pointer: " + e.Reason
}

// SelectionError reports façade strategy-selection misuse (§4.3/§7).
type SelectionError struct {
	Reason string
}

func (e *SelectionError) Error() string {
	return "mallocator: " + e.Reason
}
