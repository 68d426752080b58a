// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package filter implements the min/max allocation size-range gate
// (C3) shared by the firstfit and buddy engines.
package filter

import "github.com/cznic/mathutil"

// Unbounded is the sentinel Max value meaning "no upper limit".
const Unbounded = -1

// Filter holds the effective [Min, Max] allocation size range. A
// Filter from New accepts any non-negative size (Max starts as
// Unbounded); the zero value has Max 0 and so accepts only size 0.
//
// Grounded on dbm.Options's validate-before-use shape and on the
// mathutil.Max/Min clamp idiom used throughout lldb (lldb/filer.go,
// lldb/memfiler.go, lldb/xact.go, lldb/2pc_test.go).
type Filter struct {
	Min int
	Max int // Unbounded disables the upper check
}

// New returns a Filter with no lower bound and no upper bound.
func New() *Filter {
	return &Filter{Min: 0, Max: Unbounded}
}

// SetMin sets Min to max(0, x), but only if that would not exceed the
// current Max (when Max is bounded). It returns the effective Min
// after the call, per spec §4.4.
func (f *Filter) SetMin(x int) int {
	x = mathutil.Max(0, x)
	if f.Max == Unbounded || x <= f.Max {
		f.Min = x
	}

	return f.Min
}

// SetMax sets Max. x == -1 disables the upper bound. Otherwise the new
// value is only accepted if x > Min, and is clamped to max(1, x): the
// buddy variant's apparent min(1, max) would clamp every accepted
// maximum down to 1, which cannot be the intended behaviour since the
// first-fit variant uses max(1, max). It returns the effective Max
// after the call.
func (f *Filter) SetMax(x int) int {
	switch {
	case x == Unbounded:
		f.Max = Unbounded
	case x > f.Min:
		f.Max = mathutil.Max(1, x)
	}

	return f.Max
}

// Allows reports whether size satisfies the current [Min, Max] range.
func (f *Filter) Allows(size int) bool {
	if size < f.Min {
		return false
	}

	return f.Max == Unbounded || size <= f.Max
}
