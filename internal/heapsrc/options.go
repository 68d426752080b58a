// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapsrc

import (
	"fmt"
	"os"
)

// GrowMode documents which engine family a heap source is being
// prepared for. First-fit always extends the heap by exactly the
// bytes an Extend/Split needs (GrowExact); buddy doubles the whole
// arena on every extension past the first (GrowDouble), so its
// reservation must at least hold one minimum-size buddy block.
type GrowMode int

const (
	// GrowExact is first-fit's growth discipline (spec §4.1's Extend).
	GrowExact GrowMode = iota
	// GrowDouble is buddy's growth discipline (spec §4.2's Extend).
	GrowDouble
)

func (m GrowMode) String() string {
	switch m {
	case GrowExact:
		return "exact"
	case GrowDouble:
		return "double"
	default:
		return "invalid"
	}
}

// minDoublingArena mirrors buddy.MinBlockSize (spec §4.2's MIN_BLOCK).
// It is duplicated here rather than imported because buddy already
// imports heapsrc, and heapsrc importing buddy back would cycle.
const minDoublingArena = 64

// Options configures a heap source at construction, modelled on
// dbm.Options's "configure once, validate before first use" shape
// (dbm/options.go's Options/check).
type Options struct {
	// ArenaSize is the reservation: the most bytes the heap can ever
	// Grow to in total. The engine, not ArenaSize, decides the size of
	// each Grow.
	ArenaSize int

	// Grow records which engine family Options was prepared for; check
	// rejects an ArenaSize that could never host that engine's block
	// layout.
	Grow GrowMode

	// File optionally backs the arena on disk (see FileHeap). Nil
	// means a pure in-memory ArenaHeap.
	File *os.File

	checked bool
}

// check validates o exactly once; repeated calls are no-ops, the same
// way dbm.Options.check short-circuits on its own checked flag.
func (o *Options) check() error {
	if o.checked {
		return nil
	}

	if o.ArenaSize <= 0 {
		return fmt.Errorf("heapsrc: non-positive Options.ArenaSize: %d", o.ArenaSize)
	}

	switch o.Grow {
	case GrowExact:
	case GrowDouble:
		if o.ArenaSize < minDoublingArena {
			return fmt.Errorf("heapsrc: GrowDouble requires ArenaSize >= %d, got %d", minDoublingArena, o.ArenaSize)
		}
	default:
		return fmt.Errorf("heapsrc: unsupported Options.Grow: %d", o.Grow)
	}

	o.checked = true
	return nil
}

// Open validates o and returns the Source it describes: a FileHeap
// when File is set, otherwise a plain in-memory ArenaHeap.
func Open(o *Options) (Source, error) {
	if err := o.check(); err != nil {
		return nil, err
	}

	if o.File != nil {
		return NewFileHeap(o.File, o.ArenaSize)
	}

	return NewArenaHeap(o.ArenaSize), nil
}
