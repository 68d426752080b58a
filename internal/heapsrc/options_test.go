// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heapsrc

import "testing"

func TestOptionsCheckRejectsNonPositiveArenaSize(t *testing.T) {
	o := &Options{ArenaSize: 0}
	if err := o.check(); err == nil {
		t.Fatal("check() should reject a non-positive ArenaSize")
	}
}

func TestOptionsCheckRejectsUndersizedDoublingArena(t *testing.T) {
	o := &Options{ArenaSize: minDoublingArena - 1, Grow: GrowDouble}
	if err := o.check(); err == nil {
		t.Fatal("check() should reject a GrowDouble arena smaller than minDoublingArena")
	}
}

func TestOptionsCheckAcceptsExactArenaOfAnySize(t *testing.T) {
	o := &Options{ArenaSize: 1, Grow: GrowExact}
	if err := o.check(); err != nil {
		t.Fatalf("check() rejected a valid GrowExact arena: %v", err)
	}
}

func TestOptionsCheckRunsOnlyOnce(t *testing.T) {
	o := &Options{ArenaSize: 128, Grow: GrowDouble}
	if err := o.check(); err != nil {
		t.Fatalf("check(): %v", err)
	}

	// Mutating ArenaSize after the first check must not retrigger
	// validation - check() is a one-time gate, mirroring
	// dbm.Options.check's checked flag.
	o.ArenaSize = 0
	if err := o.check(); err != nil {
		t.Fatalf("second check() call should be a no-op: %v", err)
	}
}

func TestOptionsCheckRejectsUnknownGrowMode(t *testing.T) {
	o := &Options{ArenaSize: 128, Grow: GrowMode(99)}
	if err := o.check(); err == nil {
		t.Fatal("check() should reject an unknown GrowMode")
	}
}

func TestOpenReturnsArenaHeapWithoutFile(t *testing.T) {
	src, err := Open(&Options{ArenaSize: 256, Grow: GrowExact})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, ok := src.(*ArenaHeap); !ok {
		t.Fatalf("Open without File = %T, want *ArenaHeap", src)
	}
}

func TestOpenReturnsFileHeapWithFile(t *testing.T) {
	f := tempFile(t)
	src, err := Open(&Options{ArenaSize: 256, Grow: GrowExact, File: f})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	fh, ok := src.(*FileHeap)
	if !ok {
		t.Fatalf("Open with File = %T, want *FileHeap", src)
	}
	defer fh.Close()
}

func TestOpenRejectsInvalidOptions(t *testing.T) {
	if _, err := Open(&Options{ArenaSize: -1}); err == nil {
		t.Fatal("Open should surface a failed check()")
	}
}

func TestGrowModeString(t *testing.T) {
	cases := map[GrowMode]string{GrowExact: "exact", GrowDouble: "double", GrowMode(7): "invalid"}
	for mode, want := range cases {
		if got := mode.String(); got != want {
			t.Errorf("GrowMode(%d).String() = %q, want %q", mode, got, want)
		}
	}
}
