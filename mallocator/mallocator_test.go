// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mallocator

import (
	"bytes"
	"testing"

	"github.com/alihatamitajik/mallocator/internal/heapsrc"
)

func newAllocator(t *testing.T, limit int) *Allocator {
	t.Helper()
	return New(heapsrc.NewArenaHeap(limit))
}

func TestSelectLocksStrategy(t *testing.T) {
	a := newAllocator(t, 4096)

	s, err := a.Select("buddy")
	if err != nil || s != Buddy {
		t.Fatalf("Select(buddy) = %v, %v, want Buddy, nil", s, err)
	}

	if _, err := a.Select("firstfit"); err == nil {
		t.Fatal("second Select call should be rejected")
	}
}

func TestSelectUnknownNameReturnsInvalid(t *testing.T) {
	a := newAllocator(t, 4096)

	s, err := a.Select("quantum-foam")
	if s != Invalid || err == nil {
		t.Fatalf("Select(bogus) = %v, %v, want Invalid, error", s, err)
	}

	// A rejected Select must not lock the allocator.
	if _, err := a.Select("buddy"); err != nil {
		t.Fatalf("Select after a failed attempt should still succeed: %v", err)
	}
}

func TestLazyDefaultsToFirstFit(t *testing.T) {
	a := newAllocator(t, 4096)

	if _, err := a.Allocate(16, 0); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	if a.Strategy() != FirstFit {
		t.Fatalf("Strategy() = %v, want FirstFit after lazy default", a.Strategy())
	}
}

func TestSelectNamesCaseInsensitive(t *testing.T) {
	a := newAllocator(t, 4096)
	if _, err := a.Select("BUDDY"); err != nil {
		t.Fatalf("Select(BUDDY): %v", err)
	}

	if a.Strategy() != Buddy {
		t.Fatalf("Strategy() = %v, want Buddy", a.Strategy())
	}
}

func TestAllocatorDispatchesToSelectedEngine(t *testing.T) {
	a := newAllocator(t, 1<<16)
	if _, err := a.Select("buddy"); err != nil {
		t.Fatalf("Select: %v", err)
	}

	p, err := a.Allocate(20, 0)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	q, err := a.Reallocate(p, 5, 0)
	if err != nil {
		t.Fatalf("Reallocate: %v", err)
	}

	if p != q {
		t.Fatalf("buddy same-class realloc should keep address: got %p, want %p", q, p)
	}

	a.Deallocate(q)

	var buf bytes.Buffer
	a.ShowStats(&buf)
	if buf.Len() == 0 {
		t.Fatal("ShowStats wrote nothing")
	}
}

func TestSetMinMaxForwardedToEngine(t *testing.T) {
	a := newAllocator(t, 4096)
	if got := a.SetMin(8); got != 8 {
		t.Fatalf("SetMin(8) = %d, want 8", got)
	}

	if _, err := a.Allocate(4, 0); err == nil {
		t.Fatal("Allocate below the forwarded Min should fail")
	}
}

func TestStrategyStringer(t *testing.T) {
	cases := map[Strategy]string{FirstFit: "firstfit", Buddy: "buddy", Invalid: "invalid"}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("Strategy(%d).String() = %q, want %q", s, got, want)
		}
	}
}
