// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command mallocdemo exercises a mallocator.Allocator through a short
// scripted sequence of allocate/realloc/free calls and prints stats,
// the way original_source/src/main.cpp drives its AlgorithmWrapper
// with a fixed bud_malloc/bud_realloc/bud_malloc sequence.
//
// No CLI framework is used here - just ordinary idiomatic flag usage.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/alihatamitajik/mallocator/internal/heapsrc"
	"github.com/alihatamitajik/mallocator/mallocator"
)

func main() {
	strategy := flag.String("strategy", "firstfit", "allocation strategy: firstfit or buddy")
	arenaSize := flag.Int("arena", 1<<20, "arena reservation size in bytes")
	min := flag.Int("min", 0, "minimum allocation size")
	max := flag.Int("max", -1, "maximum allocation size, -1 for unbounded")
	heapFile := flag.String("heapfile", "", "back the in-memory arena with this file, which follows the heap's size")
	flag.Parse()

	heap, closeHeap, err := openHeap(*strategy, *heapFile, *arenaSize)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mallocdemo:", err)
		os.Exit(1)
	}
	defer closeHeap()

	a := mallocator.New(heap)

	if _, err := a.Select(*strategy); err != nil {
		fmt.Fprintln(os.Stderr, "mallocdemo:", err)
		os.Exit(1)
	}

	a.SetMin(*min)
	a.SetMax(*max)

	if err := run(a); err != nil {
		fmt.Fprintln(os.Stderr, "mallocdemo:", err)
		os.Exit(1)
	}

	if fh, ok := heap.(*heapsrc.FileHeap); ok {
		n, err := a.ReclaimDiskSpace(fh)
		if err != nil {
			fmt.Fprintln(os.Stderr, "mallocdemo: reclaim disk space:", err)
			os.Exit(1)
		}
		fmt.Printf("reclaimed %d interior free block(s) of disk space\n", n)
	}
}

// openHeap picks the heap source via heapsrc.Options/heapsrc.Open: a
// plain in-memory ArenaHeap by default, or a FileHeap whose file at
// path follows the heap's size on every Grow/SetBreak when -heapfile
// is given (the file holds zeros, not the heap's contents). The growth
// mode tracks the chosen strategy - firstfit extends the break exactly
// as much as each split/extend needs, buddy doubles the whole arena
// past the first allocation, so its reservation must at least hold one
// minimum-size buddy block.
func openHeap(strategy, path string, arenaSize int) (heapsrc.Source, func(), error) {
	opts := &heapsrc.Options{ArenaSize: arenaSize, Grow: heapsrc.GrowExact}
	if strategy == "buddy" {
		opts.Grow = heapsrc.GrowDouble
	}

	if path == "" {
		src, err := heapsrc.Open(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("open heap: %w", err)
		}
		return src, func() {}, nil
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open heap file: %w", err)
	}

	opts.File = f
	src, err := heapsrc.Open(opts)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("open heap: %w", err)
	}

	fh := src.(*heapsrc.FileHeap)
	return fh, func() { fh.Close() }, nil
}

// run reproduces original_source/src/main.cpp's scripted sequence:
// allocate 20 bytes, shrink it to 5 via realloc, then allocate a fresh
// 5 bytes - the "Realloc-split-in-place" scenario spec §8 names.
func run(a *mallocator.Allocator) error {
	p, err := a.Allocate(20, 0)
	if err != nil {
		return fmt.Errorf("malloc(20): %w", err)
	}
	fmt.Printf("malloc(20)  -> %p\n", p)

	p, err = a.Reallocate(p, 5, 0)
	if err != nil {
		return fmt.Errorf("realloc(p, 5): %w", err)
	}
	fmt.Printf("realloc(5)  -> %p\n", p)

	q, err := a.Allocate(5, 0)
	if err != nil {
		return fmt.Errorf("malloc(5): %w", err)
	}
	fmt.Printf("malloc(5)   -> %p\n", q)

	a.ShowStats(os.Stdout)

	a.Deallocate(p)
	a.Deallocate(q)
	return nil
}
