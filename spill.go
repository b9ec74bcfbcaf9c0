// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package shuffle

import (
	"slices"

	"github.com/cockroachdb/redact"
)

// SpillInfo describes one spill file written by a shuffle-map task. The file
// holds every partition's bytes contiguously in partition order, and
// PartitionLengths[p] is the number of bytes of partition p. The sum of the
// lengths equals the size of the file.
type SpillInfo struct {
	Path             string
	PartitionLengths []int64
}

// String implements fmt.Stringer.
func (s SpillInfo) String() string {
	return redact.StringWithoutMarkers(s)
}

// SafeFormat implements redact.SafeFormatter.
func (s SpillInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%s %s", s.Path, PartitionLengths(s.PartitionLengths))
}

// PartitionLengths holds the byte length of every partition of a file in
// which partitions are stored contiguously in index order.
type PartitionLengths []int64

// Total returns the sum of the lengths, which is the size of the file.
func (l PartitionLengths) Total() int64 {
	var total int64
	for _, n := range l {
		total += n
	}
	return total
}

// Offsets returns len(l)+1 offsets: partition p occupies the byte range
// [offsets[p], offsets[p+1]) of the file.
func (l PartitionLengths) Offsets() []int64 {
	offsets := make([]int64, len(l)+1)
	for p, n := range l {
		offsets[p+1] = offsets[p] + n
	}
	return offsets
}

// Range returns the offset and length of partition p.
func (l PartitionLengths) Range(p int) (offset, length int64) {
	for _, n := range l[:p] {
		offset += n
	}
	return offset, l[p]
}

// Clone returns a copy of l.
func (l PartitionLengths) Clone() PartitionLengths {
	return slices.Clone(l)
}

// String implements fmt.Stringer.
func (l PartitionLengths) String() string {
	return redact.StringWithoutMarkers(l)
}

// SafeFormat implements redact.SafeFormatter.
func (l PartitionLengths) SafeFormat(w redact.SafePrinter, _ rune) {
	w.SafeRune('[')
	for p, n := range l {
		if p > 0 {
			w.SafeRune(' ')
		}
		w.Print(redact.Safe(n))
	}
	w.SafeRune(']')
}
