// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package shuffle merges the spill files written by a shuffle-map task into
// the task's single output file.
//
// A map task that runs out of memory spills its sorted records to disk,
// producing several spill files that each hold every reduce partition's bytes
// contiguously in partition order. MergeSpills combines them into one file
// with the same layout and reports the byte length of every partition, from
// which an index of partition offsets can be written.
//
// The multi-spill path copies partition byte ranges with sendfile where the
// kernel allows it and falls back to a bounded buffer otherwise. The output
// is opened in append mode and its final position is checked against the
// number of bytes transferred; a mismatch is reported as
// KindKernelTransferInvariant.
//
// Placement of block files into an executor's local directories is
// implemented by the shuffledir package.
package shuffle // import "github.com/cockroachdb/shuffle"
