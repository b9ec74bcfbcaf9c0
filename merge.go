// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package shuffle

import (
	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/shuffle/vfs"
)

// Merger merges the spill files of shuffle-map tasks. A Merger holds no
// per-merge state and is safe for concurrent use by independent merges.
type Merger struct {
	opts Options
}

// NewMerger returns a Merger configured with opts, which may be nil.
func NewMerger(opts *Options) *Merger {
	m := &Merger{}
	if opts != nil {
		m.opts = *opts
	}
	m.opts.EnsureDefaults()
	return m
}

// MergeSpills merges spills into a single file at outputPath and returns the
// length of every partition in it. Partition p of the output is partition p
// of every spill, in spill order.
//
//   - With no spills an empty file is created.
//   - A single spill is renamed to outputPath; its partition lengths are
//     returned unchanged.
//   - Two or more spills are concatenated. The spill files are left in place.
//
// If the merge fails, any file at outputPath is cleaned up with
// Options.Cleaner before the error is returned. The error is a *MergeError
// wrapping the underlying cause.
//
// numPartitions must be positive and every spill must carry exactly
// numPartitions non-negative lengths; MergeSpills panics otherwise.
func (m *Merger) MergeSpills(
	spills []SpillInfo, outputPath string, numPartitions int,
) (PartitionLengths, error) {
	checkMergeInputs(spills, numPartitions)

	info := MergeInfo{
		Output:        outputPath,
		Strategy:      strategyFor(len(spills)),
		NumSpills:     len(spills),
		NumPartitions: numPartitions,
	}
	m.opts.EventListener.MergeBegin(info)
	start := crtime.NowMono()

	var lengths PartitionLengths
	var err error
	switch info.Strategy {
	case StrategyEmpty:
		lengths, err = m.createEmpty(outputPath, numPartitions)
	case StrategyRename:
		lengths, err = m.promote(spills[0], outputPath)
	default:
		var c concatenator
		lengths, err = c.run(&m.opts, spills, outputPath, numPartitions)
		info.ZeroCopyBytes = c.stats.ZeroCopyBytes
		info.BufferedBytes = c.stats.BufferedBytes
	}
	if err != nil {
		m.cleanupOutput(outputPath)
		lengths = nil
	}

	info.Done = true
	info.Bytes = lengths.Total()
	info.Duration = start.Elapsed()
	info.Err = err
	m.opts.Metrics.record(info)
	m.opts.EventListener.MergeEnd(info)
	return lengths, err
}

func checkMergeInputs(spills []SpillInfo, numPartitions int) {
	if numPartitions <= 0 {
		panic(errors.AssertionFailedf("invalid number of partitions %d", numPartitions))
	}
	for i := range spills {
		if n := len(spills[i].PartitionLengths); n != numPartitions {
			panic(errors.AssertionFailedf("spill %d has %d partition lengths, expected %d",
				i, n, numPartitions))
		}
		for p, n := range spills[i].PartitionLengths {
			if n < 0 {
				panic(errors.AssertionFailedf("spill %d has negative length %d for partition %d", i, n, p))
			}
		}
	}
}

// createEmpty creates an empty output file and returns all-zero lengths.
func (m *Merger) createEmpty(outputPath string, numPartitions int) (PartitionLengths, error) {
	f, err := m.opts.FS.Create(outputPath)
	if err != nil {
		return nil, newMergeError(KindCreateOutput,
			errors.Wrapf(err, "creating empty merge output %s", outputPath))
	}
	// The file is complete once created, so a failure to close it does not
	// fail the merge.
	if err := f.Close(); err != nil {
		m.opts.Logger.Errorf("error closing empty merge output %s: %v", outputPath, err)
	}
	return make(PartitionLengths, numPartitions), nil
}

// promote renames the only spill to the output path. No bytes are copied.
func (m *Merger) promote(spill SpillInfo, outputPath string) (PartitionLengths, error) {
	if err := m.opts.FS.Rename(spill.Path, outputPath); err != nil {
		return nil, newMergeError(KindRenameFailure,
			errors.Wrapf(err, "renaming spill %s to %s", spill.Path, outputPath))
	}
	return PartitionLengths(spill.PartitionLengths).Clone(), nil
}

// cleanupOutput disposes of whatever a failed merge left at outputPath.
// Failures are reported and otherwise ignored.
func (m *Merger) cleanupOutput(outputPath string) {
	exists, err := vfs.Exists(m.opts.FS, outputPath)
	if err == nil && !exists {
		return
	}
	if err == nil {
		err = m.opts.Cleaner.Clean(m.opts.FS, outputPath)
	}
	if err != nil {
		m.opts.EventListener.OutputCleanupError(outputPath, err)
	}
}
