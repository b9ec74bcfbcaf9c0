// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package shuffle

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/shuffle/internal/base"
	"github.com/cockroachdb/shuffle/internal/invariants"
	"github.com/cockroachdb/shuffle/internal/transfer"
	"github.com/cockroachdb/shuffle/vfs"
)

// concatenator merges two or more spills by appending, for each partition in
// turn, that partition's bytes from every spill to the output.
type concatenator struct {
	inputs  []vfs.File
	cursors []int64
	stats   transfer.Stats
}

func (c *concatenator) run(
	opts *Options, spills []SpillInfo, outputPath string, numPartitions int,
) (lengths PartitionLengths, err error) {
	var handles base.CloseGroup
	defer func() {
		// On failure the close errors are only logged. After a successful
		// merge, a close error fails the merge.
		if releaseErr := handles.Release(err, opts.Logger); releaseErr != nil && err == nil {
			lengths, err = nil, newMergeError(KindResourceRelease, releaseErr)
		}
	}()

	c.inputs = make([]vfs.File, len(spills))
	c.cursors = make([]int64, len(spills))
	for i := range spills {
		f, openErr := opts.FS.Open(spills[i].Path)
		if openErr != nil {
			return nil, newMergeError(KindTransferIO,
				errors.Wrapf(openErr, "opening spill %s", spills[i].Path))
		}
		handles.Add(spills[i].Path, f)
		c.inputs[i] = f
	}
	out, openErr := transfer.OpenAppender(opts.FS, outputPath, opts.transferOptions())
	if openErr != nil {
		return nil, newMergeError(KindCreateOutput,
			errors.Wrapf(openErr, "opening merge output %s", outputPath))
	}
	handles.Add(outputPath, out)

	lengths = make(PartitionLengths, numPartitions)
	for p := 0; p < numPartitions; p++ {
		for i := range spills {
			n := spills[i].PartitionLengths[p]
			if xferErr := out.TransferFrom(c.inputs[i], c.cursors[i], n); xferErr != nil {
				c.stats = out.Stats()
				return nil, newMergeError(KindTransferIO,
					errors.Wrapf(xferErr, "partition %d of spill %s", p, spills[i].Path))
			}
			c.cursors[i] += n
			lengths[p] += n
		}
	}
	c.stats = out.Stats()

	if verifyErr := out.Verify(); verifyErr != nil {
		kind := KindTransferIO
		if errors.Is(verifyErr, base.ErrTransferPosition) {
			kind = KindKernelTransferInvariant
		}
		return nil, newMergeError(kind, verifyErr)
	}
	invariants.CheckEqual(out.Written(), lengths.Total(),
		"merge output %s: wrote %d bytes, partition lengths sum to %d",
		outputPath, out.Written(), lengths.Total())

	for i := range spills {
		if checkErr := c.checkConsumed(spills[i], i); checkErr != nil {
			return nil, checkErr
		}
	}
	return lengths, nil
}

// checkConsumed verifies that the whole of spill i was transferred.
func (c *concatenator) checkConsumed(spill SpillInfo, i int) error {
	finfo, err := c.inputs[i].Stat()
	if err != nil {
		return newMergeError(KindTransferIO, errors.Wrapf(err, "stat spill %s", spill.Path))
	}
	if size := finfo.Size(); size != c.cursors[i] {
		err := base.CorruptionErrorf("spill %s: size %d does not match partition lengths summing to %d",
			spill.Path, errors.Safe(size), errors.Safe(c.cursors[i]))
		if invariants.Enabled {
			panic(err)
		}
		return newMergeError(KindSpillLengthMismatch, err)
	}
	return nil
}
