// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"fmt"
	"io"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/shuffle"
	"github.com/spf13/cobra"
)

// verifyT implements the verify tool.
type verifyT struct {
	Root *cobra.Command

	opts    *shuffle.Options
	lengths string
}

func newVerify(opts *shuffle.Options) *verifyT {
	v := &verifyT{opts: opts}
	v.Root = &cobra.Command{
		Use:   "verify --lengths=<len0>,<len1>,... <file>",
		Short: "checksum the partitions of a merged file",
		Long: `
Check that the size of a merged file matches its partition lengths and print
the offset, length and xxhash64 checksum of every partition. Partitions with
the same contents have the same checksum regardless of where they are stored,
so the output can be compared against the checksums of the spills.
`,
		Args: cobra.ExactArgs(1),
		Run:  v.runVerify,
	}
	v.Root.Flags().StringVar(&v.lengths, "lengths", "", "the partition lengths of the file")
	return v
}

func (v *verifyT) runVerify(cmd *cobra.Command, args []string) {
	if err := v.verify(stdout, args[0]); err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		osExit(1)
	}
}

func (v *verifyT) verify(w io.Writer, path string) error {
	lengths, err := parseLengths(v.lengths)
	if err != nil {
		return err
	}
	f, err := v.opts.FS.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	finfo, err := f.Stat()
	if err != nil {
		return err
	}
	if finfo.Size() != lengths.Total() {
		return errors.Newf("%s: size %d does not match partition lengths summing to %d",
			path, finfo.Size(), lengths.Total())
	}

	tbl := newTable(w, "partition", "offset", "length", "xxhash64")
	h := xxhash.New()
	for p := range lengths {
		off, n := lengths.Range(p)
		h.Reset()
		if _, err := io.Copy(h, io.NewSectionReader(f, off, n)); err != nil {
			return errors.Wrapf(err, "reading partition %d of %s", p, path)
		}
		tbl.Append([]string{
			strconv.Itoa(p),
			strconv.FormatInt(off, 10),
			strconv.FormatInt(n, 10),
			fmt.Sprintf("%016x", h.Sum64()),
		})
	}
	tbl.Render()
	return nil
}
