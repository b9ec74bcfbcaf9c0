// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/shuffle"
	"github.com/olekukonko/tablewriter"
)

var stdout = io.Writer(os.Stdout)
var stderr = io.Writer(os.Stderr)
var osExit = os.Exit

// parseLengths parses a comma separated list of partition lengths. An empty
// element is an empty partition.
func parseLengths(s string) (shuffle.PartitionLengths, error) {
	fields := strings.Split(s, ",")
	lengths := make(shuffle.PartitionLengths, len(fields))
	for i, f := range fields {
		if f == "" {
			continue
		}
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid partition length %q", f)
		}
		if n < 0 {
			return nil, errors.Newf("negative partition length %d", n)
		}
		lengths[i] = n
	}
	return lengths, nil
}

// parseSpill parses a spill argument of the form <path>=<len0>,<len1>,...
func parseSpill(arg string) (shuffle.SpillInfo, error) {
	i := strings.LastIndexByte(arg, '=')
	if i <= 0 {
		return shuffle.SpillInfo{}, errors.Newf("invalid spill %q: expected <path>=<lengths>", arg)
	}
	lengths, err := parseLengths(arg[i+1:])
	if err != nil {
		return shuffle.SpillInfo{}, errors.Wrapf(err, "invalid spill %q", arg)
	}
	return shuffle.SpillInfo{Path: arg[:i], PartitionLengths: lengths}, nil
}

// parseSpills parses spill arguments, checking that each describes
// numPartitions partitions.
func parseSpills(args []string, numPartitions int) ([]shuffle.SpillInfo, error) {
	if numPartitions <= 0 {
		return nil, errors.Newf("invalid number of partitions %d", numPartitions)
	}
	spills := make([]shuffle.SpillInfo, len(args))
	for i, arg := range args {
		var err error
		if spills[i], err = parseSpill(arg); err != nil {
			return nil, err
		}
		if n := len(spills[i].PartitionLengths); n != numPartitions {
			return nil, errors.Newf("spill %s has %d partitions, expected %d", spills[i].Path, n, numPartitions)
		}
	}
	return spills, nil
}

// newTable returns a table writer producing plain aligned columns.
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader(header)
	tbl.SetAutoFormatHeaders(false)
	tbl.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tbl.SetAlignment(tablewriter.ALIGN_LEFT)
	tbl.SetHeaderLine(false)
	tbl.SetBorder(false)
	tbl.SetColumnSeparator("")
	tbl.SetCenterSeparator("")
	tbl.SetRowSeparator("")
	tbl.SetTablePadding("  ")
	tbl.SetNoWhiteSpace(true)
	return tbl
}

func writePartitionTable(w io.Writer, lengths shuffle.PartitionLengths) {
	tbl := newTable(w, "partition", "offset", "length")
	offsets := lengths.Offsets()
	for p, n := range lengths {
		tbl.Append([]string{
			strconv.Itoa(p),
			strconv.FormatInt(offsets[p], 10),
			strconv.FormatInt(n, 10),
		})
	}
	tbl.Render()
}
