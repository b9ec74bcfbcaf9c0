// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/shuffle"
	"github.com/cockroachdb/shuffle/shuffledir"
	"github.com/spf13/cobra"
)

// dirsT implements the local directory tools.
type dirsT struct {
	Place     *cobra.Command
	TempBlock *cobra.Command
	Key       *cobra.Command

	opts      *shuffle.Options
	localDirs []string
	subDirs   int
}

func newDirs(opts *shuffle.Options) *dirsT {
	d := &dirsT{opts: opts}
	d.Place = &cobra.Command{
		Use:   "place --local-dirs=<dir>,... <name>...",
		Short: "print where block files are stored",
		Long: `
Print the path each named block file is stored at within the executor's local
directories, creating the hashed subdirectories as needed.
`,
		Args: cobra.MinimumNArgs(1),
		Run:  d.runPlace,
	}
	d.TempBlock = &cobra.Command{
		Use:   "temp-block --local-dirs=<dir>,... [<name>]",
		Short: "allocate a temporary shuffle block",
		Long: `
Allocate a temporary shuffle block id whose file does not exist yet and print
the id and the path of the file.
`,
		Args: cobra.MaximumNArgs(1),
		Run:  d.runTempBlock,
	}
	d.Key = &cobra.Command{
		Use:   "key <app-id> <exec-id> <block-id>",
		Short: "print the registry key of a block",
		Args:  cobra.ExactArgs(3),
		Run:   d.runKey,
	}

	for _, cmd := range []*cobra.Command{d.Place, d.TempBlock} {
		cmd.Flags().StringSliceVar(&d.localDirs, "local-dirs", nil, "the executor's local directories")
		cmd.Flags().IntVar(&d.subDirs, "sub-dirs", 64, "number of subdirectories per local directory")
	}
	return d
}

// newDirs returns the layout described by the flags. The local directories
// themselves are created if they do not exist.
func (d *dirsT) newDirs() (*shuffledir.Dirs, error) {
	dirs, err := shuffledir.New(d.opts.FS, d.opts.Logger, shuffledir.ExecutorShuffleInfo{
		LocalDirs:          d.localDirs,
		SubDirsPerLocalDir: d.subDirs,
	})
	if err != nil {
		return nil, err
	}
	for _, dir := range d.localDirs {
		if err := d.opts.FS.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "creating local dir %s", dir)
		}
	}
	return dirs, nil
}

func (d *dirsT) runPlace(cmd *cobra.Command, args []string) {
	dirs, err := d.newDirs()
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		osExit(1)
		return
	}
	tbl := newTable(stdout, "name", "dir", "subdir", "path")
	for _, name := range args {
		dirID, subDirID := shuffledir.Locate(dirs.Info(), name)
		tbl.Append([]string{
			name,
			dirs.Info().LocalDirs[dirID],
			shuffledir.SubDirName(subDirID),
			dirs.File(name),
		})
	}
	tbl.Render()
}

func (d *dirsT) runTempBlock(cmd *cobra.Command, args []string) {
	dirs, err := d.newDirs()
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		osExit(1)
		return
	}
	var name string
	if len(args) > 0 {
		name = args[0]
	}
	id, path, err := dirs.CreateTempShuffleBlock(name)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		osExit(1)
		return
	}
	fmt.Fprintf(stdout, "%s %s\n", id, path)
}

func (d *dirsT) runKey(cmd *cobra.Command, args []string) {
	fmt.Fprintf(stdout, "%s\n", shuffledir.AppExecBlockKey(args[0], args[1], args[2]))
}
