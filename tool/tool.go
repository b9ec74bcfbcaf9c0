// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package tool implements the shuffle command line tools: merging spill
// files, inspecting merged outputs and exploring the local directory layout.
package tool

import (
	"github.com/cockroachdb/shuffle"
	"github.com/cockroachdb/shuffle/vfs"
	"github.com/spf13/cobra"
)

// T is the container for all of the shuffle tools.
type T struct {
	Commands []*cobra.Command
	merge    *mergeT
	dirs     *dirsT
	verify   *verifyT
	opts     shuffle.Options
}

// A Option configures the shuffle tools.
type Option func(*T)

// FS sets the filesystem implementation the tools use.
func FS(fs vfs.FS) Option {
	return func(t *T) {
		t.opts.FS = fs
	}
}

// Logger sets the logger the tools use for verbose output.
func Logger(logger shuffle.Logger) Option {
	return func(t *T) {
		t.opts.Logger = logger
	}
}

// Metrics sets the collectors updated by merges run by the tools.
func Metrics(m *shuffle.MergeMetrics) Option {
	return func(t *T) {
		t.opts.Metrics = m
	}
}

// New creates a new shuffle tool.
func New(opts ...Option) *T {
	t := &T{}
	for _, opt := range opts {
		opt(t)
	}
	if t.opts.FS == nil {
		t.opts.FS = vfs.Default
	}
	if t.opts.Logger == nil {
		t.opts.Logger = shuffle.DefaultLogger
	}

	t.merge = newMerge(&t.opts)
	t.dirs = newDirs(&t.opts)
	t.verify = newVerify(&t.opts)
	t.Commands = []*cobra.Command{
		t.merge.Root,
		t.dirs.Place,
		t.dirs.TempBlock,
		t.dirs.Key,
		t.verify.Root,
	}
	return t
}
