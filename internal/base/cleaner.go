// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/shuffle/vfs"

// Cleaner disposes of a partially written output file after a failed merge.
type Cleaner interface {
	Clean(fs vfs.FS, path string) error
}

// DeleteCleaner deletes the file.
type DeleteCleaner struct{}

// Clean removes the file.
func (DeleteCleaner) Clean(fs vfs.FS, path string) error {
	return fs.Remove(path)
}

func (DeleteCleaner) String() string {
	return "delete"
}

// ArchiveCleaner moves the file into an "archive" directory next to it instead
// of deleting it, so that a failed merge can be inspected later.
type ArchiveCleaner struct{}

// Clean archives the file.
func (ArchiveCleaner) Clean(fs vfs.FS, path string) error {
	destDir := fs.PathJoin(fs.PathDir(path), "archive")
	if err := fs.MkdirAll(destDir, 0755); err != nil {
		return err
	}
	return fs.Rename(path, fs.PathJoin(destDir, fs.PathBase(path)))
}

func (ArchiveCleaner) String() string {
	return "archive"
}
