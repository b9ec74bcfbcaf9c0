// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package shuffledir maps shuffle block files onto an executor's local
// directories.
//
// Block files are spread over a two-level tree: a hash of the file name picks
// one of the configured local directories and then one of a fixed number of
// subdirectories inside it, named with two lowercase hex digits. This bounds
// the number of entries in any one directory.
package shuffledir

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/shuffle/internal/base"
	"github.com/cockroachdb/shuffle/vfs"
)

// ExecutorShuffleInfo describes the local directories an executor stores
// shuffle files in. It is supplied when the executor registers and is never
// modified.
type ExecutorShuffleInfo struct {
	// LocalDirs are the root directories block files are spread over.
	LocalDirs []string
	// SubDirsPerLocalDir is the number of hashed subdirectories in each
	// local directory.
	SubDirsPerLocalDir int
	// ShuffleManager names the shuffle manager that wrote the files. It is
	// informational only.
	ShuffleManager string
}

// Validate checks that the layout can place files.
func (i ExecutorShuffleInfo) Validate() error {
	if len(i.LocalDirs) == 0 {
		return errors.New("shuffledir: no local directories")
	}
	if i.SubDirsPerLocalDir <= 0 {
		return errors.Newf("shuffledir: invalid number of subdirectories per local directory %d",
			i.SubDirsPerLocalDir)
	}
	return nil
}

// String implements fmt.Stringer.
func (i ExecutorShuffleInfo) String() string {
	return redact.StringWithoutMarkers(i)
}

// SafeFormat implements redact.SafeFormatter.
func (i ExecutorShuffleInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("ExecutorShuffleInfo{localDirs=%v, subDirsPerLocalDir=%d",
		i.LocalDirs, redact.Safe(i.SubDirsPerLocalDir))
	if i.ShuffleManager != "" {
		w.Printf(", shuffleManager=%s", redact.Safe(i.ShuffleManager))
	}
	w.SafeRune('}')
}

// Dirs places block files inside the directories described by an
// ExecutorShuffleInfo. A Dirs is safe for concurrent use.
type Dirs struct {
	fs     vfs.FS
	logger base.Logger
	info   ExecutorShuffleInfo
	newID  func() (TempShuffleBlockID, error)

	// created records subdirectories known to exist, so that File only
	// touches the file system the first time a subdirectory is needed.
	created sync.Map
}

// New returns a Dirs for info. Subdirectories are created lazily by File.
func New(fs vfs.FS, logger base.Logger, info ExecutorShuffleInfo) (*Dirs, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = base.DefaultLogger
	}
	return &Dirs{
		fs:     fs,
		logger: logger,
		info:   info,
		newID:  NewTempShuffleBlockID,
	}, nil
}

// Info returns the layout the Dirs was created with.
func (d *Dirs) Info() ExecutorShuffleInfo {
	return d.info
}

// Locate returns the local directory index and subdirectory index filename
// hashes to. It has no side effects.
func Locate(info ExecutorShuffleInfo, filename string) (dirID, subDirID int) {
	hash := nonNegativeHash(filename)
	dirID = hash % len(info.LocalDirs)
	subDirID = (hash / len(info.LocalDirs)) % info.SubDirsPerLocalDir
	return dirID, subDirID
}

// SubDirName formats a subdirectory index the way it appears on disk.
func SubDirName(subDirID int) string {
	return fmt.Sprintf("%02x", subDirID)
}

// File returns the path filename is stored at. The same filename always maps
// to the same path. The containing subdirectory is created if it does not
// exist yet; failing to create it is logged and the path is returned anyway,
// leaving the error to surface when the file is opened.
func (d *Dirs) File(filename string) string {
	dirID, subDirID := Locate(d.info, filename)
	subDir := d.fs.PathJoin(d.info.LocalDirs[dirID], SubDirName(subDirID))
	if _, ok := d.created.Load(subDir); !ok {
		if err := vfs.MkdirIfAbsent(d.fs, subDir, 0755); err != nil {
			d.logger.Errorf("failed to create local dir in %s: %v", subDir, err)
		} else {
			d.created.Store(subDir, struct{}{})
		}
	}
	return d.fs.PathJoin(subDir, filename)
}
