// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package vfs provides the file system abstraction used by the shuffle
// packages, with an OS-backed implementation and an in-memory one for tests.
package vfs // import "github.com/cockroachdb/shuffle/vfs"

import (
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/oserror"
)

// File is a readable, writable sequence of bytes.
//
// Typically, it will be an *os.File, but test code may choose to substitute
// memory-backed implementations.
type File interface {
	io.Closer
	io.Reader
	io.ReaderAt
	io.Writer
	// Seek sets the offset for the next Read or Write. Seek(0, io.SeekCurrent)
	// reports the current offset, which for a file opened with
	// FS.OpenAppend is the position the next write will land at.
	io.Seeker
	Stat() (FileInfo, error)
	Sync() error

	// Fd returns the raw file descriptor when a File is backed by an *os.File.
	// It can be used for specific functionality like zero-copy transfers.
	// Implementations that are not backed by a descriptor return InvalidFd.
	Fd() uintptr
}

// InvalidFd is a special value returned by File.Fd() when the file is not
// backed by an OS descriptor (e.g. in-memory files).
const InvalidFd uintptr = ^(uintptr(0))

// FileInfo describes a file.
type FileInfo = os.FileInfo

// FS is a namespace for files.
//
// The names are filepath names: they may be / separated or \ separated,
// depending on the underlying operating system.
type FS interface {
	// Create creates the named file for reading and writing, truncating it if
	// it already exists.
	Create(name string) (File, error)

	// Open opens the named file for reading.
	Open(name string) (File, error)

	// OpenAppend opens the named file for writing in append mode, creating it
	// if necessary and truncating any existing contents. Every write lands at
	// the current end of the file regardless of the file offset.
	OpenAppend(name string) (File, error)

	// Remove removes the named file or empty directory.
	Remove(name string) error

	// Rename renames a file. It overwrites the file at newname if one exists,
	// the same as os.Rename.
	Rename(oldname, newname string) error

	// Mkdir creates a single directory. The parent must exist. If the
	// directory already exists an error satisfying oserror.IsExist is
	// returned; callers that want create-if-absent semantics use
	// MkdirIfAbsent.
	Mkdir(dir string, perm os.FileMode) error

	// MkdirAll creates a directory and all necessary parents. The permission
	// bits perm have the same semantics as in os.MkdirAll. If the directory
	// already exists, MkdirAll does nothing and returns nil.
	MkdirAll(dir string, perm os.FileMode) error

	// List returns a listing of the given directory. The names returned are
	// relative to dir.
	List(dir string) ([]string, error)

	// Stat returns an os.FileInfo describing the named file.
	Stat(name string) (FileInfo, error)

	// PathBase returns the last element of path. Trailing path separators are
	// removed before extracting the last element. If the path is empty,
	// PathBase returns ".".  If the path consists entirely of separators,
	// PathBase returns a single separator.
	PathBase(path string) string

	// PathJoin joins any number of path elements into a single path, adding a
	// separator if necessary.
	PathJoin(elem ...string) string

	// PathDir returns all but the last element of path, typically the path's
	// directory.
	PathDir(path string) string
}

// Default is a FS implementation backed by the underlying operating system's
// file system.
var Default FS = defaultFS{}

type defaultFS struct{}

func (defaultFS) Create(name string) (File, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC|syscall.O_CLOEXEC, 0666)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return f, nil
}

func (defaultFS) Open(name string) (File, error) {
	f, err := os.OpenFile(name, os.O_RDONLY|syscall.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return f, nil
}

func (defaultFS) OpenAppend(name string) (File, error) {
	f, err := os.OpenFile(name,
		os.O_WRONLY|os.O_CREATE|os.O_TRUNC|os.O_APPEND|syscall.O_CLOEXEC, 0666)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return f, nil
}

func (defaultFS) Remove(name string) error {
	return errors.WithStack(os.Remove(name))
}

func (defaultFS) Rename(oldname, newname string) error {
	return errors.WithStack(os.Rename(oldname, newname))
}

func (defaultFS) Mkdir(dir string, perm os.FileMode) error {
	return errors.WithStack(os.Mkdir(dir, perm))
}

func (defaultFS) MkdirAll(dir string, perm os.FileMode) error {
	return errors.WithStack(os.MkdirAll(dir, perm))
}

func (defaultFS) List(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dirnames, err := f.Readdirnames(-1)
	return dirnames, errors.WithStack(err)
}

func (defaultFS) Stat(name string) (FileInfo, error) {
	finfo, err := os.Stat(name)
	return finfo, errors.WithStack(err)
}

func (defaultFS) PathBase(path string) string {
	return filepath.Base(path)
}

func (defaultFS) PathJoin(elem ...string) string {
	return filepath.Join(elem...)
}

func (defaultFS) PathDir(path string) string {
	return filepath.Dir(path)
}

// MkdirIfAbsent creates dir with a single Mkdir call and treats an existing
// directory as success. Concurrent callers racing to create the same
// directory all observe success.
func MkdirIfAbsent(fs FS, dir string, perm os.FileMode) error {
	err := fs.Mkdir(dir, perm)
	if err == nil || !oserror.IsExist(err) {
		return err
	}
	// Something exists at dir. Only a directory counts as success.
	if finfo, statErr := fs.Stat(dir); statErr == nil && !finfo.IsDir() {
		return errors.Wrapf(err, "%s exists and is not a directory", dir)
	}
	return nil
}

// Exists reports whether a file or directory exists at name. Errors other
// than "does not exist" are returned.
func Exists(fs FS, name string) (bool, error) {
	_, err := fs.Stat(name)
	switch {
	case err == nil:
		return true, nil
	case oserror.IsNotExist(err):
		return false, nil
	default:
		return false, err
	}
}
