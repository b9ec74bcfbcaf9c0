// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package vfs

import "os"

// LogFn is a function that is used to capture a log when WithLogging is used.
type LogFn func(fmt string, args ...interface{})

// WithLogging wraps an FS and logs filesystem modification operations to the
// given logFn.
func WithLogging(fs FS, logFn LogFn) FS {
	return &loggingFS{
		FS:    fs,
		logFn: logFn,
	}
}

type loggingFS struct {
	FS
	logFn LogFn
}

var _ FS = (*loggingFS)(nil)

func (fs *loggingFS) Create(name string) (File, error) {
	fs.logFn("create: %s", name)
	f, err := fs.FS.Create(name)
	if err != nil {
		return nil, err
	}
	return newLoggingFile(f, name, fs.logFn), nil
}

func (fs *loggingFS) Open(name string) (File, error) {
	fs.logFn("open: %s", name)
	f, err := fs.FS.Open(name)
	if err != nil {
		return nil, err
	}
	return newLoggingFile(f, name, fs.logFn), nil
}

func (fs *loggingFS) OpenAppend(name string) (File, error) {
	fs.logFn("open-append: %s", name)
	f, err := fs.FS.OpenAppend(name)
	if err != nil {
		return nil, err
	}
	return newLoggingFile(f, name, fs.logFn), nil
}

func (fs *loggingFS) Remove(name string) error {
	fs.logFn("remove: %s", name)
	err := fs.FS.Remove(name)
	return err
}

func (fs *loggingFS) Rename(oldname, newname string) error {
	fs.logFn("rename: %s -> %s", oldname, newname)
	return fs.FS.Rename(oldname, newname)
}

func (fs *loggingFS) Mkdir(dir string, perm os.FileMode) error {
	fs.logFn("mkdir: %s", dir)
	return fs.FS.Mkdir(dir, perm)
}

func (fs *loggingFS) MkdirAll(dir string, perm os.FileMode) error {
	fs.logFn("mkdir-all: %s %#o", dir, perm)
	return fs.FS.MkdirAll(dir, perm)
}

type loggingFile struct {
	File
	name  string
	logFn LogFn
}

var _ File = (*loggingFile)(nil)

func newLoggingFile(f File, name string, logFn LogFn) *loggingFile {
	return &loggingFile{
		File:  f,
		name:  name,
		logFn: logFn,
	}
}

func (f *loggingFile) Close() error {
	f.logFn("close: %s", f.name)
	return f.File.Close()
}

func (f *loggingFile) Sync() error {
	f.logFn("sync: %s", f.name)
	return f.File.Sync()
}
