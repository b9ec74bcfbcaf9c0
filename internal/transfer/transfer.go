// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package transfer implements the primitive used to concatenate byte ranges
// of spill files into a merged output file.
//
// The output is always opened in append mode. Some kernels (notably Linux
// 2.6.32) fail to advance the file position after repeated sendfile calls
// between regular files; in append mode every write lands at the end of the
// file regardless, and Verify detects the condition by comparing the
// reported position with the number of bytes transferred.
package transfer

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/shuffle/internal/base"
	"github.com/cockroachdb/shuffle/internal/invariants"
	"github.com/cockroachdb/shuffle/vfs"
)

// DefaultBufferSize is the size of the buffer used when a zero-copy transfer
// is unavailable.
const DefaultBufferSize = 64 << 10

// Options configures an Appender.
type Options struct {
	// DisableZeroCopy forces every transfer through a bounded user-space
	// buffer instead of sendfile.
	DisableZeroCopy bool
	// BufferSize is the size of the copy buffer. Zero means
	// DefaultBufferSize.
	BufferSize int
}

// Stats counts the bytes an Appender moved, by method.
type Stats struct {
	ZeroCopyBytes int64
	BufferedBytes int64
}

// Appender writes byte ranges of source files to the end of an output file
// and keeps track of how many bytes it has written.
type Appender struct {
	path     string
	f        vfs.File
	written  int64
	zeroCopy bool
	bufSize  int
	buf      []byte
	stats    Stats

	closeChecker invariants.CloseChecker
}

// OpenAppender opens path in append mode, truncating any existing file, and
// returns an Appender writing to it.
func OpenAppender(fs vfs.FS, path string, opts Options) (*Appender, error) {
	f, err := fs.OpenAppend(path)
	if err != nil {
		return nil, err
	}
	return NewAppender(path, f, opts), nil
}

// NewAppender returns an Appender writing to f, which must have been opened
// in append mode and be empty.
func NewAppender(path string, f vfs.File, opts Options) *Appender {
	bufSize := opts.BufferSize
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Appender{
		path:     path,
		f:        f,
		zeroCopy: !opts.DisableZeroCopy,
		bufSize:  bufSize,
	}
}

// Path returns the path of the output file.
func (a *Appender) Path() string {
	return a.path
}

// Written returns the number of bytes transferred so far.
func (a *Appender) Written() int64 {
	return a.written
}

// Stats returns the bytes transferred so far, by method.
func (a *Appender) Stats() Stats {
	return a.stats
}

// TransferFrom appends exactly n bytes of src, starting at offset off, to the
// output. The file position of src is not used or modified. If src ends
// before n bytes could be read, the returned error is marked with
// base.ErrShortTransfer.
func (a *Appender) TransferFrom(src vfs.File, off, n int64) error {
	a.closeChecker.AssertNotClosed()
	if n <= 0 {
		return nil
	}
	if a.zeroCopy {
		written, ok, err := sendfile(a.f, src, off, n)
		if ok {
			a.written += written
			a.stats.ZeroCopyBytes += written
			if err != nil {
				return errors.Wrapf(err, "transferring %d bytes at offset %d into %s", n, off, a.path)
			}
			if written < n {
				return a.shortTransfer(off, n, written)
			}
			return nil
		}
		// Zero-copy is not supported for this pair of files (for example
		// the kernel refuses sendfile into an append-mode file). It will
		// not become supported later in the life of this output.
		a.zeroCopy = false
	}
	written, err := a.copyBuffered(src, off, n)
	a.written += written
	a.stats.BufferedBytes += written
	if err != nil {
		return errors.Wrapf(err, "copying %d bytes at offset %d into %s", n, off, a.path)
	}
	if written < n {
		return a.shortTransfer(off, n, written)
	}
	return nil
}

func (a *Appender) shortTransfer(off, n, written int64) error {
	return errors.Mark(
		errors.Newf("transferring %d bytes at offset %d into %s: source ended after %d bytes",
			n, off, a.path, written),
		base.ErrShortTransfer)
}

func (a *Appender) copyBuffered(src vfs.File, off, n int64) (int64, error) {
	if a.buf == nil {
		a.buf = make([]byte, a.bufSize)
	}
	var written int64
	for written < n {
		chunk := a.buf[:min(int64(len(a.buf)), n-written)]
		r, readErr := src.ReadAt(chunk, off+written)
		if r > 0 {
			w, err := a.f.Write(chunk[:r])
			written += int64(w)
			if err != nil {
				return written, err
			}
			if w != r {
				return written, io.ErrShortWrite
			}
		}
		if readErr == io.EOF {
			break
		} else if readErr != nil {
			return written, readErr
		}
	}
	return written, nil
}

// Verify checks that the output's reported write position equals the number
// of bytes transferred. A mismatch is marked with base.ErrTransferPosition
// and must not be retried.
func (a *Appender) Verify() error {
	pos, err := a.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return errors.Wrapf(err, "reading position of %s", a.path)
	}
	if pos != a.written {
		return errors.Mark(errors.Newf(
			"current position %d of %s does not equal expected position %d after transfer. "+
				"This is the kernel defect where sendfile between regular files does not advance "+
				"the output position (seen on Linux 2.6.32); check the kernel version, or set "+
				"DisableZeroCopy (--disable-zero-copy) to stop using zero-copy transfers",
			pos, a.path, a.written), base.ErrTransferPosition)
	}
	return nil
}

// Close closes the output file.
func (a *Appender) Close() error {
	a.closeChecker.Close()
	return a.f.Close()
}
