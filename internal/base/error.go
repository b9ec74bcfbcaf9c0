// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/errors"

// ErrTransferPosition marks errors raised when the write position of a merged
// output file disagrees with the number of bytes transferred into it.
var ErrTransferPosition = errors.New("shuffle: output position does not match bytes transferred")

// ErrShortTransfer marks errors raised when a source file ends before the
// requested number of bytes could be transferred from it.
var ErrShortTransfer = errors.New("shuffle: short transfer")

// ErrCorruption is a marker to indicate that the partition lengths describing
// a spill file do not match the file's contents.
var ErrCorruption = errors.New("shuffle: corruption")

// CorruptionErrorf formats according to a format specifier and returns the
// string as an error value that is marked as a corruption error.
func CorruptionErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrCorruption)
}

// IsCorruptionError returns true if the given error indicates corruption.
func IsCorruptionError(err error) bool {
	return errors.Is(err, ErrCorruption)
}
