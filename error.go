// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package shuffle

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/shuffle/internal/base"
)

// ErrTransferPosition marks errors raised when the write position of a merged
// output file disagrees with the number of bytes transferred into it.
var ErrTransferPosition = base.ErrTransferPosition

// ErrShortTransfer marks errors raised when a spill file ends before all the
// bytes its partition lengths describe could be read.
var ErrShortTransfer = base.ErrShortTransfer

// ErrCorruption marks errors raised when a spill file does not match its
// partition lengths.
var ErrCorruption = base.ErrCorruption

// IsCorruptionError returns true if the given error indicates corruption.
func IsCorruptionError(err error) bool {
	return base.IsCorruptionError(err)
}

// ErrorKind classifies the ways a merge can fail.
type ErrorKind int8

const (
	// KindUnknown is returned by KindOf for errors that did not come from a
	// merge.
	KindUnknown ErrorKind = iota
	// KindCreateOutput indicates the output file could not be created.
	KindCreateOutput
	// KindRenameFailure indicates a single spill could not be renamed to the
	// output path.
	KindRenameFailure
	// KindTransferIO indicates an I/O error while opening, reading or writing
	// files during concatenation.
	KindTransferIO
	// KindKernelTransferInvariant indicates the output's write position did
	// not match the number of bytes transferred. It is not retryable.
	KindKernelTransferInvariant
	// KindSpillLengthMismatch indicates a spill file's size did not match the
	// sum of its partition lengths.
	KindSpillLengthMismatch
	// KindResourceRelease indicates a file handle could not be closed after
	// an otherwise successful merge.
	KindResourceRelease
)

var errorKindNames = [...]string{
	KindUnknown:                 "unknown",
	KindCreateOutput:            "create-output",
	KindRenameFailure:           "rename-failure",
	KindTransferIO:              "transfer-io",
	KindKernelTransferInvariant: "kernel-transfer-invariant",
	KindSpillLengthMismatch:     "spill-length-mismatch",
	KindResourceRelease:         "resource-release",
}

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// SafeValue implements redact.SafeValue.
func (k ErrorKind) SafeValue() {}

// MergeError is the error returned by Merger.MergeSpills. The underlying
// cause remains reachable through errors.Is and errors.As, and its message
// is the message of the MergeError.
type MergeError struct {
	Kind ErrorKind
	Err  error
}

var _ errors.SafeFormatter = (*MergeError)(nil)

func (e *MergeError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *MergeError) Unwrap() error {
	return e.Err
}

// Format implements fmt.Formatter.
func (e *MergeError) Format(s fmt.State, verb rune) {
	errors.FormatError(e, s, verb)
}

// SafeFormatError implements errors.SafeFormatter.
func (e *MergeError) SafeFormatError(p errors.Printer) (next error) {
	if p.Detail() {
		p.Printf("merge failed: %s", e.Kind)
	}
	return e.Err
}

// KindOf returns the kind of the MergeError in err's chain, or KindUnknown if
// there is none.
func KindOf(err error) ErrorKind {
	var me *MergeError
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindUnknown
}

func newMergeError(kind ErrorKind, err error) error {
	return &MergeError{Kind: kind, Err: err}
}

var _ redact.SafeValue = KindUnknown
