// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package shuffle

import (
	"github.com/cockroachdb/shuffle/internal/base"
	"github.com/cockroachdb/shuffle/internal/transfer"
	"github.com/cockroachdb/shuffle/vfs"
)

// Logger defines an interface for writing log messages.
type Logger = base.Logger

// DefaultLogger logs to the Go stdlib logs.
var DefaultLogger = base.DefaultLogger

// Cleaner exports the base.Cleaner type.
type Cleaner = base.Cleaner

// DeleteCleaner exports the base.DeleteCleaner type.
type DeleteCleaner = base.DeleteCleaner

// ArchiveCleaner exports the base.ArchiveCleaner type.
type ArchiveCleaner = base.ArchiveCleaner

// DefaultCopyBufferSize is the default value of Options.CopyBufferSize.
const DefaultCopyBufferSize = transfer.DefaultBufferSize

// Options holds the optional parameters for a Merger.
type Options struct {
	// Cleaner disposes of a partially written output file after a failed
	// merge. The default is DeleteCleaner.
	Cleaner Cleaner

	// CopyBufferSize is the size of the buffer used to copy partition bytes
	// when zero-copy transfers are disabled or unsupported. The default is
	// DefaultCopyBufferSize.
	CopyBufferSize int

	// DisableZeroCopy disables kernel zero-copy (sendfile) transfers when
	// concatenating spills; partition bytes are copied through a buffer
	// instead. The output is still opened in append mode and its position is
	// still verified after the transfer.
	//
	// Linux rejects sendfile into a file opened in append mode, so merges
	// into vfs.Default outputs already use the buffered path and this option
	// only matters for FS implementations whose append-mode files accept
	// zero-copy transfers.
	DisableZeroCopy bool

	// EventListener provides hooks to listen to merges. The default is a
	// listener that does nothing.
	EventListener *EventListener

	// FS provides the interface for persistent file storage. The default is
	// vfs.Default.
	FS vfs.FS

	// Logger used to write log messages. The default is DefaultLogger.
	Logger Logger

	// Metrics, if set, is updated after every merge.
	Metrics *MergeMetrics
}

// EnsureDefaults ensures that the default values for all options are set if a
// valid value was not already specified.
func (o *Options) EnsureDefaults() {
	if o.Cleaner == nil {
		o.Cleaner = DeleteCleaner{}
	}
	if o.CopyBufferSize <= 0 {
		o.CopyBufferSize = DefaultCopyBufferSize
	}
	if o.FS == nil {
		o.FS = vfs.Default
	}
	if o.Logger == nil {
		o.Logger = DefaultLogger
	}
	if o.EventListener == nil {
		o.EventListener = &EventListener{}
	}
	o.EventListener.EnsureDefaults(o.Logger)
}

func (o *Options) transferOptions() transfer.Options {
	return transfer.Options{
		DisableZeroCopy: o.DisableZeroCopy,
		BufferSize:      o.CopyBufferSize,
	}
}
