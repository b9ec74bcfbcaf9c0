// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package shuffle

import (
	"time"

	"github.com/cockroachdb/redact"
)

// Strategy is the way a merge combines its spills.
type Strategy int8

const (
	// StrategyEmpty creates an empty output; used when there are no spills.
	StrategyEmpty Strategy = iota
	// StrategyRename renames the only spill to the output path.
	StrategyRename
	// StrategyConcat concatenates two or more spills partition by partition.
	StrategyConcat
)

func strategyFor(numSpills int) Strategy {
	switch numSpills {
	case 0:
		return StrategyEmpty
	case 1:
		return StrategyRename
	default:
		return StrategyConcat
	}
}

func (s Strategy) String() string {
	switch s {
	case StrategyEmpty:
		return "empty"
	case StrategyRename:
		return "rename"
	case StrategyConcat:
		return "concat"
	default:
		return "unknown"
	}
}

// SafeValue implements redact.SafeValue.
func (s Strategy) SafeValue() {}

// MergeInfo contains the info for a merge event.
type MergeInfo struct {
	// Output is the path of the merged file.
	Output string
	// Strategy is the way the spills are combined.
	Strategy Strategy
	// NumSpills and NumPartitions describe the input.
	NumSpills     int
	NumPartitions int
	// Done is set on the MergeEnd event.
	Done bool
	// Bytes is the size of the merged output. Set on success.
	Bytes int64
	// ZeroCopyBytes and BufferedBytes break down the bytes a concat merge
	// transferred by method.
	ZeroCopyBytes int64
	BufferedBytes int64
	// Duration is the time the merge took. Set when Done.
	Duration time.Duration
	Err      error
}

func (i MergeInfo) String() string {
	return redact.StringWithoutMarkers(i)
}

// SafeFormat implements redact.SafeFormatter.
func (i MergeInfo) SafeFormat(w redact.SafePrinter, _ rune) {
	if i.Err != nil {
		w.Printf("[merge] %s: merging %d spills into %s failed: %s",
			i.Strategy, redact.Safe(i.NumSpills), i.Output, i.Err)
		return
	}
	if !i.Done {
		w.Printf("[merge] %s: merging %d spills of %d partitions into %s",
			i.Strategy, redact.Safe(i.NumSpills), redact.Safe(i.NumPartitions), i.Output)
		return
	}
	w.Printf("[merge] %s: merged %d spills into %s (%d bytes",
		i.Strategy, redact.Safe(i.NumSpills), i.Output, redact.Safe(i.Bytes))
	if i.Strategy == StrategyConcat {
		w.Printf(", %d zero-copy, %d buffered", redact.Safe(i.ZeroCopyBytes), redact.Safe(i.BufferedBytes))
	}
	w.Printf(") in %.3fs", redact.Safe(i.Duration.Seconds()))
}

// EventListener contains a set of functions that will be invoked when various
// merge events occur.
//
// Note: the MergeBegin and MergeEnd callbacks are invoked synchronously by
// MergeSpills and may be invoked concurrently by independent merges.
type EventListener struct {
	// MergeBegin is invoked after the inputs have been validated and before
	// any file is touched.
	MergeBegin func(MergeInfo)

	// MergeEnd is invoked after a merge has completed, successfully or not.
	// The partial output of a failed merge has been cleaned up by then.
	MergeEnd func(MergeInfo)

	// OutputCleanupError is invoked when the partial output of a failed merge
	// could not be cleaned up.
	OutputCleanupError func(path string, err error)
}

// EnsureDefaults ensures that all callbacks are set. Unset callbacks are
// replaced with no-ops, except OutputCleanupError which logs.
func (l *EventListener) EnsureDefaults(logger Logger) {
	if l.MergeBegin == nil {
		l.MergeBegin = func(MergeInfo) {}
	}
	if l.MergeEnd == nil {
		l.MergeEnd = func(MergeInfo) {}
	}
	if l.OutputCleanupError == nil {
		if logger != nil {
			l.OutputCleanupError = func(path string, err error) {
				logger.Errorf("error cleaning up merge output %s: %s", path, err)
			}
		} else {
			l.OutputCleanupError = func(string, error) {}
		}
	}
}

// MakeLoggingEventListener creates an EventListener that logs all events to
// the specified logger.
func MakeLoggingEventListener(logger Logger) EventListener {
	if logger == nil {
		logger = DefaultLogger
	}
	return EventListener{
		MergeBegin: func(info MergeInfo) {
			logger.Infof("%s", info)
		},
		MergeEnd: func(info MergeInfo) {
			logger.Infof("%s", info)
		},
		OutputCleanupError: func(path string, err error) {
			logger.Errorf("error cleaning up merge output %s: %s", path, err)
		},
	}
}

// TeeEventListener wraps two EventListeners, forwarding all events to both.
func TeeEventListener(a, b EventListener) EventListener {
	a.EnsureDefaults(nil)
	b.EnsureDefaults(nil)
	return EventListener{
		MergeBegin: func(info MergeInfo) {
			a.MergeBegin(info)
			b.MergeBegin(info)
		},
		MergeEnd: func(info MergeInfo) {
			a.MergeEnd(info)
			b.MergeEnd(info)
		},
		OutputCleanupError: func(path string, err error) {
			a.OutputCleanupError(path, err)
			b.OutputCleanupError(path, err)
		},
	}
}
