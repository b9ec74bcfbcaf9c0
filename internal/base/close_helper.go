// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"io"

	"github.com/cockroachdb/errors"
)

// CloseHelper wraps an io.Closer in a wrapper that ignores extra calls to
// Close. It is useful to ensure cleanup in error paths (using defer) without
// double-closing.
func CloseHelper(closer io.Closer) io.Closer {
	return &closeHelper{
		Closer: closer,
	}
}

type closeHelper struct {
	Closer io.Closer
}

// Close the underlying Closer, unless it was already closed.
func (h *closeHelper) Close() error {
	closer := h.Closer
	if closer == nil {
		return nil
	}
	h.Closer = nil
	return closer.Close()
}

// CloseGroup owns a set of io.Closers acquired during one operation and
// releases all of them exactly once, in reverse order of acquisition.
//
// Typical usage:
//
//	var g base.CloseGroup
//	defer func() { err = g.Release(err, logger) }()
//	f, err := fs.Open(name)
//	if err != nil {
//		return err
//	}
//	g.Add(name, f)
type CloseGroup struct {
	names   []string
	closers []io.Closer
}

// Add registers c with the group. name is used in log messages and error
// annotations.
func (g *CloseGroup) Add(name string, c io.Closer) {
	g.names = append(g.names, name)
	g.closers = append(g.closers, CloseHelper(c))
}

// Len returns the number of closers registered with the group.
func (g *CloseGroup) Len() int {
	return len(g.closers)
}

// Release closes every registered closer. If opErr is non-nil the operation
// has already failed: close errors are logged and suppressed, and opErr is
// returned unchanged. Otherwise the first close error is returned and any
// subsequent ones are logged.
func (g *CloseGroup) Release(opErr error, logger Logger) error {
	var firstErr error
	for i := len(g.closers) - 1; i >= 0; i-- {
		err := g.closers[i].Close()
		if err == nil {
			continue
		}
		if opErr == nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "closing %s", g.names[i])
			continue
		}
		logger.Errorf("error closing %s: %v", g.names[i], err)
	}
	g.names, g.closers = nil, nil
	if opErr != nil {
		return opErr
	}
	return firstErr
}
