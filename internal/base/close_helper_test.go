// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

type testCloser struct {
	name   string
	err    error
	closes int
	order  *[]string
}

func (c *testCloser) Close() error {
	c.closes++
	*c.order = append(*c.order, c.name)
	return c.err
}

func TestCloseHelper(t *testing.T) {
	var order []string
	c := &testCloser{name: "a", order: &order}
	h := CloseHelper(c)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	require.Equal(t, 1, c.closes)
}

func TestCloseGroup(t *testing.T) {
	errA := errors.New("close a failed")
	errC := errors.New("close c failed")
	opErr := errors.New("operation failed")

	testCases := []struct {
		name      string
		opErr     error
		errs      map[string]error
		wantErr   string
		wantCause error // the close error the returned error must wrap
		wantLog   string
	}{
		{
			name: "success",
		},
		{
			name:    "close error escalates",
			errs:      map[string]error{"a": errA},
			wantErr:   "closing a: close a failed",
			wantCause: errA,
		},
		{
			name:    "first close error wins",
			errs:      map[string]error{"a": errA, "c": errC},
			wantErr:   "closing c: close c failed",
			wantCause: errC,
			wantLog:   "error closing a: close a failed\n",
		},
		{
			name:    "operation error suppresses close errors",
			opErr:   opErr,
			errs:    map[string]error{"a": errA, "c": errC},
			wantErr: "operation failed",
			wantLog: "error closing c: close c failed\nerror closing a: close a failed\n",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var order []string
			var g CloseGroup
			var closers []*testCloser
			for _, name := range []string{"a", "b", "c"} {
				c := &testCloser{name: name, err: tc.errs[name], order: &order}
				closers = append(closers, c)
				g.Add(name, c)
			}
			require.Equal(t, 3, g.Len())

			logger := &InMemLogger{}
			err := g.Release(tc.opErr, logger)
			if tc.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.EqualError(t, err, tc.wantErr)
			}
			if tc.opErr != nil {
				require.True(t, errors.Is(err, tc.opErr))
			}
			if tc.wantCause != nil {
				require.True(t, errors.Is(err, tc.wantCause))
				// Only the first close error is returned; the rest are logged.
				for _, cerr := range tc.errs {
					if cerr != tc.wantCause {
						require.False(t, errors.Is(err, cerr))
					}
				}
			}
			require.Equal(t, tc.wantLog, logger.String())
			require.Equal(t, []string{"c", "b", "a"}, order)

			// A released group is empty; releasing again closes nothing.
			require.Equal(t, 0, g.Len())
			require.NoError(t, g.Release(nil, logger))
			for _, c := range closers {
				require.Equal(t, 1, c.closes, fmt.Sprint(c.name))
			}
		})
	}
}
