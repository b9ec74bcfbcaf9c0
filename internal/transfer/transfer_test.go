// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package transfer

import (
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/shuffle/internal/base"
	"github.com/cockroachdb/shuffle/vfs"
	"github.com/stretchr/testify/require"
)

func createFile(t *testing.T, fs vfs.FS, name, contents string) vfs.File {
	t.Helper()
	f, err := fs.Create(name)
	require.NoError(t, err)
	_, err = f.Write([]byte(contents))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	f, err = fs.Open(name)
	require.NoError(t, err)
	return f
}

func readAll(t *testing.T, fs vfs.FS, name string) string {
	t.Helper()
	f, err := fs.Open(name)
	require.NoError(t, err)
	defer f.Close()
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(b)
}

type transferStep struct {
	src    int
	off, n int64
}

func runTransfers(t *testing.T, fs vfs.FS, dir string, opts Options) Stats {
	srcs := []vfs.File{
		createFile(t, fs, fs.PathJoin(dir, "a"), "0123456789"),
		createFile(t, fs, fs.PathJoin(dir, "b"), strings.Repeat("xyz", 100)),
	}
	defer func() {
		for _, f := range srcs {
			require.NoError(t, f.Close())
		}
	}()

	out := fs.PathJoin(dir, "out")
	a, err := OpenAppender(fs, out, opts)
	require.NoError(t, err)
	require.Equal(t, out, a.Path())
	steps := []transferStep{
		{0, 0, 3},
		{1, 0, 6},
		{0, 3, 0},
		{0, 3, 7},
		{1, 6, 294},
	}
	var expected strings.Builder
	for _, s := range steps {
		require.NoError(t, a.TransferFrom(srcs[s.src], s.off, s.n))
		b := make([]byte, s.n)
		_, err := srcs[s.src].ReadAt(b, s.off)
		require.NoError(t, err)
		expected.Write(b)
	}
	require.Equal(t, int64(expected.Len()), a.Written())
	require.NoError(t, a.Verify())
	stats := a.Stats()
	require.Equal(t, a.Written(), stats.ZeroCopyBytes+stats.BufferedBytes)
	require.NoError(t, a.Close())
	require.Equal(t, expected.String(), readAll(t, fs, out))
	return stats
}

func TestAppenderMem(t *testing.T) {
	// A small buffer forces transfers that span several reads.
	stats := runTransfers(t, vfs.NewMem(), "", Options{BufferSize: 4})
	require.Equal(t, int64(0), stats.ZeroCopyBytes)
}

func TestAppenderDefault(t *testing.T) {
	for _, disable := range []bool{false, true} {
		stats := runTransfers(t, vfs.Default, t.TempDir(), Options{DisableZeroCopy: disable})
		// The kernel refuses sendfile into an append-mode file, so every
		// byte goes through the buffer whether or not zero-copy is enabled.
		require.Equal(t, int64(0), stats.ZeroCopyBytes)
		require.Equal(t, int64(310), stats.BufferedBytes)
	}
}

func TestAppenderZeroCopyNonAppend(t *testing.T) {
	dir := t.TempDir()
	src := createFile(t, vfs.Default, filepath.Join(dir, "src"), "hello, world")
	defer src.Close()

	// Zero-copy transfers are possible when the output is not in append mode.
	out, err := vfs.Default.Create(filepath.Join(dir, "out"))
	require.NoError(t, err)
	a := NewAppender(filepath.Join(dir, "out"), out, Options{})
	require.NoError(t, a.TransferFrom(src, 7, 5))
	require.NoError(t, a.TransferFrom(src, 0, 5))
	require.NoError(t, a.Verify())
	require.NoError(t, a.Close())
	require.Equal(t, "worldhello", readAll(t, vfs.Default, filepath.Join(dir, "out")))
}

func TestAppenderShortTransfer(t *testing.T) {
	for _, fs := range []vfs.FS{vfs.NewMem(), vfs.Default} {
		dir := ""
		if fs == vfs.Default {
			dir = t.TempDir()
		}
		src := createFile(t, fs, fs.PathJoin(dir, "src"), "abc")
		a, err := OpenAppender(fs, fs.PathJoin(dir, "out"), Options{})
		require.NoError(t, err)
		err = a.TransferFrom(src, 1, 5)
		require.True(t, errors.Is(err, base.ErrShortTransfer), "%v", err)
		require.Contains(t, err.Error(), "source ended after 2 bytes")
		require.Equal(t, int64(2), a.Written())
		require.NoError(t, a.Close())
		require.NoError(t, src.Close())
	}
}

type skewedFile struct {
	vfs.File
	skew int64
}

func (f skewedFile) Seek(offset int64, whence int) (int64, error) {
	pos, err := f.File.Seek(offset, whence)
	return pos + f.skew, err
}

func TestAppenderVerify(t *testing.T) {
	mem := vfs.NewMem()
	src := createFile(t, mem, "src", "abcdef")
	defer src.Close()
	out, err := mem.OpenAppend("out")
	require.NoError(t, err)

	a := NewAppender("out", skewedFile{File: out, skew: -2}, Options{})
	require.NoError(t, a.TransferFrom(src, 0, 6))
	err = a.Verify()
	require.True(t, errors.Is(err, base.ErrTransferPosition))
	require.Contains(t, err.Error(), "current position 4 of out does not equal expected position 6")
	require.Contains(t, err.Error(), "--disable-zero-copy")
	require.NoError(t, a.Close())
}
