// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package shuffle

import (
	"bytes"
	"fmt"
	"io"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/crlib/testutils/leaktest"
	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/shuffle/internal/base"
	"github.com/cockroachdb/shuffle/internal/invariants"
	"github.com/cockroachdb/shuffle/vfs"
	"github.com/cockroachdb/shuffle/vfs/errorfs"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func writeFile(t testing.TB, fs vfs.FS, path string, data []byte) {
	t.Helper()
	f, err := fs.Create(path)
	require.NoError(t, err)
	_, err = f.Write(slices.Clone(data))
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func readFile(t testing.TB, fs vfs.FS, path string) []byte {
	t.Helper()
	f, err := fs.Open(path)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return data
}

// writeSpill writes a spill holding the given partitions and returns its
// SpillInfo.
func writeSpill(t testing.TB, fs vfs.FS, path string, partitions ...string) SpillInfo {
	t.Helper()
	lengths := make([]int64, len(partitions))
	for i, p := range partitions {
		lengths[i] = int64(len(p))
	}
	writeFile(t, fs, path, []byte(strings.Join(partitions, "")))
	return SpillInfo{Path: path, PartitionLengths: lengths}
}

func listFiles(t testing.TB, fs vfs.FS, dir string) []string {
	t.Helper()
	names, err := fs.List(dir)
	require.NoError(t, err)
	slices.Sort(names)
	return names
}

// recordingListener returns an EventListener that writes begin and end
// events to buf without timing information.
func recordingListener(buf *bytes.Buffer) *EventListener {
	var mu sync.Mutex
	return &EventListener{
		MergeBegin: func(info MergeInfo) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(buf, "begin: %s spills=%d partitions=%d out=%s\n",
				info.Strategy, info.NumSpills, info.NumPartitions, info.Output)
		},
		MergeEnd: func(info MergeInfo) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(buf, "end: %s ", info.Strategy)
			switch {
			case info.Err != nil:
				fmt.Fprintf(buf, "error=%s\n", KindOf(info.Err))
			case info.Strategy == StrategyConcat:
				fmt.Fprintf(buf, "bytes=%d zero-copy=%d buffered=%d\n",
					info.Bytes, info.ZeroCopyBytes, info.BufferedBytes)
			default:
				fmt.Fprintf(buf, "bytes=%d\n", info.Bytes)
			}
		},
	}
}

func TestMergeSpillsDataDriven(t *testing.T) {
	defer leaktest.AfterTest(t)()

	var fs *vfs.MemFS
	var spills map[string]SpillInfo
	reset := func() {
		fs = vfs.NewMem()
		spills = make(map[string]SpillInfo)
	}
	reset()

	datadriven.RunTest(t, "testdata/merge_spills", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "reset":
			reset()
			return ""

		case "write-spill":
			var path string
			td.ScanArgs(t, "path", &path)
			var partitions []string
			for _, line := range strings.Fields(td.Input) {
				if line == "-" {
					line = ""
				}
				partitions = append(partitions, line)
			}
			spill := writeSpill(t, fs, path, partitions...)
			if td.HasArg("truncate") {
				var n int
				td.ScanArgs(t, "truncate", &n)
				data := readFile(t, fs, path)
				writeFile(t, fs, path, data[:n])
			}
			spills[path] = spill
			return spill.String()

		case "merge":
			var out string
			var numPartitions int
			td.ScanArgs(t, "out", &out)
			td.ScanArgs(t, "partitions", &numPartitions)
			var in []SpillInfo
			for _, name := range strings.Fields(td.Input) {
				spill, ok := spills[name]
				if !ok {
					td.Fatalf(t, "unknown spill %q", name)
				}
				in = append(in, spill)
			}

			var buf bytes.Buffer
			m := NewMerger(&Options{
				FS:            fs,
				Logger:        base.NoopLogger{},
				EventListener: recordingListener(&buf),
			})
			lengths, err := m.MergeSpills(in, out, numPartitions)
			if err != nil {
				fmt.Fprintf(&buf, "error(%s): %s\n", KindOf(err), err)
			} else {
				fmt.Fprintf(&buf, "lengths: %s\n", lengths)
				fmt.Fprintf(&buf, "offsets: %v\n", lengths.Offsets())
				fmt.Fprintf(&buf, "contents: %q\n", readFile(t, fs, out))
			}
			fmt.Fprintf(&buf, "files: %s\n", strings.Join(listFiles(t, fs, ""), " "))
			return buf.String()

		default:
			return fmt.Sprintf("unknown command: %s", td.Cmd)
		}
	})
}

func TestMergeSpillsPreconditions(t *testing.T) {
	m := NewMerger(&Options{FS: vfs.NewMem(), Logger: base.NoopLogger{}})
	spill := SpillInfo{Path: "spill", PartitionLengths: []int64{1, 2}}

	require.Panics(t, func() { _, _ = m.MergeSpills(nil, "out", 0) })
	require.Panics(t, func() { _, _ = m.MergeSpills(nil, "out", -1) })
	require.Panics(t, func() { _, _ = m.MergeSpills([]SpillInfo{spill}, "out", 3) })
	require.Panics(t, func() { _, _ = m.MergeSpills([]SpillInfo{spill, spill}, "out", 1) })
	require.Panics(t, func() {
		_, _ = m.MergeSpills([]SpillInfo{{Path: "spill", PartitionLengths: []int64{-1}}}, "out", 1)
	})
}

func TestMergeSpillsInjectedErrors(t *testing.T) {
	defer leaktest.AfterTest(t)()

	testCases := []struct {
		name      string
		numSpills int
		inject    string
		kind      ErrorKind
	}{
		{"create-empty", 0, `op("create", always)`, KindCreateOutput},
		{"rename", 1, `op("rename", always)`, KindRenameFailure},
		{"open-spill", 3, `op("open", pathMatch("spill-2", always))`, KindTransferIO},
		{"open-output", 3, `op("open-append", always)`, KindCreateOutput},
		{"first-write", 3, `op("write", onIndex(0, always))`, KindTransferIO},
		{"later-write", 3, `op("write", onIndex(4, always))`, KindTransferIO},
		{"read", 3, `op("read-at", pathMatch("spill-3", onIndex(1, always)))`, KindTransferIO},
		{"position", 2, `op("seek", always)`, KindTransferIO},
		{"stat-spill", 2, `op("file-stat", pathMatch("spill-1", always))`, KindTransferIO},
		{"close-output", 2, `op("close", pathMatch("out", always))`, KindResourceRelease},
		{"close-spill", 2, `op("close", pathMatch("spill-2", always))`, KindResourceRelease},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mem := vfs.NewMem()
			var spills []SpillInfo
			for i := 0; i < tc.numSpills; i++ {
				spills = append(spills,
					writeSpill(t, mem, fmt.Sprintf("spill-%d", i+1), "ab", "", "cde", "f"))
			}
			inj, err := errorfs.ParseInjectorFromDSL(tc.inject)
			require.NoError(t, err)

			var events bytes.Buffer
			m := NewMerger(&Options{
				FS:            errorfs.Wrap(mem, inj),
				Logger:        &base.InMemLogger{},
				EventListener: recordingListener(&events),
			})
			lengths, err := m.MergeSpills(spills, "out", 4)
			require.Error(t, err)
			require.Nil(t, lengths)
			require.Equal(t, tc.kind, KindOf(err))
			require.True(t, errors.Is(err, errorfs.ErrInjected), "%+v", err)
			require.Contains(t, err.Error(), errorfs.ErrInjected.Error())
			require.Contains(t, events.String(), fmt.Sprintf("error=%s", tc.kind))

			// No output is left behind and the spills are untouched.
			exists, err := vfs.Exists(mem, "out")
			require.NoError(t, err)
			require.False(t, exists)
			for _, s := range spills {
				require.Equal(t, "abcdef", string(readFile(t, mem, s.Path)))
			}
		})
	}
}

func TestMergeSpillsCloseErrorsAfterFailure(t *testing.T) {
	mem := vfs.NewMem()
	spills := []SpillInfo{
		writeSpill(t, mem, "spill-1", "a", "b"),
		writeSpill(t, mem, "spill-2", "c", "d"),
	}
	inj, err := errorfs.ParseInjectorFromDSL(`any(op("write", always), op("close", always))`)
	require.NoError(t, err)

	logger := &base.InMemLogger{}
	m := NewMerger(&Options{FS: errorfs.Wrap(mem, inj), Logger: logger})
	_, err = m.MergeSpills(spills, "out", 2)
	// The transfer error is returned; the close errors are only logged.
	require.Equal(t, KindTransferIO, KindOf(err))
	for _, name := range []string{"out", "spill-1", "spill-2"} {
		require.Contains(t, logger.String(), fmt.Sprintf("error closing %s: injected error", name))
	}
	exists, err := vfs.Exists(mem, "out")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestMergeSpillsEmptyCloseError(t *testing.T) {
	mem := vfs.NewMem()
	inj, err := errorfs.ParseInjectorFromDSL(`op("close", always)`)
	require.NoError(t, err)

	logger := &base.InMemLogger{}
	m := NewMerger(&Options{FS: errorfs.Wrap(mem, inj), Logger: logger})
	lengths, err := m.MergeSpills(nil, "out", 3)
	require.NoError(t, err)
	require.Equal(t, PartitionLengths{0, 0, 0}, lengths)
	require.Contains(t, logger.String(), "error closing empty merge output out: injected error")
	require.Empty(t, readFile(t, mem, "out"))
}

func TestMergeSpillsCleanupError(t *testing.T) {
	mem := vfs.NewMem()
	spills := []SpillInfo{
		writeSpill(t, mem, "spill-1", "a", "b"),
		writeSpill(t, mem, "spill-2", "c", "d"),
	}
	inj, err := errorfs.ParseInjectorFromDSL(`any(op("write", always), op("remove", always))`)
	require.NoError(t, err)

	logger := &base.InMemLogger{}
	m := NewMerger(&Options{FS: errorfs.Wrap(mem, inj), Logger: logger})
	_, err = m.MergeSpills(spills, "out", 2)
	require.Equal(t, KindTransferIO, KindOf(err))
	require.Contains(t, logger.String(), "error cleaning up merge output out: injected error")
}

func TestMergeSpillsArchiveCleaner(t *testing.T) {
	mem := vfs.NewMem()
	spills := []SpillInfo{
		writeSpill(t, mem, "spill-1", "ab", "cd"),
		writeSpill(t, mem, "spill-2", "ef", "gh"),
	}
	inj, err := errorfs.ParseInjectorFromDSL(`op("write", onIndex(2, always))`)
	require.NoError(t, err)

	m := NewMerger(&Options{
		FS:      errorfs.Wrap(mem, inj),
		Logger:  base.NoopLogger{},
		Cleaner: ArchiveCleaner{},
	})
	_, err = m.MergeSpills(spills, "out", 2)
	require.Equal(t, KindTransferIO, KindOf(err))
	require.Equal(t, []string{"archive", "spill-1", "spill-2"}, listFiles(t, mem, ""))
	require.Equal(t, "abef", string(readFile(t, mem, "archive/out")))
}

// positionFS returns append-mode files whose reported position never
// advances, as on kernels where sendfile does not update the file offset.
type positionFS struct {
	vfs.FS
}

func (fs positionFS) OpenAppend(name string) (vfs.File, error) {
	f, err := fs.FS.OpenAppend(name)
	if err != nil {
		return nil, err
	}
	return stuckPositionFile{f}, nil
}

type stuckPositionFile struct {
	vfs.File
}

func (stuckPositionFile) Seek(offset int64, whence int) (int64, error) {
	return 0, nil
}

func TestMergeSpillsPositionMismatch(t *testing.T) {
	defer leaktest.AfterTest(t)()

	mem := vfs.NewMem()
	spills := []SpillInfo{
		writeSpill(t, mem, "spill-1", "a", "b"),
		writeSpill(t, mem, "spill-2", "c", "d"),
	}
	m := NewMerger(&Options{FS: positionFS{mem}, Logger: base.NoopLogger{}})
	lengths, err := m.MergeSpills(spills, "out", 2)
	require.Nil(t, lengths)
	require.Equal(t, KindKernelTransferInvariant, KindOf(err))
	require.True(t, errors.Is(err, ErrTransferPosition))
	require.Contains(t, err.Error(), "current position 0 of out does not equal expected position 4")
	require.Contains(t, err.Error(), "DisableZeroCopy")

	exists, err := vfs.Exists(mem, "out")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestMergeSpillsLengthMismatch(t *testing.T) {
	mem := vfs.NewMem()
	spills := []SpillInfo{
		writeSpill(t, mem, "spill-1", "a", "b"),
		writeSpill(t, mem, "spill-2", "c", "d"),
	}
	// spill-2 holds a byte its partition lengths do not describe.
	writeFile(t, mem, "spill-2", []byte("cdX"))

	m := NewMerger(&Options{FS: mem, Logger: base.NoopLogger{}})
	if invariants.Enabled {
		require.Panics(t, func() { _, _ = m.MergeSpills(spills, "out", 2) })
		return
	}
	_, err := m.MergeSpills(spills, "out", 2)
	require.Equal(t, KindSpillLengthMismatch, KindOf(err))
	require.True(t, IsCorruptionError(err))
	require.Contains(t, err.Error(), "spill spill-2: size 3 does not match partition lengths summing to 2")
}

func TestMergeSpillsConcurrent(t *testing.T) {
	defer leaktest.AfterTest(t)()

	mem := vfs.NewMem()
	metrics := NewMergeMetrics("test")
	m := NewMerger(&Options{FS: mem, Logger: base.NoopLogger{}, Metrics: metrics})

	const numTasks = 8
	var g errgroup.Group
	for task := 0; task < numTasks; task++ {
		a := writeSpill(t, mem, fmt.Sprintf("task-%d-a", task), "x", fmt.Sprint(task))
		b := writeSpill(t, mem, fmt.Sprintf("task-%d-b", task), "y", "z")
		g.Go(func() error {
			_, err := m.MergeSpills([]SpillInfo{a, b}, fmt.Sprintf("task-%d-out", task), 2)
			return err
		})
	}
	require.NoError(t, g.Wait())
	for task := 0; task < numTasks; task++ {
		require.Equal(t, fmt.Sprintf("xy%dz", task), string(readFile(t, mem, fmt.Sprintf("task-%d-out", task))))
	}
	require.Equal(t, float64(numTasks), testutil.ToFloat64(metrics.Merges.WithLabelValues("concat", "ok")))
	require.Equal(t, float64(4*numTasks), testutil.ToFloat64(metrics.Bytes.WithLabelValues("buffered")))
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.Bytes.WithLabelValues("zero_copy")))
}

func TestMergeSpillsDefaultFS(t *testing.T) {
	defer leaktest.AfterTest(t)()

	for _, disableZeroCopy := range []bool{false, true} {
		t.Run(fmt.Sprintf("disable-zero-copy=%t", disableZeroCopy), func(t *testing.T) {
			dir := t.TempDir()
			fs := vfs.Default
			rng := rand.New(rand.NewPCG(1, 2))

			const numSpills, numPartitions = 4, 16
			spills := make([]SpillInfo, numSpills)
			contents := make([][]string, numSpills)
			for i := range spills {
				contents[i] = make([]string, numPartitions)
				for p := range contents[i] {
					// Some partitions are empty and some span several copy
					// buffers.
					n := rng.IntN(3 * 1024)
					if rng.IntN(4) == 0 {
						n = 0
					}
					b := make([]byte, n)
					for j := range b {
						b[j] = byte(rng.Uint32())
					}
					contents[i][p] = string(b)
				}
				spills[i] = writeSpill(t, fs, filepath.Join(dir, fmt.Sprintf("spill-%d", i)), contents[i]...)
			}

			m := NewMerger(&Options{
				FS:              fs,
				Logger:          base.NoopLogger{},
				DisableZeroCopy: disableZeroCopy,
				CopyBufferSize:  1024,
			})
			out := filepath.Join(dir, "out")
			lengths, err := m.MergeSpills(spills, out, numPartitions)
			require.NoError(t, err)

			var expected strings.Builder
			for p := 0; p < numPartitions; p++ {
				var n int64
				for i := range spills {
					expected.WriteString(contents[i][p])
					n += int64(len(contents[i][p]))
				}
				require.Equal(t, n, lengths[p])
			}
			data := readFile(t, fs, out)
			require.Equal(t, expected.String(), string(data))
			require.Equal(t, int64(len(data)), lengths.Total())

			// The spills stay in place.
			for i := range spills {
				require.Equal(t, strings.Join(contents[i], ""), string(readFile(t, fs, spills[i].Path)))
			}
		})
	}
}

func TestMergeSpillsRenameDefaultFS(t *testing.T) {
	dir := t.TempDir()
	spill := writeSpill(t, vfs.Default, filepath.Join(dir, "spill"), "abc", "", "de")
	m := NewMerger(&Options{Logger: base.NoopLogger{}})
	out := filepath.Join(dir, "out")
	lengths, err := m.MergeSpills([]SpillInfo{spill}, out, 3)
	require.NoError(t, err)
	require.Equal(t, PartitionLengths{3, 0, 2}, lengths)
	require.Equal(t, "abcde", string(readFile(t, vfs.Default, out)))
	exists, err := vfs.Exists(vfs.Default, spill.Path)
	require.NoError(t, err)
	require.False(t, exists)
}
