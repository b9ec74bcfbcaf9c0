// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/shuffle"
	"github.com/cockroachdb/shuffle/vfs"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// mergeT implements the merge tool.
type mergeT struct {
	Root *cobra.Command

	opts            *shuffle.Options
	out             string
	partitions      int
	jobs            string
	concurrency     int
	disableZeroCopy bool
	copyBufferSize  int
	cleaner         string
	verbose         bool
}

type mergeJob struct {
	out           string
	numPartitions int
	spills        []shuffle.SpillInfo
}

type mergeResult struct {
	lengths  shuffle.PartitionLengths
	err      error
	ran      bool
	duration time.Duration
}

func newMerge(opts *shuffle.Options) *mergeT {
	m := &mergeT{opts: opts}
	m.Root = &cobra.Command{
		Use:   "merge [--out=<path> --partitions=<n> <spill>... | --jobs=<file>]",
		Short: "merge the spill files of map tasks",
		Long: `
Merge spill files into a single output per map task and print the offset and
length of every partition of the output.

A spill is given as <path>=<len0>,<len1>,..., listing the length of each
partition in the spill file. With --jobs, each non-empty line of the file
describes one task as "<out> <partitions> <spill>..."; the tasks are merged
concurrently.
`,
		Run: m.runMerge,
	}
	m.Root.Flags().StringVar(&m.out, "out", "", "path of the merged output")
	m.Root.Flags().IntVar(&m.partitions, "partitions", 0, "number of partitions")
	m.Root.Flags().StringVar(&m.jobs, "jobs", "", "file listing merge tasks, one per line")
	m.Root.Flags().IntVarP(&m.concurrency, "concurrency", "c", 4, "number of concurrent merges with --jobs")
	m.Root.Flags().BoolVar(&m.disableZeroCopy, "disable-zero-copy", false,
		"copy partitions through a buffer instead of using sendfile (outputs on Linux always use the buffer)")
	m.Root.Flags().IntVar(&m.copyBufferSize, "copy-buffer-size", shuffle.DefaultCopyBufferSize,
		"size of the buffer used when zero-copy transfers are not used")
	m.Root.Flags().StringVar(&m.cleaner, "cleaner", "delete",
		"what to do with the output of a failed merge (delete|archive)")
	m.Root.Flags().BoolVarP(&m.verbose, "verbose", "v", false, "log merge events and file operations")
	return m
}

func (m *mergeT) runMerge(cmd *cobra.Command, args []string) {
	jobs, err := m.loadJobs(args)
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		osExit(1)
		return
	}
	merger, err := m.newMerger()
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", err)
		osExit(1)
		return
	}

	results := runMergeJobs(context.Background(), merger, jobs, m.concurrency)
	failed := false
	for i, job := range jobs {
		r := results[i]
		fmt.Fprintf(stdout, "%s:\n", job.out)
		switch {
		case !r.ran:
			fmt.Fprintf(stdout, "  skipped\n")
		case r.err != nil:
			failed = true
			fmt.Fprintf(stdout, "  error(%s): %s\n", shuffle.KindOf(r.err), r.err)
		default:
			writePartitionTable(stdout, r.lengths)
			if m.verbose {
				fmt.Fprintf(stderr, "%s: %s in %d partitions\n", job.out,
					crhumanize.Bytes(r.lengths.Total(), crhumanize.Compact, crhumanize.OmitI), len(r.lengths))
			}
		}
	}
	if m.verbose && len(jobs) > 1 {
		writeLatencySummary(stderr, results)
	}
	if failed {
		osExit(1)
	}
}

// writeLatencySummary prints the distribution of the durations of the
// merges that ran.
func writeLatencySummary(w io.Writer, results []mergeResult) {
	hist := hdrhistogram.New(0, (10 * time.Minute).Microseconds(), 3)
	for _, r := range results {
		if r.ran {
			_ = hist.RecordValue(r.duration.Microseconds())
		}
	}
	us := func(v int64) string {
		return (time.Duration(v) * time.Microsecond).String()
	}
	fmt.Fprintf(w, "%d merges: p50 %s, p99 %s, max %s\n", hist.TotalCount(),
		us(hist.ValueAtQuantile(50)), us(hist.ValueAtQuantile(99)), us(hist.Max()))
}

func (m *mergeT) newMerger() (*shuffle.Merger, error) {
	opts := *m.opts
	opts.DisableZeroCopy = m.disableZeroCopy
	opts.CopyBufferSize = m.copyBufferSize
	switch m.cleaner {
	case "delete":
		opts.Cleaner = shuffle.DeleteCleaner{}
	case "archive":
		opts.Cleaner = shuffle.ArchiveCleaner{}
	default:
		return nil, errors.Newf("unknown cleaner %q", m.cleaner)
	}
	if m.verbose {
		l := shuffle.MakeLoggingEventListener(opts.Logger)
		opts.EventListener = &l
		opts.FS = vfs.WithLogging(opts.FS, opts.Logger.Infof)
	}
	return shuffle.NewMerger(&opts), nil
}

func (m *mergeT) loadJobs(args []string) ([]mergeJob, error) {
	if m.jobs == "" {
		if m.out == "" {
			return nil, errors.New("either --out or --jobs must be specified")
		}
		spills, err := parseSpills(args, m.partitions)
		if err != nil {
			return nil, err
		}
		return []mergeJob{{out: m.out, numPartitions: m.partitions, spills: spills}}, nil
	}
	if m.out != "" || len(args) > 0 {
		return nil, errors.New("--jobs cannot be combined with --out or spill arguments")
	}

	f, err := m.opts.FS.Open(m.jobs)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", m.jobs)
	}
	return parseJobs(string(data))
}

// parseJobs parses a jobs file. Blank lines and lines starting with '#' are
// ignored.
func parseJobs(data string) ([]mergeJob, error) {
	var jobs []mergeJob
	for i, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, errors.Newf("line %d: expected <out> <partitions> <spill>...", i+1)
		}
		numPartitions, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", i+1)
		}
		spills, err := parseSpills(fields[2:], numPartitions)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", i+1)
		}
		jobs = append(jobs, mergeJob{out: fields[0], numPartitions: numPartitions, spills: spills})
	}
	if len(jobs) == 0 {
		return nil, errors.New("no merge jobs")
	}
	return jobs, nil
}

// runMergeJobs merges the jobs with up to concurrency merges in flight. Once
// a merge fails no new merges are started; merges already running complete.
func runMergeJobs(
	ctx context.Context, merger *shuffle.Merger, jobs []mergeJob, concurrency int,
) []mergeResult {
	results := make([]mergeResult, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i := range jobs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			job := &jobs[i]
			start := crtime.NowMono()
			lengths, err := merger.MergeSpills(job.spills, job.out, job.numPartitions)
			results[i] = mergeResult{lengths: lengths, err: err, ran: true, duration: start.Elapsed()}
			return err
		})
	}
	_ = g.Wait()
	return results
}
