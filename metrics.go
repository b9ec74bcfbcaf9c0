// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package shuffle

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Label values used by MergeMetrics.
const (
	resultOK    = "ok"
	resultError = "error"

	methodZeroCopy = "zero_copy"
	methodBuffered = "buffered"
	methodRename   = "rename"
)

// MergeMetrics holds the prometheus collectors updated by a Merger. A
// MergeMetrics may be shared by several Mergers.
type MergeMetrics struct {
	// Merges counts merges by strategy and result ("ok" or "error").
	Merges *prometheus.CounterVec
	// Bytes counts the bytes of successful merge outputs by method:
	// "zero_copy" and "buffered" for concatenated spills, "rename" for
	// promoted spills.
	Bytes *prometheus.CounterVec
	// Errors counts failed merges by error kind.
	Errors *prometheus.CounterVec
	// Latency observes the duration of every merge in seconds.
	Latency prometheus.Histogram
}

// NewMergeMetrics constructs the merge collectors under namespace. They are
// not registered.
func NewMergeMetrics(namespace string) *MergeMetrics {
	return &MergeMetrics{
		Merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shuffle",
			Name:      "merges_total",
			Help:      "Number of spill merges by strategy and result.",
		}, []string{"strategy", "result"}),
		Bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shuffle",
			Name:      "merged_bytes_total",
			Help:      "Bytes of merged output by transfer method.",
		}, []string{"method"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shuffle",
			Name:      "merge_errors_total",
			Help:      "Number of failed spill merges by error kind.",
		}, []string{"kind"}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "shuffle",
			Name:      "merge_duration_seconds",
			Help:      "Duration of spill merges.",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 4, 10),
		}),
	}
}

// Collectors returns all collectors of m.
func (m *MergeMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.Merges, m.Bytes, m.Errors, m.Latency}
}

// Register registers all collectors of m with r.
func (m *MergeMetrics) Register(r prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := r.Register(c); err != nil {
			return errors.Wrap(err, "registering merge metrics")
		}
	}
	return nil
}

func (m *MergeMetrics) record(info MergeInfo) {
	if m == nil {
		return
	}
	m.Latency.Observe(info.Duration.Seconds())
	if info.Err != nil {
		m.Merges.WithLabelValues(info.Strategy.String(), resultError).Inc()
		m.Errors.WithLabelValues(KindOf(info.Err).String()).Inc()
		return
	}
	m.Merges.WithLabelValues(info.Strategy.String(), resultOK).Inc()
	switch info.Strategy {
	case StrategyRename:
		m.Bytes.WithLabelValues(methodRename).Add(float64(info.Bytes))
	case StrategyConcat:
		m.Bytes.WithLabelValues(methodZeroCopy).Add(float64(info.ZeroCopyBytes))
		m.Bytes.WithLabelValues(methodBuffered).Add(float64(info.BufferedBytes))
	}
}
