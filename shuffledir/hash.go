// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package shuffledir

import (
	"math"
	"unicode/utf16"
)

// stringHash computes the same 32-bit hash the JVM computes for a
// java.lang.String: s[0]*31^(n-1) + ... + s[n-1] over UTF-16 code units,
// with wrapping arithmetic. Executors written in either language that share
// local directories therefore agree on where a block lives.
func stringHash(s string) int32 {
	var h int32
	for _, r := range s {
		if r < 0x10000 {
			h = 31*h + int32(r)
			continue
		}
		r1, r2 := utf16.EncodeRune(r)
		h = 31*h + int32(r1)
		h = 31*h + int32(r2)
	}
	return h
}

// nonNegativeHash maps the hash of s into [0, MaxInt32]. MinInt32 has no
// positive counterpart and maps to 0.
func nonNegativeHash(s string) int {
	h := stringHash(s)
	if h == math.MinInt32 {
		return 0
	}
	if h < 0 {
		h = -h
	}
	return int(h)
}
