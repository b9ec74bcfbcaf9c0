// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package invariants provides assertions that are only checked in builds
// using the "invariants" or "race" build tags.
package invariants

import "fmt"

// Integer is a constraint that permits any integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// CheckEqual panics with the formatted message if a != b and invariants are
// enabled.
func CheckEqual[T Integer](a, b T, format string, args ...interface{}) {
	if Enabled && a != b {
		panic(fmt.Sprintf("%s: %d != %d", fmt.Sprintf(format, args...), a, b))
	}
}
