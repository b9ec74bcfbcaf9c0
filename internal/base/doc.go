// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base defines fundamental types used across the shuffle packages:
// the Logger interface, helpers for releasing groups of open files, output
// cleaners and the error markers that cross package boundaries.
package base
