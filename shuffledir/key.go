// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package shuffledir

import "strings"

// AppExecBlockKey returns the key a block registry uses for blockID written
// by executor execID of application appID.
func AppExecBlockKey(appID, execID, blockID string) string {
	return strings.Join([]string{appID, execID, blockID}, "_")
}
