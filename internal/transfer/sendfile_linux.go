// Copyright 2026 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build linux

package transfer

import (
	"os"

	"github.com/cockroachdb/shuffle/vfs"
	"golang.org/x/sys/unix"
)

// maxSendfileChunk is the largest count Linux transfers in one sendfile call.
const maxSendfileChunk = 0x7ffff000

// sendfile copies n bytes of src starting at off to the current position of
// dst inside the kernel. ok is false when sendfile cannot be used for this
// pair of files, in which case nothing was transferred.
func sendfile(dst, src vfs.File, off, n int64) (written int64, ok bool, err error) {
	dstFd, srcFd := dst.Fd(), src.Fd()
	if dstFd == vfs.InvalidFd || srcFd == vfs.InvalidFd {
		return 0, false, nil
	}
	for written < n {
		m, err := unix.Sendfile(int(dstFd), int(srcFd), &off, int(min(n-written, maxSendfileChunk)))
		if m > 0 {
			written += int64(m)
		}
		switch {
		case err == unix.EINTR || err == unix.EAGAIN:
			continue
		case err != nil:
			if written == 0 && (err == unix.EINVAL || err == unix.ENOSYS || err == unix.EOPNOTSUPP) {
				// EINVAL is returned for append-mode outputs and for file
				// types that do not support splicing.
				return 0, false, nil
			}
			return written, true, os.NewSyscallError("sendfile", err)
		case m == 0:
			// End of src.
			return written, true, nil
		}
	}
	return written, true, nil
}
