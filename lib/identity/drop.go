// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"fmt"
	"syscall"
)

// DropTo permanently switches the calling process to uid/gid. Order
// matters: supplementary groups and the gid must be set while still
// root, because after setuid the process has no authority to change
// them. There is no way back; setuid(2) from root discards the saved
// uid.
//
// On Linux the runtime applies each call to every thread, so the whole
// process drops, not just the calling goroutine's thread.
func DropTo(uid, gid int) error {
	if err := syscall.Setgroups([]int{gid}); err != nil {
		return fmt.Errorf("setgroups [%d]: %w", gid, err)
	}
	if err := syscall.Setgid(gid); err != nil {
		return fmt.Errorf("setgid %d: %w", gid, err)
	}
	if err := syscall.Setuid(uid); err != nil {
		return fmt.Errorf("setuid %d: %w", uid, err)
	}
	return nil
}
