// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Reconciler aligns a named unprivileged account's uid/gid with an
// observed owner pair. It mutates the account with the shadow-utils
// tools (groupmod, usermod) rather than editing passwd files directly,
// so whatever name service the image uses stays consistent.
type Reconciler struct {
	// Account is the name of the account to align, e.g. "runner".
	Account string

	// Logger receives alignment decisions.
	Logger *slog.Logger

	// runCommand overrides subprocess execution in tests.
	runCommand func(*exec.Cmd) error

	// chownTree overrides the home ownership fixup in tests.
	chownTree func(root string, uid, gid int) error
}

// AlignTo makes the account's uid/gid equal to uid/gid. When the
// account already matches, nothing runs. Otherwise the primary group
// is renumbered first (usermod -g requires the target gid to exist),
// then the account itself, then the account's home tree is re-owned so
// the new ids can actually use it.
//
// The returned Account carries the post-alignment ids. Requires the
// caller to be elevated; the tools fail otherwise and the error
// propagates.
func (r *Reconciler) AlignTo(ctx context.Context, uid, gid int) (Account, error) {
	account, err := LookupAccount(r.Account)
	if err != nil {
		return Account{}, err
	}

	if account.UID == uid && account.GID == gid {
		r.Logger.Debug("account already aligned with directory owner",
			"account", account.Name, "uid", uid, "gid", gid)
		return account, nil
	}

	r.Logger.Info("aligning account with directory owner",
		"account", account.Name,
		"uid", uid, "gid", gid,
		"previous_uid", account.UID, "previous_gid", account.GID)

	groupmod := exec.CommandContext(ctx, "groupmod", "-g", strconv.Itoa(gid), account.Group)
	if err := r.run(groupmod); err != nil {
		return Account{}, fmt.Errorf("renumbering group %s to gid %d: %w", account.Group, gid, err)
	}

	usermod := exec.CommandContext(ctx, "usermod",
		"-u", strconv.Itoa(uid), "-g", strconv.Itoa(gid), account.Name)
	if err := r.run(usermod); err != nil {
		return Account{}, fmt.Errorf("renumbering account %s to uid %d gid %d: %w", account.Name, uid, gid, err)
	}

	chown := r.chownTree
	if chown == nil {
		chown = ChownTree
	}
	if err := chown(account.Home, uid, gid); err != nil {
		return Account{}, fmt.Errorf("re-owning home of %s: %w", account.Name, err)
	}

	account.UID = uid
	account.GID = gid
	return account, nil
}

func (r *Reconciler) run(cmd *exec.Cmd) error {
	if r.runCommand != nil {
		return r.runCommand(cmd)
	}
	return cmd.Run()
}

// ChownTree changes ownership of root and everything beneath it to
// uid/gid. Symlinks are re-owned themselves (lchown), never followed,
// so a hostile link inside a home directory cannot redirect the chown
// outside it.
func ChownTree(root string, uid, gid int) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := os.Lchown(path, uid, gid); err != nil {
			return fmt.Errorf("chowning %s: %w", path, err)
		}
		return nil
	})
}
