// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"fmt"
	"os/user"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// Elevated reports whether euid is the administrative user id. This is
// the entire privilege gate: a plain comparison, no capability
// probing. A non-root euid holding file capabilities still takes the
// unprivileged path, which is the intended behavior for an entrypoint
// that must never re-exec in a loop.
func Elevated(euid int) bool {
	return euid == 0
}

// DirectoryOwner returns the uid and gid owning the file or directory
// at path. The entrypoint reads the owner of the bind-mounted working
// directory once, at context snapshot time, and aligns the runner
// account with it.
func DirectoryOwner(path string) (uid, gid int, err error) {
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		return 0, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return int(stat.Uid), int(stat.Gid), nil
}

// Account is a resolved OS account: the numeric ids plus the names
// needed to mutate it with the shadow-utils tools.
type Account struct {
	// Name is the account name, e.g. "runner" or "postgres".
	Name string

	// UID and GID are the account's current numeric ids.
	UID int
	GID int

	// Group is the name of the account's primary group. groupmod
	// operates on group names, so the reconciler needs it alongside
	// the numeric gid.
	Group string

	// Home is the account's home directory from the passwd database.
	Home string
}

// LookupAccount resolves name against the system account databases.
func LookupAccount(name string) (Account, error) {
	entry, err := user.Lookup(name)
	if err != nil {
		return Account{}, fmt.Errorf("looking up account %s: %w", name, err)
	}

	uid, err := strconv.Atoi(entry.Uid)
	if err != nil {
		return Account{}, fmt.Errorf("parsing uid %q of account %s: %w", entry.Uid, name, err)
	}
	gid, err := strconv.Atoi(entry.Gid)
	if err != nil {
		return Account{}, fmt.Errorf("parsing gid %q of account %s: %w", entry.Gid, name, err)
	}

	group, err := user.LookupGroupId(entry.Gid)
	if err != nil {
		return Account{}, fmt.Errorf("looking up primary group %s of account %s: %w", entry.Gid, name, err)
	}

	return Account{
		Name:  name,
		UID:   uid,
		GID:   gid,
		Group: group.Name,
		Home:  entry.HomeDir,
	}, nil
}

// Credential returns the syscall credential for running a subprocess
// as this account. Supplementary groups are not initialized; the
// database tools only need the primary id pair.
func (a Account) Credential() *syscall.Credential {
	return &syscall.Credential{
		Uid:         uint32(a.UID),
		Gid:         uint32(a.GID),
		NoSetGroups: true,
	}
}
