// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"fmt"
	"os"

	"github.com/datacube-foundation/cubeboot/lib/identity"
)

// Context is the execution context the sequencer runs against: one
// snapshot of everything the boot sequence reads from the process and
// its surroundings. Stages consume and mutate the context, never the
// ambient process state, so a fabricated context exercises the whole
// machine in tests.
type Context struct {
	// EUID, UID, and GID are the process identity at snapshot time.
	// The privilege gate reads EUID; identity changes happen only by
	// re-exec, never by mutation mid-run.
	EUID int
	UID  int
	GID  int

	// WorkDir is the working directory at invocation, absolute. In a
	// development container this is the bind-mounted source tree.
	WorkDir string

	// OwnerUID and OwnerGID identify who owns WorkDir on the host side
	// of the mount. The reconciler aligns the runner account with them.
	OwnerUID int
	OwnerGID int

	// Env is the mutable environment. Stage mutations (HOME after
	// alignment, VIRTUAL_ENV, PATH, GDAL_DATA) land here and reach the
	// exec'd child.
	Env *Environ

	// Self is the path of the running executable, the target of the
	// re-exec.
	Self string

	// Args is the full original invocation argument list after the
	// program name (os.Args[1:]). The re-exec passes it through
	// unchanged.
	Args []string

	// Command is the trailing command to hand off after the
	// environment stage. Empty means boot only and exit 0.
	Command []string
}

// Snapshot builds a Context from the live process. This is the single
// place the sequencer's inputs are read from ambient state; everything
// downstream goes through the returned context.
func Snapshot(command []string) (*Context, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("reading working directory: %w", err)
	}

	ownerUID, ownerGID, err := identity.DirectoryOwner(workDir)
	if err != nil {
		return nil, fmt.Errorf("reading working directory owner: %w", err)
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolving own executable path: %w", err)
	}

	return &Context{
		EUID:     os.Geteuid(),
		UID:      os.Getuid(),
		GID:      os.Getgid(),
		WorkDir:  workDir,
		OwnerUID: ownerUID,
		OwnerGID: ownerGID,
		Env:      NewEnviron(os.Environ()),
		Self:     self,
		Args:     append([]string(nil), os.Args[1:]...),
		Command:  command,
	}, nil
}

// OriginalArgv reconstructs the full argv of this invocation, argv[0]
// included. It is what the re-exec passes on and what the post-exec
// generation compares against the recorded boot state.
func (c *Context) OriginalArgv() []string {
	return append([]string{c.Self}, c.Args...)
}
