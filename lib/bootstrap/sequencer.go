// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/datacube-foundation/cubeboot/lib/bootstate"
	"github.com/datacube-foundation/cubeboot/lib/identity"
	"github.com/datacube-foundation/cubeboot/lib/version"
)

// stateMaxAge is the maximum age of a boot state file that will be
// acted upon during startup. An older file is from an interrupted boot
// and is treated as absent. Five minutes is generous; the gap between
// writing the state and re-entering the sequencer is one exec().
const stateMaxAge = 5 * time.Minute

// State identifies where an invocation stands in the boot state
// machine. The two running states are terminal: both proceed into the
// environment stage, differing only in the identity that carries it
// out.
type State int

const (
	// StateElevatedEntry is an elevated invocation before
	// reconciliation. It never reaches the environment stage; it either
	// re-execs into StateRunningAsUser or falls through to
	// StateRunningAsRoot.
	StateElevatedEntry State = iota

	// StateRunningAsRoot is the escape hatch: the working directory is
	// root-owned (or a recorded privilege drop did not take effect), so
	// the sequence continues elevated.
	StateRunningAsRoot

	// StateRunningAsUser is the normal terminal state: unprivileged,
	// either from the start or after the re-exec.
	StateRunningAsUser
)

func (s State) String() string {
	switch s {
	case StateElevatedEntry:
		return "elevated-entry"
	case StateRunningAsRoot:
		return "running-as-root"
	case StateRunningAsUser:
		return "running-as-user"
	default:
		return "unknown"
	}
}

// Sequencer drives one boot against a [Context]. The stage
// collaborators are function fields wired by the binary, so the state
// machine itself owns only ordering, policy, and the re-exec
// transition.
type Sequencer struct {
	// Logger receives stage decisions and the mandated warnings.
	Logger *slog.Logger

	// SkipDatabase disables the infrastructure stage entirely.
	SkipDatabase bool

	// StatePath is the boot state file location, written before the
	// re-exec and consumed after it.
	StatePath string

	// StartDatabase runs the elevated-only database bootstrap. Any
	// failure is converted to the single database warning; the boot
	// continues regardless.
	StartDatabase func(ctx context.Context) error

	// AlignAccount renumbers the runner account to the given uid/gid
	// and returns the aligned account. Failures abort the boot.
	AlignAccount func(ctx context.Context, uid, gid int) (identity.Account, error)

	// WriteArtifact writes the integration config artifact into the
	// given home directory. Failures abort the boot.
	WriteArtifact func(home string) error

	// PrepareEnvironment performs the runtime environment work
	// (activation, project install, GDAL data) against the context
	// environment. Failures abort the boot.
	PrepareEnvironment func(ctx context.Context, env *Environ) error

	// execFunc, chownFunc, and dropFunc override process image
	// replacement, file ownership changes, and the privilege drop in
	// tests.
	execFunc  func(path string, argv, env []string) error
	chownFunc func(path string, uid, gid int) error
	dropFunc  func(uid, gid int) error
}

// Run executes the boot sequence. It returns nil after a complete boot
// with no command to hand off, does not return at all when an exec
// succeeds, and returns an error for any aborting failure.
func (s *Sequencer) Run(ctx context.Context, boot *Context) error {
	terminal, err := s.enter(ctx, boot)
	if err != nil {
		return err
	}
	return s.environmentStage(ctx, boot, terminal)
}

// enter runs the privilege gate, the infrastructure stage, and the
// identity reconciliation, returning the terminal state for the
// environment stage. On the re-exec path it does not return.
func (s *Sequencer) enter(ctx context.Context, boot *Context) (State, error) {
	elevated := identity.Elevated(boot.EUID)

	state, found, err := bootstate.Check(s.StatePath, stateMaxAge)
	if err != nil {
		// Unreadable state must not break a boot: clear it and carry
		// on as a first-generation invocation.
		s.handle(PolicyWarn, err, "unreadable boot state, discarding it", "path", s.StatePath)
		s.handle(PolicyWarn, bootstate.Clear(s.StatePath), "clearing unreadable boot state", "path", s.StatePath)
	}
	if found {
		return s.resume(boot, state, elevated)
	}

	if !elevated {
		s.Logger.Debug("not elevated, skipping infrastructure and reconciliation", "euid", boot.EUID)
		return StateRunningAsUser, nil
	}

	if s.SkipDatabase {
		s.Logger.Info("database stage disabled, skipping")
	} else {
		s.handle(PolicyWarn, s.StartDatabase(ctx),
			"failed to launch db, integration tests might not run")
	}

	if boot.OwnerUID == 0 {
		// Root-owned working directory: renumbering the runner account
		// to uid 0 would be worse than staying elevated, so continue
		// as root. Loudly.
		s.Logger.Warn("running as root", "owner_uid", boot.OwnerUID)
		return StateRunningAsRoot, nil
	}

	account, err := s.AlignAccount(ctx, boot.OwnerUID, boot.OwnerGID)
	if err != nil {
		return StateElevatedEntry, fmt.Errorf("aligning runner account: %w", err)
	}

	// Unconditional even when no renumbering was needed: every
	// elevated invocation ends in a de-escalation before any user
	// command runs.
	return StateElevatedEntry, s.reexec(boot, account)
}

// resume handles an invocation that found a fresh boot state file:
// the generation on the far side of a recorded privilege drop.
func (s *Sequencer) resume(boot *Context, state bootstate.State, elevated bool) (State, error) {
	s.handle(PolicyWarn, bootstate.Clear(s.StatePath), "clearing boot state", "path", s.StatePath)

	if elevated {
		// The previous generation recorded a drop, yet this one is
		// still elevated. Something between setuid and exec is not
		// what it claims to be; reconciling again could loop, so treat
		// it as the escape hatch and continue as root.
		s.Logger.Warn("still elevated after a recorded privilege drop, continuing as root",
			"first_euid", state.FirstEUID,
			"target_uid", state.TargetUID,
			"euid", boot.EUID)
		return StateRunningAsRoot, nil
	}

	argvMatch := slices.Equal(state.Argv, boot.OriginalArgv())
	hash, _, hashErr := version.ComputeSelfHash()
	hashMatch := hashErr == nil && hash == state.BinaryHash

	attrs := []any{
		"generation", state.Generation,
		"first_euid", state.FirstEUID,
		"euid", boot.EUID,
		"argv_match", argvMatch,
		"hash_match", hashMatch,
	}
	if argvMatch && hashMatch {
		s.Logger.Info("resumed after privilege drop", attrs...)
	} else {
		// A different argv or binary on this side of the exec means
		// the drop did not re-run what recorded it. Continue anyway;
		// the state file is informational, not a gate.
		s.Logger.Warn("resumed after privilege drop with a mismatched invocation", attrs...)
	}

	return StateRunningAsUser, nil
}

// reexec hands the process to the aligned account: record the
// transition, drop privileges, and replace the process image with the
// same invocation. On success it never returns.
func (s *Sequencer) reexec(boot *Context, account identity.Account) error {
	argv := boot.OriginalArgv()

	state := bootstate.State{
		Generation: 1,
		FirstEUID:  boot.EUID,
		TargetUID:  account.UID,
		TargetGID:  account.GID,
		Argv:       argv,
		Timestamp:  time.Now(),
	}
	if hash, _, err := version.ComputeSelfHash(); err == nil {
		state.BinaryHash = hash
	} else {
		s.handle(PolicyWarn, err, "hashing own binary for boot state")
	}

	// State handling must never break a boot: every step here is
	// warn-only. The chown covers the directory too, because clearing
	// the file after the drop needs write permission on the directory,
	// not the file.
	if err := os.MkdirAll(filepath.Dir(s.StatePath), 0755); err != nil {
		s.handle(PolicyWarn, err, "creating boot state directory", "path", s.StatePath)
	} else if err := bootstate.Write(s.StatePath, state); err != nil {
		s.handle(PolicyWarn, err, "writing boot state", "path", s.StatePath)
	} else {
		s.handle(PolicyWarn, s.chown(filepath.Dir(s.StatePath), account.UID, account.GID),
			"chowning boot state directory", "path", s.StatePath)
		s.handle(PolicyWarn, s.chown(s.StatePath, account.UID, account.GID),
			"chowning boot state file", "path", s.StatePath)
	}

	// The artifact and anything the handed-off command writes under
	// "~" must land in the account's home, not root's.
	boot.Env.Set("HOME", account.Home)

	s.Logger.Info("dropping privileges and re-executing",
		"account", account.Name,
		"uid", account.UID,
		"gid", account.GID,
		"self", boot.Self)

	if err := s.drop(account.UID, account.GID); err != nil {
		s.handle(PolicyWarn, bootstate.Clear(s.StatePath), "clearing boot state after failed drop")
		return fmt.Errorf("dropping privileges to %d:%d: %w", account.UID, account.GID, err)
	}

	err := s.exec(boot.Self, argv, boot.Env.Environ())
	// exec replaces the process image on success; reaching this point
	// means it failed. Clear the state so the next boot starts clean.
	if err == nil {
		err = errors.New("exec returned")
	}
	s.handle(PolicyWarn, bootstate.Clear(s.StatePath), "clearing boot state after failed exec")
	return fmt.Errorf("re-executing %s: %w", boot.Self, err)
}

// environmentStage is stage 4: the config artifact, the runtime
// environment, and the final handoff, all under whatever identity
// survived the earlier stages.
func (s *Sequencer) environmentStage(ctx context.Context, boot *Context, terminal State) error {
	s.Logger.Debug("entering environment stage", "state", terminal.String(), "euid", boot.EUID)

	home, ok := boot.Env.Lookup("HOME")
	if !ok || home == "" {
		return errors.New("HOME is not set; cannot place the integration config artifact")
	}
	if err := s.WriteArtifact(home); err != nil {
		return fmt.Errorf("writing integration config artifact: %w", err)
	}

	if err := s.PrepareEnvironment(ctx, boot.Env); err != nil {
		return fmt.Errorf("preparing runtime environment: %w", err)
	}

	return s.handoff(boot)
}

// handoff replaces the process image with the trailing command. A boot
// with no command is complete at this point and returns nil.
func (s *Sequencer) handoff(boot *Context) error {
	if len(boot.Command) == 0 {
		s.Logger.Info("bootstrap complete, no command to run")
		return nil
	}

	// Resolution must use the context environment's PATH: after
	// activation it starts with the virtual environment's bin
	// directory, which the process's own PATH never saw.
	path, err := boot.Env.LookPath(boot.Command[0])
	if err != nil {
		return fmt.Errorf("resolving command %q: %w", boot.Command[0], err)
	}

	s.Logger.Info("handing off", "path", path, "argv", boot.Command)
	err = s.exec(path, boot.Command, boot.Env.Environ())
	if err == nil {
		err = errors.New("exec returned")
	}
	return fmt.Errorf("executing %s: %w", path, err)
}

func (s *Sequencer) exec(path string, argv, env []string) error {
	if s.execFunc != nil {
		return s.execFunc(path, argv, env)
	}
	return syscall.Exec(path, argv, env)
}

func (s *Sequencer) chown(path string, uid, gid int) error {
	if s.chownFunc != nil {
		return s.chownFunc(path, uid, gid)
	}
	return os.Chown(path, uid, gid)
}

func (s *Sequencer) drop(uid, gid int) error {
	if s.dropFunc != nil {
		return s.dropFunc(uid, gid)
	}
	return identity.DropTo(uid, gid)
}
