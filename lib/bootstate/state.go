// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package bootstate

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/datacube-foundation/cubeboot/lib/codec"
)

// FileName is the state file's fixed name inside the state directory.
const FileName = "boot-state.cbor"

// PathIn returns the state file path for a given state directory.
func PathIn(stateDir string) string {
	return filepath.Join(stateDir, FileName)
}

// State records one privilege-drop transition. Written by the elevated
// generation immediately before exec(), read by whatever generation
// starts next.
type State struct {
	// Generation numbers the process image that reads this state: 0 is
	// the original invocation, 1 the image after the drop. The chain
	// never exceeds 1.
	Generation int `cbor:"generation"`

	// FirstEUID is the effective uid of the generation that wrote the
	// state. Logged on the far side of the exec so container logs show
	// both identities of one boot.
	FirstEUID int `cbor:"first_euid"`

	// TargetUID and TargetGID are the ids the writing generation
	// dropped to. The reading generation should be running as them.
	TargetUID int `cbor:"target_uid"`
	TargetGID int `cbor:"target_gid"`

	// Argv is the full original argv, argv[0] included. The reading
	// generation compares it against its own to verify the argument
	// passthrough invariant.
	Argv []string `cbor:"argv"`

	// BinaryHash is the hex SHA256 of the executable that wrote the
	// state. Both generations must be the same image.
	BinaryHash string `cbor:"binary_hash"`

	// Timestamp is when the transition was initiated. Used by Check to
	// discard state files left behind by an interrupted boot.
	Timestamp time.Time `cbor:"timestamp"`
}

// Write atomically writes a boot state file. The state is written to a
// temporary file in the same directory, fsynced for durability, and
// renamed into place, so readers never see a partial write.
//
// The file is created with mode 0600. The parent directory must
// already exist. Callers that drop privileges after writing must also
// hand the file (and its directory) to the target account, or the next
// generation cannot clear it.
func Write(path string, state State) error {
	data, err := codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling boot state: %w", err)
	}

	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating temporary boot state file: %w", err)
	}

	// Write, sync, close, in that order. If any step fails, remove the
	// temporary file and report the first error.
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary boot state file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary boot state file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary boot state file: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming boot state file into place: %w", err)
	}

	// Sync the parent directory so the rename survives a power loss
	// between the rename and the OS flushing directory metadata.
	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}

	return nil
}

// Read reads and parses a boot state file. When the file does not
// exist, the returned error wraps os.ErrNotExist (testable with
// errors.Is).
func Read(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}

	var state State
	if err := codec.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parsing boot state file %s: %w", path, err)
	}
	return state, nil
}

// Check reads a boot state file and verifies it was written recently
// enough to describe this boot. Returns the state and true when the
// file exists and its Timestamp is within maxAge of now. Returns a
// zero State and false when the file does not exist or is stale.
//
// Any other error (permission denied, corrupt CBOR) is returned as-is
// so the caller can distinguish "no state" from "state exists but
// unreadable."
func Check(path string, maxAge time.Duration) (State, bool, error) {
	state, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, false, nil
		}
		return State{}, false, err
	}

	if time.Since(state.Timestamp) > maxAge {
		return State{}, false, nil
	}

	return state, true, nil
}

// Clear removes a boot state file. Idempotent: returns nil when the
// file does not exist.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing boot state file: %w", err)
	}
	return nil
}
