// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package bootstate

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// sampleState returns a representative transition record. The
// timestamp has no sub-second component because the CBOR time encoding
// carries whole seconds.
func sampleState() State {
	return State{
		Generation: 1,
		FirstEUID:  0,
		TargetUID:  1000,
		TargetGID:  1000,
		Argv:       []string{"/usr/local/bin/cubeboot", "pytest", "-k", "foo"},
		BinaryHash: "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		Timestamp:  time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC),
	}
}

func TestWriteRead(t *testing.T) {
	path := PathIn(t.TempDir())
	state := sampleState()

	if err := Write(path, state); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if got.Generation != state.Generation {
		t.Errorf("Generation = %d, want %d", got.Generation, state.Generation)
	}
	if got.FirstEUID != state.FirstEUID {
		t.Errorf("FirstEUID = %d, want %d", got.FirstEUID, state.FirstEUID)
	}
	if got.TargetUID != state.TargetUID || got.TargetGID != state.TargetGID {
		t.Errorf("target ids = %d:%d, want %d:%d",
			got.TargetUID, got.TargetGID, state.TargetUID, state.TargetGID)
	}
	if !reflect.DeepEqual(got.Argv, state.Argv) {
		t.Errorf("Argv = %v, want %v", got.Argv, state.Argv)
	}
	if got.BinaryHash != state.BinaryHash {
		t.Errorf("BinaryHash = %q, want %q", got.BinaryHash, state.BinaryHash)
	}
	if !got.Timestamp.Equal(state.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, state.Timestamp)
	}
}

func TestPathIn(t *testing.T) {
	if got := PathIn("/run/cubeboot"); got != "/run/cubeboot/boot-state.cbor" {
		t.Errorf("PathIn = %q, want /run/cubeboot/boot-state.cbor", got)
	}
}

func TestWriteOverwritesExisting(t *testing.T) {
	path := PathIn(t.TempDir())

	first := sampleState()
	if err := Write(path, first); err != nil {
		t.Fatalf("Write first: %v", err)
	}

	second := sampleState()
	second.TargetUID = 2000
	second.TargetGID = 2000
	if err := Write(path, second); err != nil {
		t.Fatalf("Write second: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.TargetUID != 2000 {
		t.Errorf("TargetUID = %d, want 2000 (second write should overwrite)", got.TargetUID)
	}
}

func TestWriteFilePermissions(t *testing.T) {
	path := PathIn(t.TempDir())

	if err := Write(path, sampleState()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if permissions := info.Mode().Perm(); permissions != 0600 {
		t.Errorf("permissions = %04o, want 0600", permissions)
	}
}

func TestWriteNoTemporaryFileLeftBehind(t *testing.T) {
	path := PathIn(t.TempDir())

	if err := Write(path, sampleState()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	temporaryPath := path + ".tmp"
	if _, err := os.Stat(temporaryPath); !os.IsNotExist(err) {
		t.Errorf("temporary file %s still exists after successful Write", temporaryPath)
	}
}

func TestWriteParentDirectoryMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nonexistent", FileName)

	if err := Write(path, sampleState()); err == nil {
		t.Fatal("Write to nonexistent parent directory should fail")
	}
}

func TestReadNonexistent(t *testing.T) {
	path := PathIn(t.TempDir())

	_, err := Read(path)
	if err == nil {
		t.Fatal("Read nonexistent file should return an error")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error should wrap os.ErrNotExist, got: %v", err)
	}
}

func TestReadCorrupt(t *testing.T) {
	path := PathIn(t.TempDir())
	if err := os.WriteFile(path, []byte{0xFF, 0xFE, 0xFD}, 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Read(path)
	if err == nil {
		t.Fatal("Read corrupt file should return an error")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error %q should mention file path %q", err, path)
	}
}

func TestCheckRecent(t *testing.T) {
	path := PathIn(t.TempDir())
	state := sampleState()
	state.Timestamp = time.Now().Truncate(time.Second)

	if err := Write(path, state); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, found, err := Check(path, time.Minute)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !found {
		t.Fatal("Check should return found=true for a recent state file")
	}
	if got.Generation != state.Generation {
		t.Errorf("Generation = %d, want %d", got.Generation, state.Generation)
	}
}

func TestCheckStale(t *testing.T) {
	path := PathIn(t.TempDir())
	state := sampleState()
	state.Timestamp = time.Now().Add(-10 * time.Minute)

	if err := Write(path, state); err != nil {
		t.Fatalf("Write: %v", err)
	}

	_, found, err := Check(path, time.Minute)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if found {
		t.Error("Check should return found=false for a stale state file")
	}
}

func TestCheckNonexistent(t *testing.T) {
	path := PathIn(t.TempDir())

	_, found, err := Check(path, time.Minute)
	if err != nil {
		t.Fatalf("Check should not return an error for a nonexistent file, got: %v", err)
	}
	if found {
		t.Error("Check should return found=false for a nonexistent file")
	}
}

func TestCheckCorrupt(t *testing.T) {
	path := PathIn(t.TempDir())
	if err := os.WriteFile(path, []byte("not cbor"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, _, err := Check(path, time.Minute)
	if err == nil {
		t.Fatal("Check should return an error for a corrupt file (not silently ignore it)")
	}
}

func TestClearExisting(t *testing.T) {
	path := PathIn(t.TempDir())

	if err := Write(path, sampleState()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Clear(path); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file should not exist after Clear")
	}
}

func TestClearIdempotent(t *testing.T) {
	path := PathIn(t.TempDir())

	if err := Write(path, sampleState()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Clear twice; the second call should succeed silently.
	if err := Clear(path); err != nil {
		t.Fatalf("Clear first: %v", err)
	}
	if err := Clear(path); err != nil {
		t.Errorf("Clear second (idempotent): %v", err)
	}
}
