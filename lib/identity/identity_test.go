// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"
)

func TestElevated(t *testing.T) {
	if !Elevated(0) {
		t.Error("Elevated(0) = false, want true")
	}
	if Elevated(1000) {
		t.Error("Elevated(1000) = true, want false")
	}
	if Elevated(-1) {
		t.Error("Elevated(-1) = true, want false")
	}
}

func TestDirectoryOwner(t *testing.T) {
	directory := t.TempDir()

	uid, gid, err := DirectoryOwner(directory)
	if err != nil {
		t.Fatalf("DirectoryOwner: %v", err)
	}
	if uid != os.Getuid() {
		t.Errorf("uid = %d, want %d", uid, os.Getuid())
	}
	if gid != os.Getgid() {
		t.Errorf("gid = %d, want %d", gid, os.Getgid())
	}
}

func TestDirectoryOwnerMissingPath(t *testing.T) {
	_, _, err := DirectoryOwner(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("DirectoryOwner should fail for a missing path")
	}
}

func TestLookupAccountCurrent(t *testing.T) {
	current, err := user.Current()
	if err != nil {
		t.Fatalf("user.Current: %v", err)
	}

	account, err := LookupAccount(current.Username)
	if err != nil {
		t.Fatalf("LookupAccount(%s): %v", current.Username, err)
	}

	if account.Name != current.Username {
		t.Errorf("Name = %q, want %q", account.Name, current.Username)
	}
	if account.UID != os.Getuid() {
		t.Errorf("UID = %d, want %d", account.UID, os.Getuid())
	}
	if account.Home == "" {
		t.Error("Home is empty")
	}
	if account.Group == "" {
		t.Error("Group is empty")
	}
}

func TestLookupAccountNonexistent(t *testing.T) {
	_, err := LookupAccount("cubeboot-no-such-account")
	if err == nil {
		t.Fatal("LookupAccount should fail for a nonexistent account")
	}
}

func TestCredential(t *testing.T) {
	account := Account{Name: "postgres", UID: 70, GID: 71}

	credential := account.Credential()
	if credential.Uid != 70 {
		t.Errorf("Uid = %d, want 70", credential.Uid)
	}
	if credential.Gid != 71 {
		t.Errorf("Gid = %d, want 71", credential.Gid)
	}
	if !credential.NoSetGroups {
		t.Error("NoSetGroups = false, want true")
	}
}
