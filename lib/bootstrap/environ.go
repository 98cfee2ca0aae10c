// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Environ is an ordered, mutable copy of a process environment. The
// stages mutate it instead of the real environment, and the final exec
// materializes it for the child, so every environment effect of a boot
// is visible in one place and testable without touching the process.
//
// First-seen key order is preserved: Set on an existing key updates
// the value in place, new keys append. The child therefore sees the
// environment in a familiar layout rather than alphabetized.
type Environ struct {
	keys   []string
	values map[string]string
}

// NewEnviron builds an Environ from "KEY=VALUE" entries, typically
// os.Environ(). Entries without a '=' are ignored. When a key appears
// more than once, the later value wins but the key keeps its first
// position, matching what libc getenv would have returned.
func NewEnviron(entries []string) *Environ {
	environ := &Environ{values: make(map[string]string, len(entries))}
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		environ.Set(key, value)
	}
	return environ
}

// Lookup returns the value for key and whether it is present.
func (e *Environ) Lookup(key string) (string, bool) {
	value, ok := e.values[key]
	return value, ok
}

// Get returns the value for key, or "" when absent. This matches the
// os.Getenv contract, so it can be handed to config loading as the
// getenv function.
func (e *Environ) Get(key string) string {
	return e.values[key]
}

// Set stores value under key. An existing key keeps its position.
func (e *Environ) Set(key, value string) {
	if _, exists := e.values[key]; !exists {
		e.keys = append(e.keys, key)
	}
	e.values[key] = value
}

// Unset removes key. Absent keys are a no-op.
func (e *Environ) Unset(key string) {
	if _, exists := e.values[key]; !exists {
		return
	}
	delete(e.values, key)
	for i, existing := range e.keys {
		if existing == key {
			e.keys = append(e.keys[:i], e.keys[i+1:]...)
			break
		}
	}
}

// Environ materializes the environment as "KEY=VALUE" entries in
// first-seen key order, suitable for exec.Cmd.Env or syscall.Exec.
func (e *Environ) Environ() []string {
	entries := make([]string, 0, len(e.keys))
	for _, key := range e.keys {
		entries = append(entries, key+"="+e.values[key])
	}
	return entries
}

// Clone returns an independent deep copy.
func (e *Environ) Clone() *Environ {
	clone := &Environ{
		keys:   append([]string(nil), e.keys...),
		values: make(map[string]string, len(e.values)),
	}
	for key, value := range e.values {
		clone.values[key] = value
	}
	return clone
}

// LookPath resolves name to an executable path using this
// environment's PATH, not the process's. The distinction matters after
// activation: the virtual environment's bin directory exists only in
// the context environment, and the handed-off command must resolve
// against it.
//
// A name containing a path separator is not searched; it is checked
// directly and returned as given. An empty PATH element means the
// current directory, as it does for execvp.
func (e *Environ) LookPath(name string) (string, error) {
	if strings.ContainsRune(name, os.PathSeparator) {
		if err := checkExecutable(name); err != nil {
			return "", err
		}
		return name, nil
	}

	for _, directory := range filepath.SplitList(e.Get("PATH")) {
		if directory == "" {
			directory = "."
		}
		candidate := filepath.Join(directory, name)
		if err := checkExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s not found in PATH", name)
}

// checkExecutable verifies that path names a regular, executable file.
func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file (mode %s)", path, info.Mode())
	}
	if info.Mode()&0111 == 0 {
		return fmt.Errorf("%s is not executable (mode %s)", path, info.Mode())
	}
	return nil
}
