// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteTree materializes a file tree under root. Keys are
// slash-separated relative paths, values are file contents. Parent
// directories are created as needed. A key ending in "/" creates an
// empty directory instead of a file.
//
// Fails the test on any filesystem error, since fixture setup failures
// are not recoverable.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if len(name) > 0 && name[len(name)-1] == '/' {
			if err := os.MkdirAll(path, 0755); err != nil {
				t.Fatalf("creating fixture directory %s: %v", path, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("creating fixture parent for %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("writing fixture file %s: %v", path, err)
		}
	}
}
