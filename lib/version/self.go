// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ComputeSelfHash returns the SHA256 hex digest and absolute filesystem
// path of the currently running binary. Uses os.Executable() to resolve
// the binary path, which on Linux reads /proc/self/exe and so points at
// the original binary even if it has been replaced on disk since the
// process started. The entrypoint logs the digest in both the elevated
// and unprivileged generations so container logs can correlate the two
// images of one boot.
func ComputeSelfHash() (hash string, binaryPath string, err error) {
	executable, err := os.Executable()
	if err != nil {
		return "", "", fmt.Errorf("resolving own executable path: %w", err)
	}
	digest, err := hashFile(executable)
	if err != nil {
		return "", "", fmt.Errorf("hashing own binary at %s: %w", executable, err)
	}
	return hex.EncodeToString(digest[:]), executable, nil
}

// hashFile computes the SHA256 digest of the file at path. The file is
// streamed through the hash function in chunks (via io.Copy) to keep
// memory usage constant regardless of file size.
func hashFile(path string) ([32]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return [32]byte{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return [32]byte{}, fmt.Errorf("hashing %s: %w", path, err)
	}

	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}
