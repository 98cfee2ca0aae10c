// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers shared by the
// cubeboot binaries. These functions centralize the raw I/O and exit
// patterns that exist before or after the structured logger:
//
//   - Fatal error reporting to stderr when the logger may not be
//     initialized (pre-logger).
//   - Propagating a specific exit code from run() to main() without
//     calling os.Exit deep inside library code (ExitError).
//
// All other output in the binaries goes through log/slog.
package process
