// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for cubeboot packages.
//
// [ExecRecorder] is a scripted fake for the exec seams. The library
// packages that shell out to external tools (initdb, pg_ctl, usermod,
// pip, gdal-config) expose Run/Output function fields defaulting to
// real subprocess execution; tests assign the recorder's methods to
// those fields and assert on the recorded argv, working directory,
// environment, and credentials instead of running anything. Results
// are replayed from a script in call order, so a test can make the
// third probe fail while the rest succeed.
//
// [WriteTree] materializes small file trees for fixtures (data
// directory markers, dependency manifests, home directories to chown).
//
// Fixture helpers call t.Fatalf on failure rather than returning
// errors, since test setup failures are not recoverable.
//
// This package has no cubeboot-internal dependencies.
package testutil
