// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

// Package bootstrap drives the container entrypoint's boot sequence:
// an explicit state machine over four strictly ordered stages.
//
//  1. Privilege gate: elevated iff the effective uid is 0.
//  2. Infrastructure: elevated-only idempotent database bootstrap.
//     Failures are warned, never fatal; the database is a convenience
//     for integration tests, not a dependency of the boot.
//  3. Identity reconciliation: elevated-only. The runner account is
//     renumbered to the owner of the mounted working directory, then
//     the process drops privileges and replaces its own image with the
//     same invocation. A root-owned working directory is the escape
//     hatch: warn and continue as root instead.
//  4. Environment: write the integration config artifact, activate the
//     Python environment, resolve GDAL data, and exec the trailing
//     command (or return cleanly when none was given).
//
// The [Sequencer] never reads ambient process state during a run.
// Everything it consults lives in a [Context] built once by [Snapshot]:
// process identity, working directory owner, and a mutable copy of the
// environment ([Environ]) that accumulates stage mutations and becomes
// the exec'd child's environment. Stage collaborators are injected as
// function fields, so the whole machine is testable without
// privileges, a database, or a real exec.
//
// Re-exec termination is structural, not conventional: the reconciler
// runs only behind the elevated gate, the re-exec'd image is
// unprivileged by construction, and a boot-state file written across
// the exec boundary (lib/bootstate) lets the next generation verify
// the drop happened, or refuse to reconcile again if it did not. At
// most one re-exec per invocation chain.
//
// Failure handling is an explicit per-call-site [Policy] (ignore,
// warn, abort) rather than blanket error suppression; the one mandated
// broad swallow is the database stage, which maps every failure to a
// single warning.
package bootstrap
