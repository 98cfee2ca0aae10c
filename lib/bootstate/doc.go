// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

// Package bootstate provides atomic state file operations for tracking
// the entrypoint's privilege-drop transition across exec().
//
// The elevated generation of the entrypoint writes a [State] describing
// the drop it is about to perform, then replaces its own process image
// with an unprivileged invocation of the same binary. The next
// generation reads the state on startup to confirm the transition:
//
//  1. Before exec(): [Write] the state with the target uid/gid, the
//     original argv, and the binary hash.
//  2. exec() self as the target account.
//  3. The new generation reads the state via [Check], verifies argv
//     and binary continuity, logs the handoff, and [Clear]s the file.
//  4. If the new generation finds the state but is still elevated, the
//     drop did not take effect; the sequencer refuses to reconcile
//     again, which structurally bounds the chain at one re-exec.
//
// The state file is written atomically (write to temporary file,
// fsync, rename, parent directory sync) so readers never see a partial
// state. Staleness checking via [Check] prevents acting on files left
// behind by an interrupted boot.
//
// Encoding is deterministic CBOR via lib/codec: both generations run
// the same binary, and identical state must mean identical bytes.
package bootstate
