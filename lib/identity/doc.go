// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity handles the OS-identity side of the bootstrap: the
// privilege gate, directory ownership, account resolution, account
// mutation, and the final privilege drop.
//
// The central operation is [Reconciler.AlignTo]. Development
// containers bind-mount a source tree owned by whatever uid the host
// user happens to have; for the tests inside the container to write
// build artifacts into that tree, the container-side account must own
// it. Rather than chowning the mounted tree (which would leak
// container ids onto the host), the account is renumbered to match
// the mount: groupmod, usermod, then a re-own of the account's home
// directory.
//
// [DropTo] is the no-return privilege drop used immediately before
// the entrypoint re-executes itself as the aligned account.
package identity
