// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the standard CBOR encoding configuration for
// cubeboot's on-disk state files.
//
// The boot-state file crosses an exec() boundary: the elevated
// generation of the entrypoint writes it, the unprivileged generation
// reads it. Both sides must agree byte-for-byte on what a given state
// looks like, so the encoder uses Core Deterministic Encoding (RFC
// 8949 §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Types serialized through this package carry `cbor` struct tags; they
// are never marshaled to JSON.
package codec
