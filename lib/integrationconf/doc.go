// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

// Package integrationconf renders the .datacube_integration.conf
// artifact the Open Data Cube integration test suite reads from the
// home directory of the account running it.
//
// The artifact carries two connection profiles against the same local
// database: [datacube] with the real "default" index driver, and
// [no_such_driver_env] naming a driver that does not exist, which the
// suite uses to exercise its driver-resolution error paths.
//
// The content is deliberately deterministic: same hostname in, same
// bytes out, every boot. The suite's expectations are brittle INI
// parsing, so nothing here may reorder keys or vary whitespace.
package integrationconf
