// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

// Package runtimeenv prepares the Python side of the container for the
// handed-off command: virtualenv activation, editable project install,
// and GDAL data resolution.
//
// All work happens against a mutable environment abstraction rather
// than the process environment; the caller materializes the result
// into the final exec. Activation gates the rest of the stage: when
// the activation script is absent or another environment is already
// active, install and GDAL resolution are skipped wholesale.
package runtimeenv
