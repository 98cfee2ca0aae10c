// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

// Package bootcfg provides configuration loading for the cubeboot
// binaries.
//
// Configuration is layered, in ascending precedence:
//
//  1. Compiled defaults ([Default]), matching the container images
//     this entrypoint ships in.
//  2. An optional YAML file named by the --config flag or the
//     CUBEBOOT_CONFIG environment variable. No search paths, no
//     discovery.
//  3. Environment variables, one per setting.
//
// Environment variables win because a container entrypoint is
// configured through its environment: `docker run -e SKIP_DB=yes` must
// work without editing files baked into the image. The historically
// established variable names (PGDATA, DBUSER, SKIP_DB, PYENV) are
// preserved; settings introduced by this implementation use the
// CUBEBOOT_ prefix.
//
// The environment is injected as a getenv function rather than read
// from the process, so the sequencer can resolve configuration against
// its execution context snapshot.
package bootcfg
