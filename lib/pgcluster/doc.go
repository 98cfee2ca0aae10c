// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

// Package pgcluster manages the lifecycle of the PostgreSQL cluster
// that backs the Open Data Cube integration tests.
//
// The package shells out to the standard server tools rather than
// embedding a database: initdb for storage, pg_ctl for the server
// process, psql for existence probes, createuser and createdb for the
// objects the tests expect. When the caller is root, every tool runs
// as the service account via a syscall credential, because the server
// refuses to run as root and the data directory must be owned by the
// account that serves it.
//
// [Cluster.Bootstrap] is idempotent by probing: the initdb marker
// gates initialization, pg_ctl status gates startup, and catalog
// queries gate role and database creation. Re-running it against a
// live cluster performs no destructive operation.
package pgcluster
