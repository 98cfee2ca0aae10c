// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package pgcluster

import (
	"context"
	"fmt"
	"strings"
)

// Bootstrap brings the cluster to the state the integration tests
// expect: initialized storage, a running server, the superuser role,
// and every configured database. Each step is probed before it acts,
// so a second bootstrap against the same data directory changes
// nothing and fails nothing.
func (c *Cluster) Bootstrap(ctx context.Context) error {
	if c.Initialized() {
		c.Logger.Debug("database cluster already initialized", "data_dir", c.DataDir)
	} else {
		if err := c.Init(ctx); err != nil {
			return err
		}
	}

	running, err := c.Running(ctx)
	if err != nil {
		return err
	}
	if running {
		c.Logger.Debug("database server already running", "data_dir", c.DataDir)
	} else {
		if err := c.Start(ctx); err != nil {
			return err
		}
	}

	if err := c.EnsureRole(ctx, c.Role); err != nil {
		return err
	}
	for _, name := range c.Databases {
		if err := c.EnsureDatabase(ctx, name, c.Role); err != nil {
			return err
		}
	}
	return nil
}

// EnsureRole creates a superuser role unless it already exists.
func (c *Cluster) EnsureRole(ctx context.Context, role string) error {
	exists, err := c.rowExists(ctx,
		fmt.Sprintf("SELECT 1 FROM pg_roles WHERE rolname = %s", sqlLiteral(role)))
	if err != nil {
		return fmt.Errorf("probing role %s: %w", role, err)
	}
	if exists {
		c.Logger.Debug("role already exists", "role", role)
		return nil
	}

	c.Logger.Info("creating superuser role", "role", role)
	createuser := c.command(ctx, "createuser", "--superuser", role)
	if err := c.run(createuser); err != nil {
		return fmt.Errorf("creating role %s: %w", role, err)
	}
	return nil
}

// EnsureDatabase creates a database owned by owner unless it already
// exists.
func (c *Cluster) EnsureDatabase(ctx context.Context, name, owner string) error {
	exists, err := c.rowExists(ctx,
		fmt.Sprintf("SELECT 1 FROM pg_database WHERE datname = %s", sqlLiteral(name)))
	if err != nil {
		return fmt.Errorf("probing database %s: %w", name, err)
	}
	if exists {
		c.Logger.Debug("database already exists", "database", name)
		return nil
	}

	c.Logger.Info("creating database", "database", name, "owner", owner)
	createdb := c.command(ctx, "createdb", "-O", owner, name)
	if err := c.run(createdb); err != nil {
		return fmt.Errorf("creating database %s: %w", name, err)
	}
	return nil
}

// rowExists runs a single-value probe query against the maintenance
// database and reports whether it returned a row. -X skips psqlrc, -t
// -A strip headers and alignment so the answer is exactly "1\n" or
// empty.
func (c *Cluster) rowExists(ctx context.Context, query string) (bool, error) {
	psql := c.command(ctx, "psql", "-X", "-t", "-A", "-c", query, "postgres")
	out, err := c.output(psql)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(out)) == "1", nil
}

// sqlLiteral single-quotes s for use as a SQL string literal.
func sqlLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
