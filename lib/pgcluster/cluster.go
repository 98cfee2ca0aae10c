// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package pgcluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// markerFile is the file initdb creates in a completed data directory.
// Its presence is the initialization check; initdb writes it last, so
// a crashed init attempt does not count as initialized.
const markerFile = "PG_VERSION"

// Cluster manages one PostgreSQL data directory through the standard
// server tools (initdb, pg_ctl, createuser, createdb, psql). Nothing
// database-shaped is implemented here; this package only decides which
// tool to run, as whom, and with what arguments.
type Cluster struct {
	// DataDir is the cluster storage directory (PGDATA).
	DataDir string

	// BinDir optionally points at the directory holding the server
	// tools. Empty means resolve them from PATH. Debian-family images
	// keep initdb and pg_ctl off PATH under /usr/lib/postgresql/*/bin,
	// so deployments there must set this.
	BinDir string

	// Role is the superuser role ensured at bootstrap.
	Role string

	// Databases are the database names ensured at bootstrap, owned by
	// Role.
	Databases []string

	// Credential, when non-nil, runs every tool as that uid/gid. Set
	// when the caller is root; the server refuses to run as root, and
	// the data directory must belong to the service account anyway.
	Credential *syscall.Credential

	// Env, when non-nil, is the exact environment for every tool.
	// Nil inherits the process environment.
	Env []string

	// Logger receives lifecycle decisions.
	Logger *slog.Logger

	// runCommand and outputCommand override subprocess execution in
	// tests.
	runCommand    func(*exec.Cmd) error
	outputCommand func(*exec.Cmd) ([]byte, error)
}

// LogFile returns the server log path. It lives inside the data
// directory so one bind mount captures storage and logs together.
func (c *Cluster) LogFile() string {
	return filepath.Join(c.DataDir, "pg.log")
}

// Initialized reports whether the data directory holds a completed
// cluster.
func (c *Cluster) Initialized() bool {
	_, err := os.Stat(filepath.Join(c.DataDir, markerFile))
	return err == nil
}

// Init creates the data directory and runs initdb with UTF-8 encoding
// and trust authentication for both local and host connections. The
// generated integration profiles carry no credentials, so the cluster
// must accept its test clients without a password.
func (c *Cluster) Init(ctx context.Context) error {
	if err := os.MkdirAll(c.DataDir, 0700); err != nil {
		return fmt.Errorf("creating data directory %s: %w", c.DataDir, err)
	}
	if c.Credential != nil {
		if err := os.Chown(c.DataDir, int(c.Credential.Uid), int(c.Credential.Gid)); err != nil {
			return fmt.Errorf("chowning data directory %s: %w", c.DataDir, err)
		}
	}

	c.Logger.Info("initializing database cluster", "data_dir", c.DataDir)
	initdb := c.command(ctx, "initdb",
		"-D", c.DataDir,
		"--encoding=UTF8",
		"--auth-host=trust",
		"--auth-local=trust")
	if err := c.run(initdb); err != nil {
		return fmt.Errorf("initdb in %s: %w", c.DataDir, err)
	}
	return nil
}

// Start launches the server and waits for it to accept connections.
func (c *Cluster) Start(ctx context.Context) error {
	c.Logger.Info("starting database server", "data_dir", c.DataDir, "log_file", c.LogFile())
	pgctl := c.command(ctx, "pg_ctl",
		"-D", c.DataDir,
		"-l", c.LogFile(),
		"-w", "start")
	if err := c.run(pgctl); err != nil {
		return fmt.Errorf("pg_ctl start in %s: %w", c.DataDir, err)
	}
	return nil
}

// Stop shuts the server down with the fast method: active connections
// are terminated, committed data is kept.
func (c *Cluster) Stop(ctx context.Context) error {
	c.Logger.Info("stopping database server", "data_dir", c.DataDir)
	pgctl := c.command(ctx, "pg_ctl", "-D", c.DataDir, "-m", "fast", "stop")
	if err := c.run(pgctl); err != nil {
		return fmt.Errorf("pg_ctl stop in %s: %w", c.DataDir, err)
	}
	return nil
}

// Running probes the server with pg_ctl status. Exit code 3 is the
// documented "not running" answer and is not an error; anything else
// non-zero is.
func (c *Cluster) Running(ctx context.Context) (bool, error) {
	pgctl := c.command(ctx, "pg_ctl", "-D", c.DataDir, "status")
	err := c.run(pgctl)
	if err == nil {
		return true, nil
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) && coder.ExitCode() == 3 {
		return false, nil
	}
	return false, fmt.Errorf("pg_ctl status in %s: %w", c.DataDir, err)
}

// tool resolves a server tool name against BinDir, or leaves it to
// PATH resolution when BinDir is unset.
func (c *Cluster) tool(name string) string {
	if c.BinDir == "" {
		return name
	}
	return filepath.Join(c.BinDir, name)
}

// command builds a tool invocation with the cluster's credential and
// environment applied. Credentialed commands run from / so the tool
// never starts in a directory its uid cannot enter.
func (c *Cluster) command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.tool(name), args...)
	if c.Env != nil {
		cmd.Env = c.Env
	}
	if c.Credential != nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{Credential: c.Credential}
		cmd.Dir = "/"
	}
	return cmd
}

func (c *Cluster) run(cmd *exec.Cmd) error {
	if c.runCommand != nil {
		return c.runCommand(cmd)
	}
	return cmd.Run()
}

func (c *Cluster) output(cmd *exec.Cmd) ([]byte, error) {
	if c.outputCommand != nil {
		return c.outputCommand(cmd)
	}
	return cmd.Output()
}
