// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

// cubeboot-db manages the integration PostgreSQL cluster outside the
// boot sequence: bring it up on a fresh volume, stop it before a
// snapshot, or probe it from a health check.
//
// Usage:
//
//	cubeboot-db init [flags]
//	cubeboot-db start [flags]
//	cubeboot-db stop [flags]
//	cubeboot-db status [flags]
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/datacube-foundation/cubeboot/lib/bootcfg"
	"github.com/datacube-foundation/cubeboot/lib/identity"
	"github.com/datacube-foundation/cubeboot/lib/pgcluster"
	"github.com/datacube-foundation/cubeboot/lib/process"
	"github.com/datacube-foundation/cubeboot/lib/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	logger := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "init":
		err = initCmd(ctx, args, logger)
	case "start":
		err = startCmd(ctx, args, logger)
	case "stop":
		err = stopCmd(ctx, args, logger)
	case "status":
		err = statusCmd(ctx, args, logger)
	case "version", "--version", "-v":
		version.Print("cubeboot-db")
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if code, ok := process.IsExitError(err); ok {
			os.Exit(code)
		}
		process.Fatal(err)
	}
}

func printUsage() {
	fmt.Print(`cubeboot-db - Manage the datacube integration PostgreSQL cluster

USAGE
    cubeboot-db <command> [flags]

COMMANDS
    init      Create the cluster data directory if it does not exist
    start     Initialize, start, and provision the cluster (idempotent)
    stop      Stop a running cluster
    status    Print "running" or "stopped"; exits 3 when stopped
    version   Show version

EXAMPLES
    # Bring the cluster up with config defaults
    cubeboot-db start

    # Debian images keep the server tools off PATH
    cubeboot-db start --bin-dir /usr/lib/postgresql/16/bin

    # Script-friendly liveness probe
    cubeboot-db status && echo up

ENVIRONMENT
    CUBEBOOT_CONFIG   Path to the YAML config file
    PGDATA            Cluster data directory override
    DBUSER            Superuser role override
    CUBEBOOT_DEBUG    Enable debug logging
`)
}

// clusterOptions are the flags shared by every subcommand. Flags
// override the config file, which overrides the environment defaults.
type clusterOptions struct {
	configPath   string
	dataDir      string
	binDir       string
	role         string
	postgresUser string
}

func clusterFlags(flags *pflag.FlagSet) *clusterOptions {
	opts := &clusterOptions{}
	flags.StringVar(&opts.configPath, "config", "", "path to YAML config file (default: $CUBEBOOT_CONFIG when set)")
	flags.StringVar(&opts.dataDir, "data-dir", "", "cluster data directory (overrides config)")
	flags.StringVar(&opts.binDir, "bin-dir", "", "directory holding the PostgreSQL server tools (default: resolve from PATH)")
	flags.StringVar(&opts.role, "role", "", "superuser role to ensure (overrides config)")
	flags.StringVar(&opts.postgresUser, "postgres-user", "", "system account that owns the cluster (overrides config)")
	return opts
}

// cluster builds the cluster handle from config plus flag overrides.
// When called as root the tools run as the cluster account, since the
// server refuses to start as root. An unprivileged caller runs them as
// itself.
func (o *clusterOptions) cluster(logger *slog.Logger) (*pgcluster.Cluster, error) {
	cfg, err := bootcfg.Load(o.configPath, os.Getenv)
	if err != nil {
		return nil, err
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if o.role != "" {
		cfg.Role = o.role
	}
	if o.postgresUser != "" {
		cfg.PostgresUser = o.postgresUser
	}

	cluster := &pgcluster.Cluster{
		DataDir:   cfg.DataDir,
		BinDir:    o.binDir,
		Role:      cfg.Role,
		Databases: cfg.Databases(),
		Logger:    logger,
	}
	if os.Geteuid() == 0 {
		account, err := identity.LookupAccount(cfg.PostgresUser)
		if err != nil {
			return nil, fmt.Errorf("resolving database account %s: %w", cfg.PostgresUser, err)
		}
		cluster.Credential = account.Credential()
	}
	return cluster, nil
}

// initCmd creates the cluster data directory without starting the
// server.
func initCmd(ctx context.Context, args []string, logger *slog.Logger) error {
	flags := pflag.NewFlagSet("init", pflag.ContinueOnError)
	opts := clusterFlags(flags)
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	cluster, err := opts.cluster(logger)
	if err != nil {
		return err
	}
	if cluster.Initialized() {
		logger.Info("cluster already initialized", "data_dir", cluster.DataDir)
		return nil
	}
	return cluster.Init(ctx)
}

// startCmd runs the same idempotent bootstrap the entrypoint runs:
// init if needed, start if stopped, ensure the role and databases.
func startCmd(ctx context.Context, args []string, logger *slog.Logger) error {
	flags := pflag.NewFlagSet("start", pflag.ContinueOnError)
	opts := clusterFlags(flags)
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	cluster, err := opts.cluster(logger)
	if err != nil {
		return err
	}
	return cluster.Bootstrap(ctx)
}

func stopCmd(ctx context.Context, args []string, logger *slog.Logger) error {
	flags := pflag.NewFlagSet("stop", pflag.ContinueOnError)
	opts := clusterFlags(flags)
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	cluster, err := opts.cluster(logger)
	if err != nil {
		return err
	}
	running, err := cluster.Running(ctx)
	if err != nil {
		return err
	}
	if !running {
		logger.Info("database is not running", "data_dir", cluster.DataDir)
		return nil
	}
	return cluster.Stop(ctx)
}

// statusCmd prints the cluster state to stdout and exits 3 when the
// server is stopped, matching the pg_ctl status convention.
func statusCmd(ctx context.Context, args []string, logger *slog.Logger) error {
	flags := pflag.NewFlagSet("status", pflag.ContinueOnError)
	opts := clusterFlags(flags)
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	cluster, err := opts.cluster(logger)
	if err != nil {
		return err
	}
	running, err := cluster.Running(ctx)
	if err != nil {
		return err
	}
	if !running {
		fmt.Println("stopped")
		return &process.ExitError{Code: 3}
	}
	fmt.Println("running")
	return nil
}

// newLogger matches the cubeboot entrypoint logger: text on a
// terminal, JSON otherwise, debug level via CUBEBOOT_DEBUG.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("CUBEBOOT_DEBUG") != "" {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}
