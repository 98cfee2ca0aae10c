// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

// cubeboot is the container entrypoint for datacube integration
// images. One invocation takes a bind-mounted source tree, an optional
// database volume, and a pre-built Python environment, brings them to
// a runnable state, and replaces itself with the command the container
// was started with:
//
//  1. elevated only: bootstrap the PostgreSQL cluster (idempotent)
//  2. elevated only: align the runner account with the mount owner,
//     drop privileges, and re-exec this same invocation
//  3. write the integration test config artifact into $HOME
//  4. activate the Python environment, install the project, resolve
//     GDAL data, and exec the trailing command
//
// Flags before the first positional argument belong to cubeboot;
// everything from the first positional on is the command to hand off,
// passed through untouched.
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
	"github.com/datacube-foundation/cubeboot/lib/bootstate"
	"github.com/datacube-foundation/cubeboot/lib/bootstrap"
	"github.com/datacube-foundation/cubeboot/lib/identity"
	"github.com/datacube-foundation/cubeboot/lib/integrationconf"
	"github.com/datacube-foundation/cubeboot/lib/pgcluster"
	"github.com/datacube-foundation/cubeboot/lib/process"
	"github.com/datacube-foundation/cubeboot/lib/runtimeenv"
	"github.com/datacube-foundation/cubeboot/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

// options are cubeboot's own command line settings, everything before
// the handed-off command.
type options struct {
	configPath string
	help       bool
	command    []string
}

// parseArgs splits cubeboot's flags from the command to hand off. Flag
// parsing stops at the first non-flag argument; everything from there
// on, flags included, belongs to the command.
func parseArgs(args []string) (*options, *pflag.FlagSet, error) {
	opts := &options{}
	flags := pflag.NewFlagSet("cubeboot", pflag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.StringVar(&opts.configPath, "config", "", "path to YAML config file (default: $CUBEBOOT_CONFIG when set)")
	flags.BoolVarP(&opts.help, "help", "h", false, "show help")
	if err := flags.Parse(args); err != nil {
		return nil, flags, err
	}
	opts.command = flags.Args()
	return opts, flags, nil
}

func run() error {
	// Handle --version before flag parsing to match the other cubeboot
	// binaries. Only the very first argument counts; a later --version
	// belongs to the handed-off command.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("cubeboot")
		return nil
	}

	opts, flags, err := parseArgs(os.Args[1:])
	if err != nil {
		if err == pflag.ErrHelp {
			printHelp(flags)
			return nil
		}
		return err
	}
	if opts.help {
		printHelp(flags)
		return nil
	}

	logger := newLogger()

	boot, err := bootstrap.Snapshot(opts.command)
	if err != nil {
		return err
	}

	// The context environment is authoritative for configuration too:
	// overrides set by an earlier generation survive the re-exec.
	cfg, err := bootcfg.Load(opts.configPath, boot.Env.Get)
	if err != nil {
		return err
	}

	hash, binary, hashErr := version.ComputeSelfHash()
	if hashErr != nil {
		logger.Warn("hashing own binary", "error", hashErr)
	}
	logger.Info("cubeboot starting",
		"version", version.Info(),
		"binary", binary,
		"binary_sha256", hash,
		"euid", boot.EUID,
		"workdir", boot.WorkDir,
		"workdir_owner", boot.OwnerUID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sequencer := &bootstrap.Sequencer{
		Logger:       logger,
		SkipDatabase: cfg.SkipDatabase(),
		StatePath:    bootstate.PathIn(cfg.StateDir),
		StartDatabase: func(ctx context.Context) error {
			return startDatabase(ctx, cfg, boot, logger)
		},
		AlignAccount: (&identity.Reconciler{Account: cfg.Runner, Logger: logger}).AlignTo,
		WriteArtifact: func(home string) error {
			file := integrationconf.File{Hostname: cfg.DBHostname}
			return file.Write(integrationconf.Path(home))
		},
		PrepareEnvironment: func(ctx context.Context, env *bootstrap.Environ) error {
			activator := &runtimeenv.Activator{
				EnvRoot: cfg.EnvRoot,
				WorkDir: boot.WorkDir,
				Logger:  logger,
			}
			return activator.Prepare(ctx, env)
		},
	}

	return sequencer.Run(ctx, boot)
}

// startDatabase runs the idempotent cluster bootstrap as the database
// account. It is only called elevated, and the server tools refuse to
// run as root, so the credential switch is unconditional.
func startDatabase(ctx context.Context, cfg *bootcfg.Config, boot *bootstrap.Context, logger *slog.Logger) error {
	account, err := identity.LookupAccount(cfg.PostgresUser)
	if err != nil {
		return fmt.Errorf("resolving database account %s: %w", cfg.PostgresUser, err)
	}
	cluster := &pgcluster.Cluster{
		DataDir:    cfg.DataDir,
		Role:       cfg.Role,
		Databases:  cfg.Databases(),
		Credential: account.Credential(),
		Env:        boot.Env.Environ(),
		Logger:     logger,
	}
	return cluster.Bootstrap(ctx)
}

// newLogger creates the boot logger. Terminal stderr gets
// human-readable text; a piped or redirected stderr (container logs,
// CI) gets JSON. CUBEBOOT_DEBUG enables debug-level output.
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

func printHelp(flags *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `cubeboot is the container entrypoint for datacube integration images.

It bootstraps the PostgreSQL cluster (when elevated), aligns the
runner account with the owner of the mounted working directory, drops
privileges, writes the integration test configuration, activates the
Python environment, and finally replaces itself with the given
command. Without a command it exits after the bootstrap.

Usage:
  cubeboot [flags] [command ...]

Examples:
  # Boot the container and run the integration tests
  cubeboot pytest tests/

  # Boot only, leaving the database running
  cubeboot

  # Explicit config file
  cubeboot --config /etc/cubeboot.yaml pytest tests/

Flags:
`)
	flags.SetOutput(os.Stderr)
	flags.PrintDefaults()
}
