// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package runtimeenv

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// Environ is the mutable environment the activator works against. The
// boot sequence supplies its context environment; tests supply a fresh
// copy built from literal entries.
type Environ interface {
	Lookup(key string) (string, bool)
	Set(key, value string)
	Unset(key string)
	Environ() []string
	LookPath(name string) (string, error)
}

// Activator prepares one Python virtual environment for the command a
// boot hands off to. Nothing Python-shaped is implemented here; the
// environment's own pip and python binaries do the work.
type Activator struct {
	// EnvRoot is the virtual environment root, the directory holding
	// bin/activate.
	EnvRoot string

	// WorkDir is the project directory, the one holding setup.py in a
	// source checkout.
	WorkDir string

	// Logger receives stage decisions.
	Logger *slog.Logger

	// runCommand and outputCommand override subprocess execution in
	// tests.
	runCommand    func(*exec.Cmd) error
	outputCommand func(*exec.Cmd) ([]byte, error)
}

// ActivationMarker returns the script whose presence marks a usable
// virtual environment.
func (a *Activator) ActivationMarker() string {
	return filepath.Join(a.EnvRoot, "bin", "activate")
}

// Activate applies the environment mutations sourcing bin/activate
// would: VIRTUAL_ENV set to the root, the environment's bin directory
// first on PATH, PYTHONHOME cleared. It reports whether activation
// happened; when the marker is missing or VIRTUAL_ENV already carries
// a value, the environment is left untouched.
func (a *Activator) Activate(env Environ) bool {
	marker := a.ActivationMarker()
	if _, err := os.Stat(marker); err != nil {
		a.Logger.Debug("no activation script, skipping virtualenv activation",
			"path", marker, "error", err)
		return false
	}
	if active, _ := env.Lookup("VIRTUAL_ENV"); active != "" {
		a.Logger.Debug("virtualenv already active, skipping activation",
			"virtual_env", active)
		return false
	}

	binDir := filepath.Join(a.EnvRoot, "bin")
	env.Set("VIRTUAL_ENV", a.EnvRoot)
	if path, _ := env.Lookup("PATH"); path != "" {
		env.Set("PATH", binDir+string(os.PathListSeparator)+path)
	} else {
		env.Set("PATH", binDir)
	}
	env.Unset("PYTHONHOME")

	a.Logger.Info("activated virtualenv", "env_root", a.EnvRoot)
	return true
}

// Prepare is the whole runtime environment stage. Activation gates the
// rest: a boot without a usable virtual environment, or with one
// already active, changes nothing and installs nothing.
func (a *Activator) Prepare(ctx context.Context, env Environ) error {
	if !a.Activate(env) {
		return nil
	}
	if err := a.InstallProject(ctx, env); err != nil {
		return err
	}
	return a.ResolveGDALData(ctx, env)
}

// command builds a tool invocation running in the project directory
// with the context environment.
func (a *Activator) command(ctx context.Context, env Environ, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = a.WorkDir
	cmd.Env = env.Environ()
	return cmd
}

func (a *Activator) run(cmd *exec.Cmd) error {
	if a.runCommand != nil {
		return a.runCommand(cmd)
	}
	return cmd.Run()
}

func (a *Activator) output(cmd *exec.Cmd) ([]byte, error) {
	if a.outputCommand != nil {
		return a.outputCommand(cmd)
	}
	return cmd.Output()
}
