// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package runtimeenv

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// extrasSpec is the editable-install target with every extras group
// the integration suite pulls in.
const extrasSpec = ".[test,cf,celery,s3,performance,distributed]"

// failDriversDir is the test-only package of deliberately broken index
// drivers, relative to the project directory.
const failDriversDir = "tests/drivers/fail_drivers"

// InstallProject installs the project tree into the environment in
// editable mode with the full extras set, then the failing-driver test
// package. Either install is skipped when its manifest is absent; a
// pip failure is fatal.
func (a *Activator) InstallProject(ctx context.Context, env Environ) error {
	pip := filepath.Join(a.EnvRoot, "bin", "pip")

	if _, err := os.Stat(filepath.Join(a.WorkDir, "setup.py")); err != nil {
		a.Logger.Debug("no setup.py, skipping project install", "work_dir", a.WorkDir)
	} else {
		a.Logger.Info("installing project in editable mode",
			"work_dir", a.WorkDir, "extras", extrasSpec)
		if err := a.run(a.installCommand(ctx, env, pip, extrasSpec)); err != nil {
			return fmt.Errorf("pip install %s: %w", extrasSpec, err)
		}
	}

	target := "./" + failDriversDir
	if _, err := os.Stat(filepath.Join(a.WorkDir, failDriversDir)); err != nil {
		a.Logger.Debug("no failing-driver package, skipping", "work_dir", a.WorkDir)
		return nil
	}
	a.Logger.Info("installing failing-driver test package", "target", target)
	if err := a.run(a.installCommand(ctx, env, pip, target)); err != nil {
		return fmt.Errorf("pip install %s: %w", target, err)
	}
	return nil
}

// installCommand builds a pip editable install with its output on the
// boot's own streams; install progress is part of the boot log.
func (a *Activator) installCommand(ctx context.Context, env Environ, pip, target string) *exec.Cmd {
	cmd := a.command(ctx, env, pip, "install", "-e", target)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}
