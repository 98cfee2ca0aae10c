// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package runtimeenv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// rasterioProbe prints the install directory of the environment's
// rasterio package, which bundles its own GDAL data in wheel builds.
const rasterioProbe = "import rasterio; print(rasterio.__path__[0])"

// ResolveGDALData points GDAL_DATA at a usable data directory and sets
// it in the environment. An already-set value wins untouched. The
// rasterio wheel's bundled copy is preferred; gdal-config is the
// fallback and the only fatal step, because reaching it means the
// stack has no usable data directory anywhere else.
func (a *Activator) ResolveGDALData(ctx context.Context, env Environ) error {
	if existing, _ := env.Lookup("GDAL_DATA"); existing != "" {
		a.Logger.Debug("GDAL_DATA already set", "gdal_data", existing)
		return nil
	}

	if dir, ok := a.rasterioData(ctx, env); ok {
		env.Set("GDAL_DATA", dir)
		a.Logger.Info("using rasterio bundled GDAL data", "gdal_data", dir)
		return nil
	}

	config, err := env.LookPath("gdal-config")
	if err != nil {
		return fmt.Errorf("locating gdal-config: %w", err)
	}
	out, err := a.output(a.command(ctx, env, config, "--datadir"))
	if err != nil {
		return fmt.Errorf("gdal-config --datadir: %w", err)
	}
	dir := strings.TrimSpace(string(out))
	env.Set("GDAL_DATA", dir)
	a.Logger.Info("using gdal-config data directory", "gdal_data", dir)
	return nil
}

// rasterioData probes the environment's rasterio for its bundled
// gdal_data directory. Every failure is a soft miss: a missing module,
// a broken python, or a wheel without bundled data all fall through to
// the gdal-config path.
func (a *Activator) rasterioData(ctx context.Context, env Environ) (string, bool) {
	python := filepath.Join(a.EnvRoot, "bin", "python")
	out, err := a.output(a.command(ctx, env, python, "-c", rasterioProbe))
	if err != nil {
		a.Logger.Debug("rasterio probe failed", "error", err)
		return "", false
	}

	candidate := filepath.Join(strings.TrimSpace(string(out)), "gdal_data")
	info, err := os.Stat(candidate)
	if err != nil || !info.IsDir() {
		a.Logger.Debug("rasterio has no bundled gdal_data", "path", candidate)
		return "", false
	}
	return candidate, true
}
