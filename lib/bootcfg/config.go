// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package bootcfg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the bootstrap sequence. All fields are
// strings: the values come from environment variables and land in
// command lines and config artifacts, so there is nothing to gain from
// parsing them into richer types at this layer.
type Config struct {
	// DataDir is the database cluster storage directory.
	// Default: /srv/postgresql. Env: PGDATA.
	DataDir string `yaml:"data_dir"`

	// Role is the database superuser role ensured at bootstrap. A
	// database of the same name is created alongside the fixed
	// integration databases. Default: odc. Env: DBUSER.
	Role string `yaml:"role"`

	// SkipDB controls the database stage. The stage runs only when the
	// value is exactly "no"; any other value disables it. Kept as the
	// raw string because the contract is string equality, not boolean
	// parsing. Default: no. Env: SKIP_DB.
	SkipDB string `yaml:"skip_db"`

	// EnvRoot is the Python virtual environment root probed for an
	// activation marker. Default: /env. Env: PYENV.
	EnvRoot string `yaml:"env_root"`

	// Runner is the unprivileged account whose uid/gid are aligned
	// with the mounted working directory before the privilege drop.
	// Default: runner. Env: CUBEBOOT_RUNNER.
	Runner string `yaml:"runner"`

	// PostgresUser is the OS account the database server and its
	// administrative tools run as. Default: postgres.
	// Env: CUBEBOOT_POSTGRES_USER.
	PostgresUser string `yaml:"postgres_user"`

	// DBHostname is the hostname written into the generated
	// integration config profiles. Default: localhost.
	// Env: DB_HOSTNAME.
	DBHostname string `yaml:"db_hostname"`

	// StateDir is where the boot-state file lives across the re-exec
	// boundary. Default: /run/cubeboot. Env: CUBEBOOT_STATE_DIR.
	StateDir string `yaml:"state_dir"`
}

// Default returns the compiled-in defaults. These match the container
// images this entrypoint ships in; a config file or environment
// variables adjust them per deployment.
func Default() *Config {
	return &Config{
		DataDir:      "/srv/postgresql",
		Role:         "odc",
		SkipDB:       "no",
		EnvRoot:      "/env",
		Runner:       "runner",
		PostgresUser: "postgres",
		DBHostname:   "localhost",
		StateDir:     "/run/cubeboot",
	}
}

// Load assembles the effective configuration: defaults, then an
// optional YAML file, then environment variables (highest precedence).
//
// The file is taken from path when non-empty, else from the
// CUBEBOOT_CONFIG environment variable, else no file is read. There
// are no search paths or discovery; an explicitly named file that
// cannot be read is an error, an unnamed one is simply absent.
//
// getenv is injected rather than read from the process so the caller
// decides which environment is authoritative (the sequencer passes its
// execution context's environment).
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getenv("CUBEBOOT_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.applyEnvironment(getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvironment overlays environment variables onto the config.
// Empty values leave the existing setting untouched, so an empty
// variable cannot blank out a default.
func (c *Config) applyEnvironment(getenv func(string) string) {
	for _, override := range []struct {
		name  string
		field *string
	}{
		{"PGDATA", &c.DataDir},
		{"DBUSER", &c.Role},
		{"SKIP_DB", &c.SkipDB},
		{"PYENV", &c.EnvRoot},
		{"CUBEBOOT_RUNNER", &c.Runner},
		{"CUBEBOOT_POSTGRES_USER", &c.PostgresUser},
		{"DB_HOSTNAME", &c.DBHostname},
		{"CUBEBOOT_STATE_DIR", &c.StateDir},
	} {
		if value := getenv(override.name); value != "" {
			*override.field = value
		}
	}
}

// SkipDatabase reports whether the database stage is disabled. The
// stage runs only for the exact value "no"; everything else, including
// typos, skips it. Skipping on garbage is the safe direction: the
// integration tests notice a missing database immediately, while a
// half-bootstrapped cluster can corrupt a mounted data directory.
func (c *Config) SkipDatabase() bool {
	return c.SkipDB != "no"
}

// Databases returns the database names ensured at bootstrap: one named
// after the role, plus the two fixed integration test databases.
func (c *Config) Databases() []string {
	return []string{c.Role, "datacube", "agdcintegration"}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("data_dir is required"))
	} else if !filepath.IsAbs(c.DataDir) {
		errs = append(errs, fmt.Errorf("data_dir must be absolute, got %q", c.DataDir))
	}

	if c.StateDir == "" {
		errs = append(errs, fmt.Errorf("state_dir is required"))
	} else if !filepath.IsAbs(c.StateDir) {
		errs = append(errs, fmt.Errorf("state_dir must be absolute, got %q", c.StateDir))
	}

	if c.EnvRoot == "" {
		errs = append(errs, fmt.Errorf("env_root is required"))
	} else if !filepath.IsAbs(c.EnvRoot) {
		errs = append(errs, fmt.Errorf("env_root must be absolute, got %q", c.EnvRoot))
	}

	if c.Role == "" {
		errs = append(errs, fmt.Errorf("role is required"))
	}
	if c.Runner == "" {
		errs = append(errs, fmt.Errorf("runner is required"))
	}
	if c.PostgresUser == "" {
		errs = append(errs, fmt.Errorf("postgres_user is required"))
	}
	if c.DBHostname == "" {
		errs = append(errs, fmt.Errorf("db_hostname is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
