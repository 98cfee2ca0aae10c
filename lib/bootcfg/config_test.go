// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package bootcfg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// mapGetenv builds a getenv function backed by a fixed map. Absent
// keys return "", like os.Getenv.
func mapGetenv(values map[string]string) func(string) string {
	return func(name string) string {
		return values[name]
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", mapGetenv(nil))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DataDir != "/srv/postgresql" {
		t.Errorf("DataDir = %q, want /srv/postgresql", cfg.DataDir)
	}
	if cfg.Role != "odc" {
		t.Errorf("Role = %q, want odc", cfg.Role)
	}
	if cfg.SkipDB != "no" {
		t.Errorf("SkipDB = %q, want no", cfg.SkipDB)
	}
	if cfg.EnvRoot != "/env" {
		t.Errorf("EnvRoot = %q, want /env", cfg.EnvRoot)
	}
	if cfg.Runner != "runner" {
		t.Errorf("Runner = %q, want runner", cfg.Runner)
	}
	if cfg.PostgresUser != "postgres" {
		t.Errorf("PostgresUser = %q, want postgres", cfg.PostgresUser)
	}
	if cfg.DBHostname != "localhost" {
		t.Errorf("DBHostname = %q, want localhost", cfg.DBHostname)
	}
	if cfg.StateDir != "/run/cubeboot" {
		t.Errorf("StateDir = %q, want /run/cubeboot", cfg.StateDir)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	cfg, err := Load("", mapGetenv(map[string]string{
		"PGDATA":                 "/data/pg",
		"DBUSER":                 "datacube",
		"SKIP_DB":                "yes",
		"PYENV":                  "/opt/venv",
		"CUBEBOOT_RUNNER":        "worker",
		"CUBEBOOT_POSTGRES_USER": "pgserver",
		"DB_HOSTNAME":            "db.internal",
		"CUBEBOOT_STATE_DIR":     "/var/run/cubeboot",
	}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DataDir != "/data/pg" {
		t.Errorf("DataDir = %q, want /data/pg", cfg.DataDir)
	}
	if cfg.Role != "datacube" {
		t.Errorf("Role = %q, want datacube", cfg.Role)
	}
	if cfg.SkipDB != "yes" {
		t.Errorf("SkipDB = %q, want yes", cfg.SkipDB)
	}
	if cfg.EnvRoot != "/opt/venv" {
		t.Errorf("EnvRoot = %q, want /opt/venv", cfg.EnvRoot)
	}
	if cfg.Runner != "worker" {
		t.Errorf("Runner = %q, want worker", cfg.Runner)
	}
	if cfg.PostgresUser != "pgserver" {
		t.Errorf("PostgresUser = %q, want pgserver", cfg.PostgresUser)
	}
	if cfg.DBHostname != "db.internal" {
		t.Errorf("DBHostname = %q, want db.internal", cfg.DBHostname)
	}
	if cfg.StateDir != "/var/run/cubeboot" {
		t.Errorf("StateDir = %q, want /var/run/cubeboot", cfg.StateDir)
	}
}

func TestLoadEmptyEnvironmentValueIgnored(t *testing.T) {
	cfg, err := Load("", mapGetenv(map[string]string{"PGDATA": ""}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/srv/postgresql" {
		t.Errorf("DataDir = %q, empty env var should not override the default", cfg.DataDir)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cubeboot.yaml")
	content := "data_dir: /mnt/pgdata\nrole: integration\ndb_hostname: pg.test\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, mapGetenv(nil))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DataDir != "/mnt/pgdata" {
		t.Errorf("DataDir = %q, want /mnt/pgdata", cfg.DataDir)
	}
	if cfg.Role != "integration" {
		t.Errorf("Role = %q, want integration", cfg.Role)
	}
	if cfg.DBHostname != "pg.test" {
		t.Errorf("DBHostname = %q, want pg.test", cfg.DBHostname)
	}
	// Settings the file does not mention keep their defaults.
	if cfg.Runner != "runner" {
		t.Errorf("Runner = %q, want default runner", cfg.Runner)
	}
}

func TestLoadEnvironmentBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cubeboot.yaml")
	if err := os.WriteFile(path, []byte("data_dir: /from/file\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, mapGetenv(map[string]string{"PGDATA": "/from/env"}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/from/env" {
		t.Errorf("DataDir = %q, environment must override the file", cfg.DataDir)
	}
}

func TestLoadConfigFileFromEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cubeboot.yaml")
	if err := os.WriteFile(path, []byte("role: from-env-file\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("", mapGetenv(map[string]string{"CUBEBOOT_CONFIG": path}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Role != "from-env-file" {
		t.Errorf("Role = %q, want from-env-file", cfg.Role)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.yaml")
	_, err := Load(path, mapGetenv(nil))
	if err == nil {
		t.Fatal("Load should fail for an explicitly named missing file")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error %q should mention the file path", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cubeboot.yaml")
	if err := os.WriteFile(path, []byte("data_dir: [unclosed\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path, mapGetenv(nil))
	if err == nil {
		t.Fatal("Load should fail for invalid YAML")
	}
}

func TestLoadRejectsRelativePaths(t *testing.T) {
	_, err := Load("", mapGetenv(map[string]string{"PGDATA": "relative/path"}))
	if err == nil {
		t.Fatal("Load should reject a relative data directory")
	}
}

func TestSkipDatabase(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"no", false},
		{"yes", true},
		{"1", true},
		{"true", true},
		{"NO", true}, // exact match only, case included
	}
	for _, c := range cases {
		cfg := Default()
		cfg.SkipDB = c.value
		if got := cfg.SkipDatabase(); got != c.want {
			t.Errorf("SkipDatabase with %q = %v, want %v", c.value, got, c.want)
		}
	}
}

func TestDatabases(t *testing.T) {
	cfg := Default()
	cfg.Role = "odc"

	got := cfg.Databases()
	want := []string{"odc", "datacube", "agdcintegration"}
	if len(got) != len(want) {
		t.Fatalf("Databases() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Databases()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestValidateMissingRole(t *testing.T) {
	cfg := Default()
	cfg.Role = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate should reject an empty role")
	}
	if !strings.Contains(err.Error(), "role") {
		t.Errorf("error %q should mention role", err)
	}
}
