// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package runtimeenv

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/datacube-foundation/cubeboot/lib/bootstrap"
	"github.com/datacube-foundation/cubeboot/lib/testutil"
)

func TestInstallProject(t *testing.T) {
	recorder := &testutil.ExecRecorder{}
	a := testActivator(t, recorder)
	testutil.WriteTree(t, a.WorkDir, map[string]string{
		"setup.py":                    "from setuptools import setup\nsetup()\n",
		"tests/drivers/fail_drivers/": "",
	})
	env := bootstrap.NewEnviron([]string{"PATH=/usr/bin", "VIRTUAL_ENV=/env"})

	if err := a.InstallProject(context.Background(), env); err != nil {
		t.Fatalf("InstallProject: %v", err)
	}

	pip := filepath.Join(a.EnvRoot, "bin", "pip")
	want := [][]string{
		{pip, "install", "-e", ".[test,cf,celery,s3,performance,distributed]"},
		{pip, "install", "-e", "./tests/drivers/fail_drivers"},
	}
	if len(recorder.Commands) != len(want) {
		t.Fatalf("ran %d commands, want %d:\n%v", len(recorder.Commands), len(want), recorder.Commands)
	}
	for i, argv := range want {
		if !reflect.DeepEqual(recorder.Argv(i), argv) {
			t.Errorf("command %d argv = %v, want %v", i, recorder.Argv(i), argv)
		}
		if recorder.Commands[i].Dir != a.WorkDir {
			t.Errorf("command %d Dir = %q, want the project directory", i, recorder.Commands[i].Dir)
		}
		if !reflect.DeepEqual(recorder.Commands[i].Env, env.Environ()) {
			t.Errorf("command %d Env = %v, want the context environment", i, recorder.Commands[i].Env)
		}
	}
}

func TestInstallProjectNothingToInstall(t *testing.T) {
	recorder := &testutil.ExecRecorder{}
	a := testActivator(t, recorder)
	env := bootstrap.NewEnviron([]string{"PATH=/usr/bin"})

	if err := a.InstallProject(context.Background(), env); err != nil {
		t.Fatalf("InstallProject: %v", err)
	}
	if len(recorder.Commands) != 0 {
		t.Errorf("ran %d commands in an empty work directory:\n%v", len(recorder.Commands), recorder.Commands)
	}
}

func TestInstallProjectSetupOnly(t *testing.T) {
	recorder := &testutil.ExecRecorder{}
	a := testActivator(t, recorder)
	testutil.WriteTree(t, a.WorkDir, map[string]string{
		"setup.py": "from setuptools import setup\nsetup()\n",
	})
	env := bootstrap.NewEnviron([]string{"PATH=/usr/bin"})

	if err := a.InstallProject(context.Background(), env); err != nil {
		t.Fatalf("InstallProject: %v", err)
	}
	if len(recorder.Commands) != 1 {
		t.Fatalf("ran %d commands, want the project install only", len(recorder.Commands))
	}
}

func TestInstallProjectDriversWithoutSetup(t *testing.T) {
	recorder := &testutil.ExecRecorder{}
	a := testActivator(t, recorder)
	testutil.WriteTree(t, a.WorkDir, map[string]string{
		"tests/drivers/fail_drivers/": "",
	})
	env := bootstrap.NewEnviron([]string{"PATH=/usr/bin"})

	if err := a.InstallProject(context.Background(), env); err != nil {
		t.Fatalf("InstallProject: %v", err)
	}
	if len(recorder.Commands) != 1 {
		t.Fatalf("ran %d commands, want the driver install only", len(recorder.Commands))
	}
	if got := recorder.Argv(0)[3]; got != "./tests/drivers/fail_drivers" {
		t.Errorf("install target = %q, want the driver package", got)
	}
}

func TestInstallProjectPipFailure(t *testing.T) {
	recorder := &testutil.ExecRecorder{Script: []testutil.ScriptedResult{
		{Err: errors.New("resolution impossible")},
	}}
	a := testActivator(t, recorder)
	testutil.WriteTree(t, a.WorkDir, map[string]string{
		"setup.py": "from setuptools import setup\nsetup()\n",
	})
	env := bootstrap.NewEnviron([]string{"PATH=/usr/bin"})

	err := a.InstallProject(context.Background(), env)
	if err == nil || !strings.Contains(err.Error(), "pip install") {
		t.Fatalf("InstallProject = %v, want pip failure", err)
	}
	if len(recorder.Commands) != 1 {
		t.Errorf("ran %d commands after a failed install, want 1", len(recorder.Commands))
	}
}

func TestInstallProjectDriverFailure(t *testing.T) {
	recorder := &testutil.ExecRecorder{Script: []testutil.ScriptedResult{
		{},
		{Err: errors.New("setup.py missing")},
	}}
	a := testActivator(t, recorder)
	testutil.WriteTree(t, a.WorkDir, map[string]string{
		"setup.py":                    "from setuptools import setup\nsetup()\n",
		"tests/drivers/fail_drivers/": "",
	})
	env := bootstrap.NewEnviron([]string{"PATH=/usr/bin"})

	err := a.InstallProject(context.Background(), env)
	if err == nil || !strings.Contains(err.Error(), "./tests/drivers/fail_drivers") {
		t.Fatalf("InstallProject = %v, want driver install failure", err)
	}
}
