// Copyright 2026 The Cubeboot Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os/exec"
	"syscall"
)

// RecordedCommand captures everything a package under test handed to
// the exec seam for one subprocess invocation.
type RecordedCommand struct {
	// Argv is the full command line, argv[0] included.
	Argv []string

	// Dir is the working directory set on the command, empty when the
	// caller left it unset.
	Dir string

	// Env is the environment set on the command, nil when the caller
	// left it to inherit.
	Env []string

	// Credential is the uid/gid the command was asked to run as, nil
	// when the caller did not request a credential switch.
	Credential *syscall.Credential
}

// ScriptedResult is what the recorder returns for one invocation.
type ScriptedResult struct {
	// Stdout is returned by Output calls. Run calls ignore it.
	Stdout string

	// Err is returned as the invocation's error.
	Err error
}

// ExecRecorder implements the Run/Output exec seams used throughout
// the cubeboot libraries. It records every command instead of running
// it and replays scripted results in call order. Once the script is
// exhausted, further invocations succeed with empty output.
//
//	recorder := &testutil.ExecRecorder{Script: []testutil.ScriptedResult{
//		{Stdout: "1\n"},          // first probe finds the role
//		{Err: errors.New("no")},  // second call fails
//	}}
//	cluster.runCommand = recorder.Run
//	cluster.outputCommand = recorder.Output
type ExecRecorder struct {
	Commands []RecordedCommand
	Script   []ScriptedResult
}

// Run records the command and returns the next scripted error.
func (r *ExecRecorder) Run(cmd *exec.Cmd) error {
	r.record(cmd)
	return r.next().Err
}

// Output records the command and returns the next scripted stdout and
// error.
func (r *ExecRecorder) Output(cmd *exec.Cmd) ([]byte, error) {
	r.record(cmd)
	result := r.next()
	return []byte(result.Stdout), result.Err
}

// Argv returns the argv of call i. Fails loudly via panic on
// out-of-range access so a miscounted test does not silently pass.
func (r *ExecRecorder) Argv(i int) []string {
	return r.Commands[i].Argv
}

func (r *ExecRecorder) record(cmd *exec.Cmd) {
	recorded := RecordedCommand{
		Argv: append([]string(nil), cmd.Args...),
		Dir:  cmd.Dir,
	}
	if cmd.Env != nil {
		recorded.Env = append([]string(nil), cmd.Env...)
	}
	if cmd.SysProcAttr != nil && cmd.SysProcAttr.Credential != nil {
		credential := *cmd.SysProcAttr.Credential
		recorded.Credential = &credential
	}
	r.Commands = append(r.Commands, recorded)
}

func (r *ExecRecorder) next() ScriptedResult {
	if len(r.Script) == 0 {
		return ScriptedResult{}
	}
	result := r.Script[0]
	r.Script = r.Script[1:]
	return result
}
