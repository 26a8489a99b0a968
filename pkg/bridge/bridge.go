/*
Copyright The Buildflash Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*Package bridge drives attached devices through the platform's debug-bridge
command-line tool.

Everything here shells out: reboots, sideloads and device enumeration are
subprocess invocations whose merged output is consumed line by line. The
commandRunner seam exists so tests can stand in for the external tool.
*/
package bridge

import (
	"context"
	"io"
	"os/exec"
	"strconv"
)

// DefaultPath is the bridge executable looked up on PATH when no explicit
// path is configured.
const DefaultPath = "adb"

// ProcessError indicates the bridge tool could not be launched or crashed
// abnormally. Flash jobs are never retried on it: re-flashing blindly is not
// safe without operator awareness.
type ProcessError struct {
	Command string
	Err     error
}

func (e *ProcessError) Error() string {
	return "bridge command " + strconv.Quote(e.Command) + " failed: " + e.Err.Error()
}

func (e *ProcessError) Unwrap() error { return e.Err }

// Bridge invokes the debug-bridge tool for one host.
type Bridge struct {
	// Path is the bridge executable; empty means DefaultPath.
	Path string
	// ExtraArgs are prepended to every invocation, from configuration.
	ExtraArgs []string
	// Log receives human-readable trace lines. May be nil.
	Log func(string, ...interface{})

	// runner is swapped out in tests.
	runner commandRunner
}

// New returns a Bridge shelling out to the tool at path.
func New(path string, extraArgs ...string) *Bridge {
	return &Bridge{Path: path, ExtraArgs: extraArgs, runner: execRunner{}}
}

// commandRunner launches bridge subprocesses.
type commandRunner interface {
	// Run executes to completion and returns combined output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// Start launches a long-running command with stdout and stderr merged.
	Start(name string, args ...string) (process, error)
}

// process is a started bridge subprocess.
type process interface {
	// Output is the merged stdout/stderr stream.
	Output() io.Reader
	// Wait blocks until exit and returns the exit code.
	Wait() (int, error)
	// Terminate kills the process.
	Terminate() error
}

// args builds an invocation, scoping it to a serial when one is given.
func (b *Bridge) args(serial string, cmd ...string) []string {
	out := append([]string{}, b.ExtraArgs...)
	if serial != "" {
		out = append(out, "-s", serial)
	}
	return append(out, cmd...)
}

func (b *Bridge) path() string {
	if b.Path == "" {
		return DefaultPath
	}
	return b.Path
}

func (b *Bridge) run(ctx context.Context, serial string, cmd ...string) ([]byte, error) {
	return b.commandRunner().Run(ctx, b.path(), b.args(serial, cmd...)...)
}

func (b *Bridge) commandRunner() commandRunner {
	if b.runner == nil {
		return execRunner{}
	}
	return b.runner
}

func (b *Bridge) logf(format string, v ...interface{}) {
	if b.Log != nil {
		b.Log(format, v...)
	}
}

// execRunner is the real os/exec implementation.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func (execRunner) Start(name string, args ...string) (process, error) {
	cmd := exec.Command(name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	// StdoutPipe assigned the pipe's write end to cmd.Stdout; aliasing it
	// as stderr merges the two streams.
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &osProcess{cmd: cmd, out: stdout}, nil
}

type osProcess struct {
	cmd *exec.Cmd
	out io.Reader
}

func (p *osProcess) Output() io.Reader { return p.out }

func (p *osProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, err
	}
	return 0, nil
}

func (p *osProcess) Terminate() error {
	return p.cmd.Process.Kill()
}
