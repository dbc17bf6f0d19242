/*
	arduino-provisioner
	Copyright (c) 2024 Arduino LLC.  All right reserved.

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package programmers drives the external flashing, erasing and size
// reporting tools. Everything in this repository that spawns a process goes
// through a Runner, so the provisioning logic can be tested without hardware.
package programmers

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/arduino/arduino-cli/executils"
	"github.com/arduino/go-paths-helper"
	"github.com/arduino/go-properties-orderedmap"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Runner executes an external command line.
type Runner interface {
	// Run executes the command, streaming its output to stdout and stderr
	// (which may be nil to discard it).
	Run(ctx context.Context, args []string, stdout, stderr io.Writer) error
	// Output executes the command and captures its output.
	Output(ctx context.Context, args []string) ([]byte, []byte, error)
}

// ExitError is returned when a tool terminates with a non-zero status.
type ExitError struct {
	Args     []string
	ExitCode int
	Err      error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Args[0], e.ExitCode)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExecRunner runs commands as real processes.
type ExecRunner struct {
	// ToolDir, if set, is searched for the executable before the PATH.
	ToolDir  *paths.Path
	ExtraEnv []string
}

// NewExecRunner creates a runner looking up tools in toolDir (may be nil).
func NewExecRunner(toolDir *paths.Path) *ExecRunner {
	return &ExecRunner{ToolDir: toolDir}
}

func (r *ExecRunner) resolve(args []string) []string {
	if r.ToolDir == nil || len(args) == 0 || strings.ContainsAny(args[0], `/\`) {
		return args
	}
	candidate := r.ToolDir.Join(args[0])
	if !candidate.Exist() {
		candidate = r.ToolDir.Join(args[0] + ".exe")
	}
	if !candidate.Exist() {
		return args
	}
	return append([]string{candidate.String()}, args[1:]...)
}

func (r *ExecRunner) process(args []string) (*executils.Process, error) {
	if len(args) == 0 {
		return nil, errors.New("empty command line")
	}
	args = r.resolve(args)
	logrus.Debugf("running: %s", strings.Join(args, " "))
	proc, err := executils.NewProcess(r.ExtraEnv, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "starting %s", args[0])
	}
	return proc, nil
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	proc, err := r.process(args)
	if err != nil {
		return err
	}
	if stdout != nil {
		proc.RedirectStdoutTo(stdout)
	}
	if stderr != nil {
		proc.RedirectStderrTo(stderr)
	}
	return asExitError(args, proc.RunWithinContext(ctx))
}

// Output implements Runner.
func (r *ExecRunner) Output(ctx context.Context, args []string) ([]byte, []byte, error) {
	proc, err := r.process(args)
	if err != nil {
		return nil, nil, err
	}
	stdout, stderr, err := proc.RunAndCaptureOutput(ctx)
	return stdout, stderr, asExitError(args, err)
}

func asExitError(args []string, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Args: args, ExitCode: exitErr.ExitCode(), Err: err}
	}
	return errors.Wrapf(err, "running %s", args[0])
}

// SplitCommandLine splits a command line template that has already been
// expanded. Double quotes group arguments containing spaces.
func SplitCommandLine(commandLine string) ([]string, error) {
	args, err := properties.SplitQuotedString(commandLine, `"`, false)
	if err != nil {
		return nil, errors.Wrapf(err, "splitting command line \"%s\"", commandLine)
	}
	if len(args) == 0 {
		return nil, errors.Errorf("empty command line")
	}
	return args, nil
}
