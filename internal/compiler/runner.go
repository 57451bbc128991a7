package compiler

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// RunResult is what a finished process left behind.
type RunResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner abstracts how the external compiler process is started. This allows
// swapping the real binary (ExecRunner) for fakes in tests.
//
// Contract: Run returns a nil error whenever the process ran to completion,
// whatever its exit code. A non-nil error means the process could not be
// started or was killed, e.g. because ctx expired.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (RunResult, error)
	LookPath(name string) (string, error)
}

// ExecRunner runs binaries found on PATH.
type ExecRunner struct{}

func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (RunResult, error) {
	// #nosec G204 -- the binary comes from operator configuration.
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := RunResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		return res, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	res.ExitCode = -1
	return res, err
}
