// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package runner invokes the external tools the pipeline depends on
// (LibreOffice, calibre-debug) with fixed argument lists, capturing their
// output and bounding each call with a timeout.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// Runner executes one external binary.
type Runner interface {
	// Name returns the binary as configured (path or PATH-resolved name).
	Name() string

	// Available reports whether the binary can be located.
	Available() bool

	// Run executes the binary with args and returns its captured output.
	// A non-zero exit is reported as a *ToolError.
	Run(ctx context.Context, args ...string) (Result, error)
}

// Result holds the captured output of a finished invocation.
type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// ToolError describes a failed invocation, keeping stderr for the log.
type ToolError struct {
	Tool   string
	Args   []string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Tool, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// ErrTimeout is wrapped by ToolError when the per-call timeout expires.
var ErrTimeout = errors.New("timed out")

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// Tool implements Runner for a single binary.
type Tool struct {
	bin     string
	timeout time.Duration
	exec    executor
}

var defaultExec = &osExecutor{}

// New returns a Tool for bin. A zero timeout means no per-call limit
// beyond the caller's context.
func New(bin string, timeout time.Duration) *Tool {
	return newTool(bin, timeout, defaultExec)
}

func newTool(bin string, timeout time.Duration, exec executor) *Tool {
	return &Tool{
		bin:     strings.TrimSpace(bin),
		timeout: timeout,
		exec:    exec,
	}
}

func (t *Tool) Name() string { return t.bin }

func (t *Tool) Available() bool {
	if t.bin == "" {
		return false
	}
	_, err := t.exec.LookPath(t.bin)
	return err == nil
}

func (t *Tool) Run(ctx context.Context, args ...string) (Result, error) {
	if t.bin == "" {
		return Result{}, errors.New("tool binary not configured")
	}
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	start := time.Now()
	err := t.exec.Run(ctx, t.bin, args, &stdout, &stderr)
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %v", ErrTimeout, t.timeout)
		}
		return res, &ToolError{
			Tool:   t.bin,
			Args:   append([]string(nil), args...),
			Stderr: strings.TrimSpace(res.Stderr),
			Err:    err,
		}
	}
	return res, nil
}

// CommandLine renders bin and args as a single shell-like line for logs.
func CommandLine(bin string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, a := range append([]string{bin}, args...) {
		if a == "" || strings.ContainsAny(a, " \t\"") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
