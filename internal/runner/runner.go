// Package runner invokes external tools (compilers, flashers, packagers) and
// captures their output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Command describes one external program invocation.
// - Name: executable name or path.
// - Dir: working directory; empty means the current one.
// - Env: extra KEY=VALUE entries appended to the process environment.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

// String renders the command line the way it would be typed in a shell.
func (c Command) String() string {
	parts := append([]string{c.Name}, c.Args...)
	for i, p := range parts {
		if p == "" || strings.ContainsAny(p, " \t\"'") {
			parts[i] = fmt.Sprintf("%q", p)
		}
	}
	return strings.Join(parts, " ")
}

// Result is the captured outcome of a finished process.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Output returns stdout followed by stderr.
func (r Result) Output() string {
	return strings.TrimSpace(string(r.Stdout) + string(r.Stderr))
}

// Invoker runs commands. A non-zero exit is reported in Result, not as an error;
// the error is reserved for processes that could not be started or were cancelled.
type Invoker interface {
	Invoke(ctx context.Context, cmd Command) (Result, error)
}

// ExecInvoker runs commands with os/exec.
type ExecInvoker struct{}

// Invoke implements Invoker.
func (ExecInvoker) Invoke(ctx context.Context, c Command) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return res, fmt.Errorf("%s cancelled: %w", c.Name, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, fmt.Errorf("failed to start %s: %w", c.Name, err)
}

// CommandError reports a command that exited non-zero.
type CommandError struct {
	Command Command
	Result  Result
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command failed (exit %d): %s", e.Result.ExitCode, e.Command)
	if out := e.Result.Output(); out != "" {
		msg += "\n" + out
	}
	return msg
}

// Run invokes cmd and converts a non-zero exit into a *CommandError.
func Run(ctx context.Context, inv Invoker, cmd Command) (Result, error) {
	res, err := inv.Invoke(ctx, cmd)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, &CommandError{Command: cmd, Result: res}
	}
	return res, nil
}
