// Package runnertest provides a scripted runner.Invoker for tests.
package runnertest

import (
	"context"
	"strings"
	"sync"

	"lumos/internal/runner"
)

// Handler produces the result for a matched command.
type Handler func(cmd runner.Command) (runner.Result, error)

// Fake records every invocation and answers from handlers keyed by
// executable base name. Unmatched commands succeed with empty output.
type Fake struct {
	mu       sync.Mutex
	Calls    []runner.Command
	Handlers map[string]Handler
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{Handlers: map[string]Handler{}}
}

// On registers h for commands whose executable base name is name.
func (f *Fake) On(name string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Handlers[name] = h
	return f
}

// Invoke implements runner.Invoker.
func (f *Fake) Invoke(ctx context.Context, cmd runner.Command) (runner.Result, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, cmd)
	h := f.Handlers[baseName(cmd.Name)]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return runner.Result{}, err
	}
	if h == nil {
		return runner.Result{}, nil
	}
	return h(cmd)
}

// Named returns the recorded calls whose executable base name is name.
func (f *Fake) Named(name string) []runner.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []runner.Command
	for _, c := range f.Calls {
		if baseName(c.Name) == name {
			out = append(out, c)
		}
	}
	return out
}

// Fail returns a handler that exits with code and writes stderr.
func Fail(code int, stderr string) Handler {
	return func(runner.Command) (runner.Result, error) {
		return runner.Result{ExitCode: code, Stderr: []byte(stderr)}, nil
	}
}

// Print returns a handler that succeeds with stdout.
func Print(stdout string) Handler {
	return func(runner.Command) (runner.Result, error) {
		return runner.Result{Stdout: []byte(stdout)}, nil
	}
}

func baseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}
