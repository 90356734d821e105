package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color" // Colored console output, same palette for every command
)

// Colorized printers for the different message levels.
// Info is green, Warn is bright magenta, Error is red and Debug is cyan.
var (
	infoColor  = color.New(color.FgGreen)
	warnColor  = color.New(color.FgHiMagenta)
	errorColor = color.New(color.FgRed)
	debugColor = color.New(color.FgCyan)
	stepColor  = color.New(color.FgHiCyan, color.Bold)
)

// Logger writes user-facing progress to out and failures to errOut.
// Commands construct one per invocation from cobra's output streams,
// so tests can capture everything with plain buffers.
//
// A Logger is safe for concurrent use. Every write, including writes through
// Out and ErrOut, holds the same lock, so messages from parallel workers do
// not interleave mid-line.
type Logger struct {
	mu     *sync.Mutex
	out    io.Writer
	errOut io.Writer
	debug  bool
}

// New returns a Logger writing to the given streams.
// When debug is false, Debug calls are dropped.
func New(out, errOut io.Writer, debug bool) *Logger {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Logger{mu: &sync.Mutex{}, out: out, errOut: errOut, debug: debug}
}

// Discard returns a Logger that swallows everything.
func Discard() *Logger {
	return New(io.Discard, io.Discard, false)
}

// lockedWriter serializes writes to w with the owning Logger's lock.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (lw lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

// Out exposes the standard output stream for raw copies (serial monitor, prompts).
func (l *Logger) Out() io.Writer { return lockedWriter{mu: l.mu, w: l.out} }

// ErrOut exposes the error stream.
func (l *Logger) ErrOut() io.Writer { return lockedWriter{mu: l.mu, w: l.errOut} }

// Printf prints an uncolored line fragment to out.
func (l *Logger) Printf(format string, a ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, format, a...)
}

// Info prints a green informational message.
func (l *Logger) Info(format string, a ...any) {
	l.print(infoColor, l.out, format, a...)
}

// Success prints a confirmation line prefixed with a check mark.
func (l *Logger) Success(format string, a ...any) {
	l.print(infoColor, l.out, "✓ "+format, a...)
}

// Warn prints a bright magenta warning to out.
func (l *Logger) Warn(format string, a ...any) {
	l.print(warnColor, l.out, format, a...)
}

// Error prints a red message to the error stream.
func (l *Logger) Error(format string, a ...any) {
	l.print(errorColor, l.errOut, format, a...)
}

// Debug prints a cyan message when debug logging is enabled.
func (l *Logger) Debug(format string, a ...any) {
	if !l.debug {
		return
	}
	l.print(debugColor, l.out, format, a...)
}

// Step prints a banner separating pipeline stages.
func (l *Logger) Step(title string) {
	rule := strings.Repeat("=", 60)
	l.print(stepColor, l.out, "\n%s\n  %s\n%s\n\n", rule, title, rule)
}

func (l *Logger) print(c *color.Color, w io.Writer, format string, a ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c.Fprintf(w, format, a...)
}
