package release

import (
	"errors"
	"fmt"
)

// ErrNotUniversal is returned when a merged binary does not report every
// declared architecture.
var ErrNotUniversal = errors.New("merged binary is missing architectures")

// ErrChecksumMismatch is returned by Verify when the archive digest differs
// from the recorded one.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// EnvironmentError is a failed precondition: wrong host or a missing tool.
// It is raised before anything is deleted.
type EnvironmentError struct {
	Reason string
}

func (e *EnvironmentError) Error() string {
	return "environment check failed: " + e.Reason
}

// BuildFailure wraps a failing external command of one pipeline step.
// Err is usually a *runner.CommandError carrying the captured output.
type BuildFailure struct {
	Step string
	Arch string
	Err  error
}

func (e *BuildFailure) Error() string {
	if e.Arch != "" {
		return fmt.Sprintf("%s for %s failed: %v", e.Step, e.Arch, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *BuildFailure) Unwrap() error { return e.Err }

// MissingArtifact names an expected file that is not on disk.
type MissingArtifact struct {
	Path string
}

func (e *MissingArtifact) Error() string {
	return "required artifact not found: " + e.Path
}

// ResourceMissing records a declared resource directory that was skipped.
// It is reported as a warning, never returned as an error.
type ResourceMissing struct {
	Name string
	Path string
}

func (e ResourceMissing) Error() string {
	return fmt.Sprintf("resource %s not found at %s", e.Name, e.Path)
}
