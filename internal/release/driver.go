package release

import (
	"fmt"
	"path/filepath"

	"lumos/internal/runner"
)

// Build drivers.
const (
	DriverCMake = "cmake"
	DriverGo    = "go"
)

// Driver knows how to build the source tree for one architecture.
type Driver interface {
	// Tool is the executable that must be on PATH.
	Tool() string
	// Steps returns the configure/build invocations for arch, in order.
	Steps(root, arch string, exes []Executable) []BuildStep
	// Output is where the per-arch build leaves exe.
	Output(root, arch string, exe Executable) string
}

// NewDriver returns the driver registered under name.
func NewDriver(name string) (Driver, error) {
	switch name {
	case DriverCMake, "":
		return cmakeDriver{}, nil
	case DriverGo:
		return goDriver{}, nil
	}
	return nil, fmt.Errorf("unknown driver %q (want %s or %s)", name, DriverCMake, DriverGo)
}

// BuildStep is one labelled external command of a per-arch build.
type BuildStep struct {
	Name    string // configure, build, download
	Message string
	Command runner.Command
}

// ArchDir is the out-of-tree build directory of one architecture.
func ArchDir(root, arch string) string {
	return filepath.Join(root, "build", arch)
}

type cmakeDriver struct{}

func (cmakeDriver) Tool() string { return "cmake" }

func (cmakeDriver) Steps(root, arch string, _ []Executable) []BuildStep {
	dir := ArchDir(root, arch)
	return []BuildStep{
		{
			Name:    "configure",
			Message: "Configuring for " + arch,
			Command: runner.Command{
				Name: "cmake",
				Args: []string{"-S", root, "-B", dir, "-DCMAKE_BUILD_TYPE=Release", "-DCMAKE_OSX_ARCHITECTURES=" + arch},
				Dir:  root,
			},
		},
		{
			Name:    "build",
			Message: "Building for " + arch,
			Command: runner.Command{
				Name: "cmake",
				Args: []string{"--build", dir, "--config", "Release", "-j"},
				Dir:  root,
			},
		},
	}
}

func (cmakeDriver) Output(root, arch string, exe Executable) string {
	return filepath.Join(ArchDir(root, arch), filepath.FromSlash(exe.Path))
}

type goDriver struct{}

// goArch maps Apple architecture names onto GOARCH values.
var goArch = map[string]string{
	"x86_64": "amd64",
	"arm64":  "arm64",
}

func (goDriver) Tool() string { return "go" }

func (d goDriver) Steps(root, arch string, exes []Executable) []BuildStep {
	goarch, ok := goArch[arch]
	if !ok {
		goarch = arch
	}
	env := []string{"GOOS=darwin", "GOARCH=" + goarch, "CGO_ENABLED=0"}

	steps := []BuildStep{{
		Name:    "download",
		Message: "Downloading modules for " + arch,
		Command: runner.Command{Name: "go", Args: []string{"mod", "download"}, Dir: root},
	}}
	for _, exe := range exes {
		steps = append(steps, BuildStep{
			Name:    "build",
			Message: fmt.Sprintf("Building %s for %s", exe.Name(), arch),
			Command: runner.Command{
				Name: "go",
				Args: []string{"build", "-trimpath", "-o", d.Output(root, arch, exe), "./" + filepath.ToSlash(exe.Path)},
				Dir:  root,
				Env:  env,
			},
		})
	}
	return steps
}

func (goDriver) Output(root, arch string, exe Executable) string {
	return filepath.Join(ArchDir(root, arch), exe.Name())
}
