package release

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"lumos/internal/installer"
)

// SpecFile is the optional release description at the source root.
const SpecFile = "release.yaml"

// Executable is one program shipped in bin/.
// For the cmake driver Path is the binary path inside each per-arch build
// directory; for the go driver it is the package directory to build.
type Executable struct {
	Path string `yaml:"path"`
}

// Name is the file name installed under bin/.
func (e Executable) Name() string {
	return filepath.Base(filepath.FromSlash(e.Path))
}

// Spec describes what to build and ship.
type Spec struct {
	Product          string       `yaml:"product"`
	Version          string       `yaml:"version"`
	OS               string       `yaml:"os"`
	Driver           string       `yaml:"driver"`
	Architectures    []string     `yaml:"architectures"`
	Executables      []Executable `yaml:"executables"`
	Resources        []string     `yaml:"resources"`
	ToolchainArchive string       `yaml:"toolchain_archive"`
	Parallel         bool         `yaml:"parallel"`
}

// DefaultSpec mirrors the layout of the Lumos source tree.
func DefaultSpec() Spec {
	return Spec{
		Product:       "lumos",
		Version:       "1.0.0",
		OS:            "macos",
		Driver:        DriverCMake,
		Architectures: []string{"x86_64", "arm64"},
		Executables: []Executable{
			{Path: "src/applications/lumos_simple/lumos"},
			{Path: "src/applications/simple_serial/simple_serial"},
		},
		Resources: []string{"boards", "hal", "platforms"},
	}
}

// LoadSpec reads root/release.yaml over the defaults. A missing file yields
// DefaultSpec.
func LoadSpec(root string) (Spec, error) {
	spec := DefaultSpec()

	raw, err := os.ReadFile(filepath.Join(root, SpecFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return spec, nil
		}
		return spec, fmt.Errorf("failed to read %s: %w", SpecFile, err)
	}
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return spec, fmt.Errorf("failed to unmarshal %s: %w", SpecFile, err)
	}
	return spec, spec.Validate()
}

// Validate checks the fields every pipeline step relies on.
func (s Spec) Validate() error {
	var problems []string
	if strings.TrimSpace(s.Product) == "" {
		problems = append(problems, "product is required")
	}
	if strings.TrimSpace(s.Version) == "" {
		problems = append(problems, "version is required")
	}
	if _, err := NewDriver(s.Driver); err != nil {
		problems = append(problems, err.Error())
	}
	if len(s.Architectures) == 0 {
		problems = append(problems, "at least one architecture is required")
	}
	if len(s.Executables) == 0 {
		problems = append(problems, "at least one executable is required")
	}
	seen := map[string]bool{}
	for _, exe := range s.Executables {
		if seen[exe.Name()] {
			problems = append(problems, fmt.Sprintf("duplicate executable name %q", exe.Name()))
		}
		seen[exe.Name()] = true
	}
	if s.ToolchainArchive != "" && !installer.IsSupported(s.ToolchainArchive) {
		problems = append(problems, fmt.Sprintf("unsupported toolchain archive %q", s.ToolchainArchive))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid %s: %s", SpecFile, strings.Join(problems, "; "))
	}
	return nil
}

// PackageName is <product>-<os>-<version>.
func (s Spec) PackageName() string {
	return fmt.Sprintf("%s-%s-%s", s.Product, s.OS, s.Version)
}

// ArchiveName is the package archive file name.
func (s Spec) ArchiveName() string {
	return s.PackageName() + ".tar.gz"
}
