// Package release builds per-architecture binaries, merges them into
// universal executables and ships them with their resources as a
// checksummed tarball.
package release

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"lumos/internal/fsutil"
	"lumos/internal/installer"
	"lumos/internal/logger"
	"lumos/internal/runner"
)

// ReleaseDir holds package directories and archives under the source root.
const ReleaseDir = "release"

// Result describes a finished release.
type Result struct {
	PackageDir   string
	Archive      string
	ChecksumFile string
	Checksum     string
	Binaries     []string
	Warnings     []ResourceMissing
	Published    bool
}

// Packager runs the release pipeline over one source tree.
type Packager struct {
	Root     string
	Spec     Spec
	Invoker  runner.Invoker
	Log      *logger.Logger
	Uploader Uploader // nil skips publishing

	hostOS   string
	lookPath func(string) (string, error)
}

// New returns a Packager for the tree at root.
func New(root string, spec Spec, inv runner.Invoker, log *logger.Logger) *Packager {
	if log == nil {
		log = logger.Discard()
	}
	if inv == nil {
		inv = runner.ExecInvoker{}
	}
	return &Packager{
		Root:     root,
		Spec:     spec,
		Invoker:  inv,
		Log:      log,
		hostOS:   runtime.GOOS,
		lookPath: exec.LookPath,
	}
}

func (p *Packager) releaseDir() string { return filepath.Join(p.Root, ReleaseDir) }

// PackageDir is release/<product>-<os>-<version>.
func (p *Packager) PackageDir() string {
	return filepath.Join(p.releaseDir(), p.Spec.PackageName())
}

func (p *Packager) shareDir() string {
	return filepath.Join(p.PackageDir(), "share", p.Spec.Product)
}

// Run executes every pipeline step in order and stops at the first failure.
func (p *Packager) Run(ctx context.Context) (*Result, error) {
	if err := p.Spec.Validate(); err != nil {
		return nil, err
	}
	driver, err := NewDriver(p.Spec.Driver)
	if err != nil {
		return nil, err
	}

	p.Log.Info("%s Release Builder v%s\n", templateData{Product: p.Spec.Product}.Title(), p.Spec.Version)

	if err := p.CheckRequirements(driver); err != nil {
		return nil, err
	}
	if err := p.clean(); err != nil {
		return nil, err
	}
	if err := p.buildAll(ctx, driver); err != nil {
		return nil, err
	}

	binDir, err := p.createStructure()
	if err != nil {
		return nil, err
	}

	res := &Result{PackageDir: p.PackageDir()}

	p.Log.Step("Creating Universal Binaries")
	for _, exe := range p.Spec.Executables {
		out, err := p.merge(ctx, driver, exe, binDir)
		if err != nil {
			return nil, err
		}
		res.Binaries = append(res.Binaries, out)
	}

	warnings, err := p.copyResources()
	if err != nil {
		return nil, err
	}
	res.Warnings = warnings

	if p.Spec.ToolchainArchive != "" {
		if err := p.bundleToolchain(); err != nil {
			return nil, err
		}
	}

	if err := p.writeInstallScript(); err != nil {
		return nil, err
	}
	if err := p.writeReadme(); err != nil {
		return nil, err
	}

	if res.Archive, err = p.createArchive(); err != nil {
		return nil, err
	}
	if res.ChecksumFile, res.Checksum, err = p.checksum(res.Archive); err != nil {
		return nil, err
	}

	if p.Uploader != nil {
		if err := p.publish(ctx, res); err != nil {
			return nil, err
		}
		res.Published = true
	}

	p.summary(res)
	return res, nil
}

// CheckRequirements verifies the host and the external tools before
// anything on disk is touched.
func (p *Packager) CheckRequirements(driver Driver) error {
	p.Log.Step("Checking Requirements")

	if p.hostOS != "darwin" {
		return &EnvironmentError{Reason: "universal binaries can only be merged on macOS (host is " + p.hostOS + ")"}
	}
	for _, tool := range []string{driver.Tool(), "lipo", "file"} {
		if _, err := p.lookPath(tool); err != nil {
			return &EnvironmentError{Reason: tool + " not found. Please install it first."}
		}
		p.Log.Success("Found %s\n", tool)
	}
	p.Log.Success("All requirements met\n")
	return nil
}

func (p *Packager) clean() error {
	p.Log.Step("Cleaning Build Directories")

	dirs := make([]string, 0, len(p.Spec.Architectures)+1)
	for _, arch := range p.Spec.Architectures {
		dirs = append(dirs, ArchDir(p.Root, arch))
	}
	dirs = append(dirs, p.PackageDir())

	for _, dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		p.Log.Printf("Removing %s\n", dir)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dir, err)
		}
	}
	if err := os.MkdirAll(p.releaseDir(), 0755); err != nil {
		return fmt.Errorf("failed to create release directory: %w", err)
	}
	p.Log.Success("Build directories cleaned\n")
	return nil
}

func (p *Packager) buildAll(ctx context.Context, driver Driver) error {
	if !p.Spec.Parallel {
		for _, arch := range p.Spec.Architectures {
			if err := p.buildArch(ctx, driver, arch); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, arch := range p.Spec.Architectures {
		g.Go(func() error {
			return p.buildArch(gctx, driver, arch)
		})
	}
	return g.Wait()
}

func (p *Packager) buildArch(ctx context.Context, driver Driver, arch string) error {
	p.Log.Step("Building for " + arch)

	if err := os.MkdirAll(ArchDir(p.Root, arch), 0755); err != nil {
		return fmt.Errorf("failed to create build directory: %w", err)
	}
	for _, step := range driver.Steps(p.Root, arch, p.Spec.Executables) {
		p.Log.Printf("%s...\n", step.Message)
		p.Log.Debug("[DEBUG] %s\n", step.Command)
		if _, err := runner.Run(ctx, p.Invoker, step.Command); err != nil {
			return &BuildFailure{Step: step.Name, Arch: arch, Err: err}
		}
	}
	p.Log.Success("Build for %s complete\n", arch)
	return nil
}

func (p *Packager) createStructure() (string, error) {
	p.Log.Step("Creating Package Structure")

	binDir := filepath.Join(p.PackageDir(), "bin")
	for _, dir := range []string{binDir, p.shareDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	p.Log.Success("Created package structure at %s\n", p.PackageDir())
	return binDir, nil
}

func (p *Packager) merge(ctx context.Context, driver Driver, exe Executable, binDir string) (string, error) {
	inputs := make([]string, 0, len(p.Spec.Architectures))
	for _, arch := range p.Spec.Architectures {
		in := driver.Output(p.Root, arch, exe)
		if _, err := os.Stat(in); err != nil {
			return "", &MissingArtifact{Path: in}
		}
		inputs = append(inputs, in)
	}

	out := filepath.Join(binDir, exe.Name())
	p.Log.Printf("Creating universal binary: %s\n", exe.Name())

	args := append([]string{"-create"}, inputs...)
	args = append(args, "-output", out)
	if _, err := runner.Run(ctx, p.Invoker, runner.Command{Name: "lipo", Args: args}); err != nil {
		return "", &BuildFailure{Step: "lipo", Err: err}
	}
	if err := os.Chmod(out, 0755); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &MissingArtifact{Path: out}
		}
		return "", err
	}

	res, err := runner.Run(ctx, p.Invoker, runner.Command{Name: "file", Args: []string{out}})
	if err != nil {
		return "", &BuildFailure{Step: "file", Err: err}
	}
	desc := strings.TrimSpace(string(res.Stdout))
	p.Log.Printf("  %s\n", desc)

	var missing []string
	for _, arch := range p.Spec.Architectures {
		if !strings.Contains(desc, arch) {
			missing = append(missing, arch)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s lacks %s", ErrNotUniversal, exe.Name(), strings.Join(missing, ", "))
	}
	return out, nil
}

func (p *Packager) copyResources() ([]ResourceMissing, error) {
	p.Log.Step("Copying Resources")

	var warnings []ResourceMissing
	for _, name := range p.Spec.Resources {
		src := filepath.Join(p.Root, name)
		dst := filepath.Join(p.shareDir(), name)

		if info, err := os.Stat(src); err != nil || !info.IsDir() {
			p.Log.Warn("  ! Warning: %s not found, skipping\n", name)
			warnings = append(warnings, ResourceMissing{Name: name, Path: src})
			continue
		}
		p.Log.Printf("Copying %s...\n", name)
		if err := os.RemoveAll(dst); err != nil {
			return nil, err
		}
		if err := fsutil.CopyTree(src, dst); err != nil {
			return nil, fmt.Errorf("failed to copy %s: %w", name, err)
		}
		p.Log.Printf("  ✓ %s\n", name)
	}
	p.Log.Success("Resources copied\n")
	return warnings, nil
}

func (p *Packager) bundleToolchain() error {
	p.Log.Step("Bundling Toolchain")

	src := p.Spec.ToolchainArchive
	if !filepath.IsAbs(src) {
		src = filepath.Join(p.Root, src)
	}
	if _, err := os.Stat(src); err != nil {
		return &MissingArtifact{Path: src}
	}

	dest := filepath.Join(p.shareDir(), "toolchains")
	p.Log.Printf("Extracting %s...\n", filepath.Base(src))
	top, err := installer.ExtractArchive(src, dest, p.Log)
	if err != nil {
		return fmt.Errorf("failed to extract toolchain: %w", err)
	}
	if _, err := installer.FindExecutables(dest, "arm-none-eabi-gcc"); err != nil {
		p.Log.Warn("  ! Warning: bundled toolchain has no arm-none-eabi-gcc\n")
	}
	p.Log.Success("Toolchain bundled: %s\n", filepath.Base(top))
	return nil
}

func (p *Packager) writeInstallScript() error {
	p.Log.Step("Creating Install Script")

	body, err := RenderInstallScript(p.Spec.Product, p.Spec.Version)
	if err != nil {
		return err
	}
	path := filepath.Join(p.PackageDir(), InstallScript)
	if err := os.WriteFile(path, body, 0755); err != nil {
		return fmt.Errorf("failed to write %s: %w", InstallScript, err)
	}
	// The umask may have stripped execute bits.
	if err := os.Chmod(path, 0755); err != nil {
		return err
	}
	p.Log.Success("Created install script: %s\n", InstallScript)
	return nil
}

func (p *Packager) writeReadme() error {
	p.Log.Step("Creating README")

	body, err := RenderReadme(p.Spec.Product, p.Spec.Version)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(p.PackageDir(), ReadmeFile), body, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", ReadmeFile, err)
	}
	p.Log.Success("Created README: %s\n", ReadmeFile)
	return nil
}

func (p *Packager) createArchive() (string, error) {
	p.Log.Step("Creating Archive")

	archive := filepath.Join(p.releaseDir(), p.Spec.ArchiveName())
	p.Log.Printf("Creating %s...\n", p.Spec.ArchiveName())
	if err := WriteArchive(p.PackageDir(), archive); err != nil {
		return "", err
	}

	info, err := os.Stat(archive)
	if err != nil {
		return "", &MissingArtifact{Path: archive}
	}
	p.Log.Success("Created archive: %s\n", archive)
	p.Log.Printf("  Size: %.2f MB\n", float64(info.Size())/(1024*1024))
	return archive, nil
}

func (p *Packager) checksum(archive string) (string, string, error) {
	p.Log.Step("Calculating Checksums")

	path, line, err := WriteChecksum(archive)
	if err != nil {
		return "", "", err
	}
	p.Log.Printf("SHA256: %s\n", line)
	p.Log.Success("Saved to: %s\n", filepath.Base(path))
	return path, line, nil
}

func (p *Packager) publish(ctx context.Context, res *Result) error {
	p.Log.Step("Publishing Release")

	uploads := []struct {
		file        string
		contentType string
	}{
		{res.Archive, "application/gzip"},
		{res.ChecksumFile, "text/plain"},
	}
	for _, u := range uploads {
		name := filepath.Base(u.file)
		p.Log.Printf("Uploading %s...\n", name)
		if err := p.Uploader.Upload(ctx, name, u.file, u.contentType); err != nil {
			return fmt.Errorf("failed to publish %s: %w", name, err)
		}
	}
	p.Log.Success("Release published\n")
	return nil
}

func (p *Packager) summary(res *Result) {
	p.Log.Step("Build Complete!")
	p.Log.Printf("Package created: %s\n", res.Archive)
	p.Log.Printf("Package directory: %s\n", res.PackageDir)
	p.Log.Printf("\nTo test the installation:\n")
	p.Log.Printf("  cd %s\n", res.PackageDir)
	p.Log.Printf("  ./%s\n", InstallScript)
	p.Log.Printf("\nTo distribute:\n")
	if !res.Published {
		p.Log.Printf("  Upload %s to GitHub releases\n", filepath.Base(res.Archive))
	}
	p.Log.Printf("  Include the SHA256 checksum: %s\n", strings.Fields(res.Checksum)[0])
}
