package release

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumos/internal/logger"
	"lumos/internal/runner"
	"lumos/internal/runner/runnertest"
)

func touch(t *testing.T, path, body string, perm os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), perm))
}

// cmakeBuilds writes every executable into the build directory named by
// "cmake --build <dir>".
func cmakeBuilds(spec Spec) runnertest.Handler {
	return func(cmd runner.Command) (runner.Result, error) {
		if len(cmd.Args) > 1 && cmd.Args[0] == "--build" {
			for _, exe := range spec.Executables {
				path := filepath.Join(cmd.Args[1], filepath.FromSlash(exe.Path))
				if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
					return runner.Result{}, err
				}
				if err := os.WriteFile(path, []byte("mach-o "+cmd.Args[1]), 0644); err != nil {
					return runner.Result{}, err
				}
			}
		}
		return runner.Result{}, nil
	}
}

// lipoMerges concatenates the inputs into the -output file.
func lipoMerges(cmd runner.Command) (runner.Result, error) {
	var merged []byte
	for i := 1; i < len(cmd.Args); i++ {
		if cmd.Args[i] == "-output" {
			return runner.Result{}, os.WriteFile(cmd.Args[i+1], merged, 0644)
		}
		raw, err := os.ReadFile(cmd.Args[i])
		if err != nil {
			return runner.Result{}, err
		}
		merged = append(merged, raw...)
	}
	return runner.Result{}, nil
}

const universalDesc = "Mach-O universal binary with 2 architectures: [x86_64:Mach-O 64-bit executable x86_64] [arm64]"

type fixture struct {
	root string
	spec Spec
	fake *runnertest.Fake
	out  *bytes.Buffer
	pkg  *Packager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	touch(t, filepath.Join(root, "boards", "LumosBrain.yaml"), "mcu: STM32H723xx\n", 0644)
	touch(t, filepath.Join(root, "platforms", "h7", "linker.ld"), "ld", 0644)

	spec := DefaultSpec()
	fake := runnertest.New().
		On("cmake", cmakeBuilds(spec)).
		On("lipo", lipoMerges).
		On("file", runnertest.Print(universalDesc+"\n"))

	var out bytes.Buffer
	pkg := New(root, spec, fake, logger.New(&out, &out, false))
	pkg.hostOS = "darwin"
	pkg.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }

	return &fixture{root: root, spec: spec, fake: fake, out: &out, pkg: pkg}
}

func tarMembers(t *testing.T, archive string) map[string]*tar.Header {
	t.Helper()
	f, err := os.Open(archive)
	require.NoError(t, err)
	defer f.Close()
	gr, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gr)

	members := map[string]*tar.Header{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		members[hdr.Name] = hdr
	}
	return members
}

func TestRunProducesPackage(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.pkg.Run(context.Background())
	require.NoError(t, err)

	pkgDir := filepath.Join(fx.root, "release", "lumos-macos-1.0.0")
	assert.Equal(t, pkgDir, res.PackageDir)
	assert.Equal(t, filepath.Join(fx.root, "release", "lumos-macos-1.0.0.tar.gz"), res.Archive)

	for _, name := range []string{"lumos", "simple_serial"} {
		info, err := os.Stat(filepath.Join(pkgDir, "bin", name))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
	}

	assert.FileExists(t, filepath.Join(pkgDir, "share", "lumos", "boards", "LumosBrain.yaml"))
	assert.FileExists(t, filepath.Join(pkgDir, "share", "lumos", "platforms", "h7", "linker.ld"))
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "hal", res.Warnings[0].Name)
	assert.Contains(t, fx.out.String(), "  ! Warning: hal not found, skipping")

	info, err := os.Stat(filepath.Join(pkgDir, InstallScript))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
	readme, err := os.ReadFile(filepath.Join(pkgDir, ReadmeFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(readme), "Lumos v1.0.0 - macOS Release\n"))

	members := tarMembers(t, res.Archive)
	assert.Contains(t, members, "lumos-macos-1.0.0/")
	assert.Contains(t, members, "lumos-macos-1.0.0/install.sh")
	assert.Contains(t, members, "lumos-macos-1.0.0/share/lumos/boards/LumosBrain.yaml")
	require.Contains(t, members, "lumos-macos-1.0.0/bin/lumos")
	assert.Equal(t, int64(0755), members["lumos-macos-1.0.0/bin/lumos"].Mode&0777)

	raw, err := os.ReadFile(res.ChecksumFile)
	require.NoError(t, err)
	assert.Equal(t, res.Checksum+"\n", string(raw))
	assert.Regexp(t, `^[0-9a-f]{64}  lumos-macos-1\.0\.0\.tar\.gz$`, res.Checksum)
	assert.Contains(t, fx.out.String(), "SHA256: "+res.Checksum)
	require.NoError(t, Verify(res.Archive))

	// Both architectures build before any merge.
	assert.Len(t, fx.fake.Named("cmake"), 4)
	assert.Len(t, fx.fake.Named("lipo"), 2)
	configure := fx.fake.Named("cmake")[0]
	assert.Equal(t, []string{"-S", fx.root, "-B", filepath.Join(fx.root, "build", "x86_64"),
		"-DCMAKE_BUILD_TYPE=Release", "-DCMAKE_OSX_ARCHITECTURES=x86_64"}, configure.Args)
	assert.False(t, res.Published)
}

func TestRunCleansPreviousOutputs(t *testing.T) {
	fx := newFixture(t)
	stale := filepath.Join(fx.root, "release", "lumos-macos-1.0.0", "bin", "old_tool")
	touch(t, stale, "stale", 0755)
	touch(t, filepath.Join(fx.root, "build", "arm64", "leftover.o"), "o", 0644)

	_, err := fx.pkg.Run(context.Background())
	require.NoError(t, err)

	assert.NoFileExists(t, stale)
	assert.NoFileExists(t, filepath.Join(fx.root, "build", "arm64", "leftover.o"))
}

func TestRunRejectsNonDarwinHostBeforeCleaning(t *testing.T) {
	fx := newFixture(t)
	fx.pkg.hostOS = "linux"
	keep := filepath.Join(fx.root, "build", "x86_64", "keep.o")
	touch(t, keep, "o", 0644)

	_, err := fx.pkg.Run(context.Background())
	var envErr *EnvironmentError
	require.ErrorAs(t, err, &envErr)
	assert.Contains(t, envErr.Reason, "linux")
	assert.FileExists(t, keep)
	assert.Empty(t, fx.fake.Calls)
}

func TestRunMissingTool(t *testing.T) {
	fx := newFixture(t)
	fx.pkg.lookPath = func(name string) (string, error) {
		if name == "lipo" {
			return "", errors.New("not found")
		}
		return "/usr/bin/" + name, nil
	}

	_, err := fx.pkg.Run(context.Background())
	var envErr *EnvironmentError
	require.ErrorAs(t, err, &envErr)
	assert.Contains(t, envErr.Error(), "lipo not found")
	assert.Contains(t, fx.out.String(), "✓ Found cmake")
}

func TestBuildFailureAbortsBeforeMerge(t *testing.T) {
	fx := newFixture(t)
	fx.fake.On("cmake", func(cmd runner.Command) (runner.Result, error) {
		if strings.Contains(strings.Join(cmd.Args, " "), "-DCMAKE_OSX_ARCHITECTURES=arm64") {
			return runner.Result{ExitCode: 1, Stderr: []byte("CMake Error: no compiler for arm64")}, nil
		}
		return cmakeBuilds(fx.spec)(cmd)
	})

	_, err := fx.pkg.Run(context.Background())
	var failure *BuildFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "arm64", failure.Arch)
	assert.Equal(t, "configure", failure.Step)

	var cmdErr *runner.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Contains(t, err.Error(), "no compiler for arm64")
	assert.Empty(t, fx.fake.Named("lipo"))
}

func TestParallelBuildFailureStopsPipeline(t *testing.T) {
	fx := newFixture(t)
	fx.pkg.Spec.Parallel = true
	fx.fake.On("cmake", func(cmd runner.Command) (runner.Result, error) {
		if cmd.Args[0] == "--build" && strings.HasSuffix(cmd.Args[1], "x86_64") {
			return runner.Result{ExitCode: 2, Stderr: []byte("ld: symbol not found")}, nil
		}
		return cmakeBuilds(fx.spec)(cmd)
	})

	_, err := fx.pkg.Run(context.Background())
	var failure *BuildFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "x86_64", failure.Arch)
	assert.Empty(t, fx.fake.Named("lipo"))
}

func TestParallelBuildSucceeds(t *testing.T) {
	fx := newFixture(t)
	fx.pkg.Spec.Parallel = true

	res, err := fx.pkg.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Binaries, 2)
	assert.Len(t, fx.fake.Named("cmake"), 4)

	text := fx.out.String()
	assert.Contains(t, text, "Build for arm64 complete")
	assert.Contains(t, text, "Build for x86_64 complete")
}

func TestMissingArchitectureBinary(t *testing.T) {
	fx := newFixture(t)
	fx.fake.On("cmake", runnertest.Print(""))

	_, err := fx.pkg.Run(context.Background())
	var missing *MissingArtifact
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, filepath.Join(fx.root, "build", "x86_64", "src", "applications", "lumos_simple", "lumos"), missing.Path)
	assert.Empty(t, fx.fake.Named("lipo"))
}

func TestMergedBinaryMustMentionEveryArchitecture(t *testing.T) {
	fx := newFixture(t)
	fx.fake.On("file", runnertest.Print("Mach-O 64-bit executable x86_64\n"))

	_, err := fx.pkg.Run(context.Background())
	require.ErrorIs(t, err, ErrNotUniversal)
	assert.Contains(t, err.Error(), "arm64")
}

type recordingUploader struct {
	names []string
	err   error
}

func (u *recordingUploader) Upload(_ context.Context, name, file, _ string) error {
	if _, err := os.Stat(file); err != nil {
		return err
	}
	u.names = append(u.names, name)
	return u.err
}

func TestRunPublishes(t *testing.T) {
	fx := newFixture(t)
	up := &recordingUploader{}
	fx.pkg.Uploader = up

	res, err := fx.pkg.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Published)
	assert.Equal(t, []string{"lumos-macos-1.0.0.tar.gz", "lumos-macos-1.0.0.tar.gz.sha256"}, up.names)
}

func TestRunPublishFailure(t *testing.T) {
	fx := newFixture(t)
	fx.pkg.Uploader = &recordingUploader{err: errors.New("access denied")}

	_, err := fx.pkg.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestRunBundlesToolchain(t *testing.T) {
	fx := newFixture(t)

	staging := t.TempDir()
	tcDir := filepath.Join(staging, "arm-gnu-toolchain-13.3")
	touch(t, filepath.Join(tcDir, "bin", "arm-none-eabi-gcc"), "#!/bin/sh\n", 0755)
	require.NoError(t, WriteArchive(tcDir, filepath.Join(fx.root, "arm-gnu-toolchain.tar.gz")))
	fx.pkg.Spec.ToolchainArchive = "arm-gnu-toolchain.tar.gz"

	res, err := fx.pkg.Run(context.Background())
	require.NoError(t, err)

	gcc := filepath.Join(res.PackageDir, "share", "lumos", "toolchains", "arm-gnu-toolchain-13.3", "bin", "arm-none-eabi-gcc")
	info, err := os.Stat(gcc)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0111)
	assert.NotContains(t, fx.out.String(), "has no arm-none-eabi-gcc")
}

func TestRunMissingToolchainArchive(t *testing.T) {
	fx := newFixture(t)
	fx.pkg.Spec.ToolchainArchive = "missing.tar.xz"

	_, err := fx.pkg.Run(context.Background())
	var missing *MissingArtifact
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, filepath.Join(fx.root, "missing.tar.xz"), missing.Path)
}

func TestGoDriverSteps(t *testing.T) {
	d, err := NewDriver(DriverGo)
	require.NoError(t, err)
	assert.Equal(t, "go", d.Tool())

	exe := Executable{Path: "cmd/lumos"}
	steps := d.Steps("/src", "x86_64", []Executable{exe})
	require.Len(t, steps, 2)
	assert.Equal(t, []string{"mod", "download"}, steps[0].Command.Args)

	build := steps[1].Command
	assert.Equal(t, []string{"build", "-trimpath", "-o", filepath.Join("/src", "build", "x86_64", "lumos"), "./cmd/lumos"}, build.Args)
	assert.Contains(t, build.Env, "GOOS=darwin")
	assert.Contains(t, build.Env, "GOARCH=amd64")
	assert.Equal(t, filepath.Join("/src", "build", "x86_64", "lumos"), d.Output("/src", "x86_64", exe))

	_, err = NewDriver("bazel")
	assert.Error(t, err)
}
