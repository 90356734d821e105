package builder

import (
	"os"
	"path/filepath"

	"lumos/internal/config"
	"lumos/internal/installer"
)

const gccName = "arm-none-eabi-gcc"

// Toolchain resolves arm-none-eabi executables. An empty BinDir means the
// tools are looked up on $PATH by the operating system.
type Toolchain struct {
	BinDir string
}

// ResolveToolchain picks the toolchain directory: an explicit LUMOS_TOOLCHAIN,
// then a toolchain bundled under the resource root, then $PATH.
func ResolveToolchain(env config.Environment) Toolchain {
	if env.Toolchain != "" {
		return Toolchain{BinDir: env.Toolchain}
	}
	if env.Root == "" {
		return Toolchain{}
	}

	for _, dir := range []string{
		filepath.Join(env.Root, "toolchains"),
		filepath.Join(env.Root, "src", "toolchains"),
	} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		found, err := installer.FindExecutables(dir, gccName)
		if err != nil {
			continue
		}
		for _, exe := range found {
			if filepath.Base(exe) == gccName {
				return Toolchain{BinDir: filepath.Dir(exe)}
			}
		}
	}
	return Toolchain{}
}

// Tool returns the path (or bare name) of an arm-none-eabi-<name> executable.
func (t Toolchain) Tool(name string) string {
	exe := "arm-none-eabi-" + name
	if t.BinDir == "" {
		return exe
	}
	return filepath.Join(t.BinDir, exe)
}

// CC is the C compiler and assembler driver.
func (t Toolchain) CC() string { return t.Tool("gcc") }

// CXX is the C++ compiler and link driver.
func (t Toolchain) CXX() string { return t.Tool("g++") }

// Objcopy converts the ELF image to a raw binary.
func (t Toolchain) Objcopy() string { return t.Tool("objcopy") }
