package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables understood by lumos.
const (
	EnvRoot      = "LUMOS_ROOT"      // directory holding boards/, hal/, platforms/, toolchains/
	EnvToolchain = "LUMOS_TOOLCHAIN" // directory holding arm-none-eabi-* executables
)

// Environment is the resolved tool environment for one project.
type Environment struct {
	Root      string
	Toolchain string
}

// ResolveEnvironment merges, in priority order, the process environment
// (getenv), the project's .env file and the release layout next to the
// running executable (<exe>/../share/lumos). The project .env is read without
// touching the process environment.
func ResolveEnvironment(projectRoot string, getenv func(string) string) Environment {
	if getenv == nil {
		getenv = os.Getenv
	}

	dotenv, err := godotenv.Read(filepath.Join(projectRoot, ".env"))
	if err != nil {
		dotenv = map[string]string{}
	}

	return Environment{
		Root:      firstNonEmpty(strings.TrimSpace(getenv(EnvRoot)), strings.TrimSpace(dotenv[EnvRoot]), installedRoot()),
		Toolchain: firstNonEmpty(strings.TrimSpace(getenv(EnvToolchain)), strings.TrimSpace(dotenv[EnvToolchain])),
	}
}

// installedRoot guesses the resource root of a packaged install:
// bin/lumos next to share/lumos.
func installedRoot() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	candidate := filepath.Join(filepath.Dir(exe), "..", "share", "lumos")
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return filepath.Clean(candidate)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
