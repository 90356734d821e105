package config

// Language is the programming language of a project's entry source file.
type Language string

const (
	LanguageCpp Language = "C++"
	LanguageC   Language = "C"
)

// EntryFile returns the generated entry source file name for the language.
func (l Language) EntryFile() string {
	if l == LanguageC {
		return "main.c"
	}
	return "main.cpp"
}

// ProjectConfig is the in-memory form of project.yaml.
// - Sources: files to compile, relative to the project root, in build order.
// - Board: target board name. Any value loads; legality is checked at selection time only.
// - HALModules: optional peripheral modules; empty means auto-detect during build.
type ProjectConfig struct {
	Sources    []string `yaml:"sources"`
	Board      string   `yaml:"board"`
	HALModules []string `yaml:"hal_modules,omitempty"`
}

// BoardProfile describes the MCU behind a board name.
// - Platform: STM32 family directory (f4, g0, g4, h7).
// - MCU: CMSIS device define, e.g. STM32H723xx.
// - CPU/FloatABI/FPU: arm-none-eabi code generation flags.
type BoardProfile struct {
	Name     string
	Platform string
	MCU      string
	CPU      string
	FloatABI string
	FPU      string
}

// PortCache holds settings remembered between invocations in build/cache.yaml.
// It is not meant to be version controlled.
type PortCache struct {
	SerialPort string `yaml:"serial_port,omitempty"`
}
