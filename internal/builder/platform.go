package builder

import (
	"os"
	"path/filepath"
	"strings"

	"lumos/internal/config"
)

// Platform locates the vendor files of one STM32 family inside the resource root.
type Platform struct {
	Name string // f4, g0, g4, h7
	Dir  string
}

// families maps platform names to the CMSIS/HAL directory family names.
var families = map[string]string{
	"f4": "STM32F4xx",
	"g0": "STM32G0xx",
	"g4": "STM32G4xx",
	"h7": "STM32H7xx",
}

// systemFiles lists startup, system and linker script names per platform.
var systemFiles = map[string]struct{ startup, system, linker string }{
	"f4": {"startup_stm32f407xx.s", "system_stm32f4xx.c", "STM32F407VG_FLASH.ld"},
	"h7": {"startup_stm32h723xx.s", "system_stm32h7xx.c", "STM32H723VG_FLASH.ld"},
}

// LocatePlatform returns the platform directory under the resource root.
// The release layout (<root>/platforms/<name>) wins over the source checkout
// layout (<root>/src/toolchains/platform/<name>).
func LocatePlatform(resourceRoot, name string) Platform {
	release := filepath.Join(resourceRoot, "platforms", name)
	if info, err := os.Stat(release); err == nil && info.IsDir() {
		return Platform{Name: name, Dir: release}
	}
	return Platform{Name: name, Dir: filepath.Join(resourceRoot, "src", "toolchains", "platform", name)}
}

func (p Platform) family() string {
	if f, ok := families[p.Name]; ok {
		return f
	}
	return families["f4"]
}

func (p Platform) configDir() string {
	return filepath.Join(p.Dir, "lumos_config")
}

// halSourceDir is Drivers/<family>_HAL_Driver/Src.
func (p Platform) halSourceDir() string {
	return filepath.Join(p.Dir, "Drivers", p.family()+"_HAL_Driver", "Src")
}

// halPrefix is e.g. stm32h7xx_hal.
func (p Platform) halPrefix() string {
	return strings.ToLower(p.family()) + "_hal"
}

// IncludeDirs returns the -I directories for a project, project include first.
func (p Platform) IncludeDirs(projectRoot string) []string {
	var dirs []string
	if info, err := os.Stat(filepath.Join(projectRoot, "include")); err == nil && info.IsDir() {
		dirs = append(dirs, filepath.Join(projectRoot, "include"))
	}
	family := p.family()
	usb := filepath.Join(p.Dir, "Middlewares", "ST", "STM32_USB_Device_Library")
	return append(dirs,
		p.configDir(),
		filepath.Join(p.Dir, "Drivers", "CMSIS", "Include"),
		filepath.Join(p.Dir, "Drivers", "CMSIS", "Device", "ST", family, "Include"),
		filepath.Join(p.Dir, "Drivers", family+"_HAL_Driver", "Inc"),
		filepath.Join(usb, "Core", "Inc"),
		filepath.Join(usb, "Class", "CDC", "Inc"),
	)
}

// HALSources returns the HAL driver sources for the core plus modules.
// Optional companions (_ex sources and the LL USB driver) are only listed
// when present; base files are always listed so the caller can report them
// as skipped.
func (p Platform) HALSources(modules []string) []string {
	dir := p.halSourceDir()
	prefix := p.halPrefix()

	var files []string
	for _, core := range []string{"", "_cortex", "_rcc", "_rcc_ex", "_gpio", "_pwr", "_pwr_ex", "_dma"} {
		files = append(files, filepath.Join(dir, prefix+core+".c"))
	}

	for _, mod := range modules {
		files = append(files, filepath.Join(dir, prefix+"_"+mod+".c"))

		if ex := filepath.Join(dir, prefix+"_"+mod+"_ex.c"); exists(ex) {
			files = append(files, ex)
		}
		if mod == "pcd" {
			ll := filepath.Join(dir, strings.TrimSuffix(prefix, "_hal")+"_ll_usb.c")
			if exists(ll) {
				files = append(files, ll)
			}
		}
	}
	return dedupe(files)
}

// USBSources returns the USB device middleware sources (core + CDC class).
func (p Platform) USBSources() []string {
	usb := filepath.Join(p.Dir, "Middlewares", "ST", "STM32_USB_Device_Library")
	core := filepath.Join(usb, "Core", "Src")
	return []string{
		filepath.Join(core, "usbd_core.c"),
		filepath.Join(core, "usbd_ctlreq.c"),
		filepath.Join(core, "usbd_ioreq.c"),
		filepath.Join(usb, "Class", "CDC", "Src", "usbd_cdc.c"),
	}
}

func (p Platform) files() (startup, system, linker string) {
	f, ok := systemFiles[p.Name]
	if !ok {
		f = systemFiles["f4"]
	}
	dir := p.configDir()
	return filepath.Join(dir, f.startup), filepath.Join(dir, f.system), filepath.Join(dir, f.linker)
}

// StartupFile is the vector table / reset handler assembly source.
func (p Platform) StartupFile() string { s, _, _ := p.files(); return s }

// SystemFile is the CMSIS system_<family>.c source.
func (p Platform) SystemFile() string { _, s, _ := p.files(); return s }

// LinkerScript is the flash linker script.
func (p Platform) LinkerScript() string { _, _, l := p.files(); return l }

// CompileFlags returns the code generation flags for a board.
func CompileFlags(b config.BoardProfile) []string {
	flags := []string{
		"-mcpu=" + b.CPU,
		"-mthumb",
		"-mfloat-abi=" + b.FloatABI,
		"-O2",
		"-Wall",
		"-ffunction-sections",
		"-fdata-sections",
		"-fno-exceptions",
		"-fno-rtti",
	}
	if b.FloatABI == "hard" && b.FPU != "" {
		flags = append(flags, "-mfpu="+b.FPU)
	}
	return flags
}

// Defines returns the preprocessor defines for a board.
func Defines(b config.BoardProfile) []string {
	return []string{b.MCU, "USE_HAL_DRIVER"}
}

// LinkFlags returns the linker flags for a board.
func LinkFlags(b config.BoardProfile, linkerScript, mapFile string) []string {
	return []string{
		"-mcpu=" + b.CPU,
		"-mthumb",
		"-mfloat-abi=" + b.FloatABI,
		"-T" + linkerScript,
		"-Wl,--gc-sections",
		"-Wl,-Map=" + mapFile,
		"-specs=nano.specs",
		"-specs=nosys.specs",
		"-lc",
		"-lm",
		"-lnosys",
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
