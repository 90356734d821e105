package builder

import (
	"bufio"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	includePattern = regexp.MustCompile(`^\s*#\s*include\s+[<"]([^>"]+)[>"]`)
	halPattern     = regexp.MustCompile(`stm32[a-z0-9]+_hal_([a-z0-9_]+)\.h`)
)

// headerRule maps middleware headers that do not follow the
// stm32xxxx_hal_<module>.h naming onto the HAL modules they need.
// Exact rules match the header file name, the others match a substring.
type headerRule struct {
	pattern string
	modules []string
	exact   bool
}

var headerRules = []headerRule{
	// USB device
	{"usbd_core.h", []string{"pcd"}, true},
	{"usbd_cdc.h", []string{"pcd"}, true},
	{"usbd_cdc_if.h", []string{"pcd"}, true},
	{"usbd_msc.h", []string{"pcd"}, true},
	{"usbd_hid.h", []string{"pcd"}, true},
	{"usbd_conf.h", []string{"pcd"}, true},
	{"usbd_desc.h", []string{"pcd"}, true},
	// USB host
	{"usbh_core.h", []string{"hcd"}, true},
	{"usbh_def.h", []string{"hcd"}, true},
	{"usbh_conf.h", []string{"hcd"}, true},
	// Networking
	{"lwip", []string{"eth"}, false},
	{"ethernetif.h", []string{"eth"}, true},
	// FatFs
	{"ff.h", []string{"sdmmc"}, true},
	{"diskio.h", []string{"sdmmc"}, true},
	// Display
	{"ltdc", []string{"ltdc", "dma2d"}, false},
	// RTOS timebase
	{"FreeRTOS.h", []string{"tim"}, true},
	{"cmsis_os", []string{"tim"}, false},
}

// ParseIncludes returns the targets of every #include directive in r, in order.
func ParseIncludes(r io.Reader) []string {
	var includes []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if m := includePattern.FindStringSubmatch(scanner.Text()); m != nil {
			includes = append(includes, m[1])
		}
	}
	return includes
}

// ModulesFromIncludes maps include targets to HAL module names, sorted and unique.
func ModulesFromIncludes(includes []string) []string {
	set := map[string]struct{}{}

	for _, inc := range includes {
		if m := halPattern.FindStringSubmatch(inc); m != nil {
			mod := m[1]
			// _ex sources are pulled in alongside their base module.
			if mod != "hal" && mod != "def" && mod != "conf" && !strings.Contains(mod, "_ex") {
				set[mod] = struct{}{}
			}
		}

		base := path.Base(filepath.ToSlash(inc))
		for _, rule := range headerRules {
			matched := strings.Contains(inc, rule.pattern)
			if rule.exact {
				matched = base == rule.pattern
			}
			if !matched {
				continue
			}
			for _, mod := range rule.modules {
				set[mod] = struct{}{}
			}
		}
	}

	modules := make([]string, 0, len(set))
	for mod := range set {
		modules = append(modules, mod)
	}
	sort.Strings(modules)
	return modules
}

// DetectModules scans the project sources and the headers directly under
// root/include for HAL module usage. Unreadable files are skipped.
func DetectModules(root string, sources []string) []string {
	var includes []string

	scan := func(file string) {
		f, err := os.Open(file)
		if err != nil {
			return
		}
		defer f.Close()
		includes = append(includes, ParseIncludes(f)...)
	}

	for _, src := range sources {
		scan(filepath.Join(root, src))
	}

	entries, err := os.ReadDir(filepath.Join(root, "include"))
	if err == nil {
		for _, e := range entries {
			name := e.Name()
			if e.Type().IsRegular() && (strings.HasSuffix(name, ".h") || strings.HasSuffix(name, ".hpp")) {
				scan(filepath.Join(root, "include", name))
			}
		}
	}

	return ModulesFromIncludes(includes)
}
