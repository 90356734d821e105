// Package serial lists serial devices and drives tty ports (raw 8N1 mode,
// DTR control) for the monitor and reset commands.
package serial

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
)

// DevDir is where serial device nodes live.
const DevDir = "/dev"

// portPatterns match USB serial adapters on macOS (tty.*, cu.*) and Linux.
var portPatterns = []string{"tty.*", "cu.*", "ttyUSB*", "ttyACM*"}

// DefaultBaud is used when the monitor command gets no baud argument.
const DefaultBaud = 115200

// BaudRates lists the supported line speeds.
var BaudRates = []int{9600, 19200, 38400, 57600, 115200, 230400}

// ErrUnsupportedBaud is returned for line speeds outside BaudRates.
var ErrUnsupportedBaud = errors.New("unsupported baud rate")

// ErrUnsupportedPlatform is returned on systems without termios support.
var ErrUnsupportedPlatform = errors.New("serial ports are not supported on this platform")

// ListPorts returns the serial device paths under /dev, sorted.
func ListPorts() ([]string, error) {
	return ListPortsIn(DevDir)
}

// ListPortsIn returns the serial device paths under dir, sorted.
func ListPortsIn(dir string) ([]string, error) {
	var ports []string
	for _, pattern := range portPatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		ports = append(ports, matches...)
	}
	sort.Strings(ports)
	return ports, nil
}

// ParseBaud converts a command-line baud argument and checks it is supported.
func ParseBaud(s string) (int, error) {
	baud, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid baud rate %q", s)
	}
	if err := ValidateBaud(baud); err != nil {
		return 0, err
	}
	return baud, nil
}

// ValidateBaud reports ErrUnsupportedBaud for speeds outside BaudRates.
func ValidateBaud(baud int) error {
	for _, b := range BaudRates {
		if b == baud {
			return nil
		}
	}
	return fmt.Errorf("%w: %d (supported: 9600, 19200, 38400, 57600, 115200, 230400)", ErrUnsupportedBaud, baud)
}
