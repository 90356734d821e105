// Package device implements the commands that talk to a connected board:
// ports, flash, monitor and reset.
package device

import (
	"bufio"
	"io"
	"strings"
	"time"

	"lumos/internal/logger"
	"lumos/internal/runner"
	"lumos/internal/serial"
)

// Conn is an open serial connection.
type Conn interface {
	io.ReadWriteCloser
	PulseDTR(d time.Duration, activeLow bool) error
}

// Serial lists and opens serial ports.
type Serial interface {
	ListPorts() ([]string, error)
	Open(name string, baud int) (Conn, error)
}

// SystemSerial is the Serial backed by the host's tty devices.
type SystemSerial struct{}

// ListPorts implements Serial.
func (SystemSerial) ListPorts() ([]string, error) { return serial.ListPorts() }

// Open implements Serial.
func (SystemSerial) Open(name string, baud int) (Conn, error) {
	p, err := serial.Open(name, baud)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DefaultFlasher is the external flashing tool.
const DefaultFlasher = "stm32flash"

// Device runs board-facing commands for the project rooted at Root.
type Device struct {
	Root    string
	Serial  Serial
	Invoker runner.Invoker
	Log     *logger.Logger
	Flasher string

	in *bufio.Reader
}

// New returns a Device reading interactive answers from in.
func New(root string, s Serial, inv runner.Invoker, in io.Reader, log *logger.Logger) *Device {
	if in == nil {
		in = strings.NewReader("")
	}
	return &Device{
		Root:    root,
		Serial:  s,
		Invoker: inv,
		Log:     log,
		Flasher: DefaultFlasher,
		in:      bufio.NewReader(in),
	}
}

// Ports prints the available serial ports.
func (d *Device) Ports() error {
	d.Log.Printf("Scanning for serial ports...\n")
	ports, err := d.Serial.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		d.Log.Printf("No serial ports found.\n")
		return nil
	}
	d.Log.Printf("Available serial ports:\n")
	for _, p := range ports {
		d.Log.Printf("  %s\n", p)
	}
	return nil
}

func (d *Device) readLine() string {
	line, _ := d.in.ReadString('\n')
	return strings.TrimSpace(line)
}
