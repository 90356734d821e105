//go:build linux || darwin

package serial

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Port is an open tty configured for raw 8N1 I/O.
type Port struct {
	f    *os.File
	name string
}

// Open opens name and configures it for raw 8N1 at baud.
// The descriptor is opened non-blocking so reads go through the runtime
// poller and Close unblocks a pending Read.
func Open(name string, baud int) (*Port, error) {
	if err := ValidateBaud(baud); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(name, os.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}

	p := &Port{f: f, name: name}
	if err := p.control(func(fd int) error { return configure(fd, baud) }); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to configure %s: %w", name, err)
	}
	return p, nil
}

// Name returns the device path.
func (p *Port) Name() string { return p.name }

func (p *Port) Read(b []byte) (int, error) { return p.f.Read(b) }

func (p *Port) Write(b []byte) (int, error) { return p.f.Write(b) }

// Close releases the device.
func (p *Port) Close() error { return p.f.Close() }

// SetDTR raises or lowers the DTR line.
func (p *Port) SetDTR(on bool) error {
	req := uint(unix.TIOCMBIC)
	if on {
		req = unix.TIOCMBIS
	}
	return p.control(func(fd int) error {
		return unix.IoctlSetPointerInt(fd, req, unix.TIOCM_DTR)
	})
}

// PulseDTR drives DTR to its active level for d and restores it.
// With activeLow the line idles high and is pulled low for the pulse.
func (p *Port) PulseDTR(d time.Duration, activeLow bool) error {
	if err := p.SetDTR(!activeLow); err != nil {
		return fmt.Errorf("failed to set DTR: %w", err)
	}
	time.Sleep(d)
	if err := p.SetDTR(activeLow); err != nil {
		return fmt.Errorf("failed to restore DTR: %w", err)
	}
	return nil
}

func (p *Port) control(fn func(fd int) error) error {
	raw, err := p.f.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	if err := raw.Control(func(fd uintptr) { opErr = fn(int(fd)) }); err != nil {
		return err
	}
	return opErr
}

// configure puts the terminal in raw 8N1 mode without flow control,
// in the manner of x/term MakeRaw plus the line settings a UART needs.
func configure(fd, baud int) error {
	t, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return err
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF | unix.IXANY
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN | unix.ECHOE
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CRTSCTS
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	if err := setSpeed(t, baud); err != nil {
		return err
	}
	return unix.IoctlSetTermios(fd, ioctlSetTermios, t)
}

