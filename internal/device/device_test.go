package device

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumos/internal/config"
	"lumos/internal/logger"
	"lumos/internal/runner/runnertest"
)

// syncBuffer is a bytes.Buffer safe for the monitor goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeConn struct {
	data    chan []byte
	closed  chan struct{}
	once    sync.Once
	pulses  []time.Duration
	pulseAt bool
}

func newFakeConn(chunks ...string) *fakeConn {
	c := &fakeConn{data: make(chan []byte, len(chunks)), closed: make(chan struct{})}
	for _, ch := range chunks {
		c.data <- []byte(ch)
	}
	return c
}

func (c *fakeConn) Read(p []byte) (int, error) {
	select {
	case b := <-c.data:
		return copy(p, b), nil
	case <-c.closed:
		return 0, os.ErrClosed
	}
}

func (c *fakeConn) Write(p []byte) (int, error) { return len(p), nil }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) PulseDTR(d time.Duration, activeLow bool) error {
	c.pulses = append(c.pulses, d)
	c.pulseAt = activeLow
	return nil
}

type fakeSerial struct {
	ports  []string
	conn   *fakeConn
	opened []string
	bauds  []int
}

func (s *fakeSerial) ListPorts() ([]string, error) { return s.ports, nil }

func (s *fakeSerial) Open(name string, baud int) (Conn, error) {
	s.opened = append(s.opened, name)
	s.bauds = append(s.bauds, baud)
	if s.conn == nil {
		return nil, errors.New("no such device")
	}
	return s.conn, nil
}

func newDevice(t *testing.T, s Serial, input string) (*Device, *syncBuffer, *runnertest.Fake) {
	t.Helper()
	out := &syncBuffer{}
	fake := runnertest.New()
	return New(t.TempDir(), s, fake, strings.NewReader(input), logger.New(out, out, false)), out, fake
}

func TestPorts(t *testing.T) {
	d, out, _ := newDevice(t, &fakeSerial{}, "")
	require.NoError(t, d.Ports())
	assert.Contains(t, out.String(), "Scanning for serial ports...")
	assert.Contains(t, out.String(), "No serial ports found.")

	d, out, _ = newDevice(t, &fakeSerial{ports: []string{"/dev/ttyACM0", "/dev/ttyUSB0"}}, "")
	require.NoError(t, d.Ports())
	assert.Contains(t, out.String(), "Available serial ports:\n  /dev/ttyACM0\n  /dev/ttyUSB0\n")
}

func TestResolvePortExplicitIsCached(t *testing.T) {
	d, _, _ := newDevice(t, &fakeSerial{}, "")

	port, err := d.ResolvePort("/dev/ttyUSB3")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB3", port)

	cache, err := config.LoadCache(d.Root)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB3", cache.SerialPort)
}

func TestResolvePortUsesCache(t *testing.T) {
	d, out, _ := newDevice(t, &fakeSerial{ports: []string{"/dev/ttyACM0", "/dev/ttyUSB0"}}, "")
	require.NoError(t, config.SaveCache(d.Root, &config.PortCache{SerialPort: "/dev/ttyUSB0"}))

	port, err := d.ResolvePort("")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", port)
	assert.Contains(t, out.String(), "Using cached port: /dev/ttyUSB0")
}

func TestResolvePortStaleCacheSingleAutoSelect(t *testing.T) {
	d, out, _ := newDevice(t, &fakeSerial{ports: []string{"/dev/ttyACM0"}}, "")
	require.NoError(t, config.SaveCache(d.Root, &config.PortCache{SerialPort: "/dev/ttyUSB9"}))

	port, err := d.ResolvePort("")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", port)
	assert.Contains(t, out.String(), "Cached port '/dev/ttyUSB9' no longer available")
	assert.Contains(t, out.String(), "Auto-selected port: /dev/ttyACM0")

	cache, err := config.LoadCache(d.Root)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", cache.SerialPort)
}

func TestResolvePortPrompt(t *testing.T) {
	d, out, _ := newDevice(t, &fakeSerial{ports: []string{"/dev/ttyACM0", "/dev/ttyUSB0"}}, "2\n")

	port, err := d.ResolvePort("")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", port)
	assert.Contains(t, out.String(), "Enter choice [1-2]: ")
	assert.Contains(t, out.String(), "Port cached for future use")
}

func TestResolvePortPromptInvalid(t *testing.T) {
	for _, input := range []string{"x\n", "5\n", ""} {
		d, _, _ := newDevice(t, &fakeSerial{ports: []string{"/dev/ttyACM0", "/dev/ttyUSB0"}}, input)
		_, err := d.ResolvePort("")
		assert.Error(t, err, "input %q", input)
	}
}

func TestResolvePortNoPorts(t *testing.T) {
	d, _, _ := newDevice(t, &fakeSerial{}, "")
	_, err := d.ResolvePort("")
	assert.ErrorIs(t, err, ErrNoPorts)
}

func writeFirmware(t *testing.T, root string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build"), 0755))
	require.NoError(t, os.WriteFile(FirmwarePath(root), make([]byte, size), 0644))
}

func TestFlashRequiresFirmwareBeforePort(t *testing.T) {
	s := &fakeSerial{}
	d, _, fake := newDevice(t, s, "")

	err := d.Flash(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoFirmware)
	assert.Contains(t, err.Error(), "Run 'lumos build' first")
	assert.Empty(t, fake.Calls)
}

func TestFlash(t *testing.T) {
	d, out, fake := newDevice(t, &fakeSerial{ports: []string{"/dev/ttyACM0"}}, "")
	writeFirmware(t, d.Root, 2048)

	require.NoError(t, d.Flash(context.Background(), ""))
	text := out.String()
	assert.Contains(t, text, "Size: 2048 bytes")
	assert.Contains(t, text, "Port: /dev/ttyACM0")
	assert.Contains(t, text, "✓ Firmware flashed successfully!")

	calls := fake.Named("stm32flash")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"-b", "115200", "-w", FirmwarePath(d.Root), "-v", "-S", "0x08000000", "-g", "0x08000000", "/dev/ttyACM0"}, calls[0].Args)
}

func TestFlashFailure(t *testing.T) {
	d, out, fake := newDevice(t, &fakeSerial{}, "")
	writeFirmware(t, d.Root, 16)
	fake.On("stm32flash", runnertest.Fail(1, "Failed to init device."))

	err := d.Flash(context.Background(), "/dev/ttyUSB0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to init device.")
	assert.NotContains(t, out.String(), "flashed successfully")
}

func TestMonitorStopsOnCancel(t *testing.T) {
	conn := newFakeConn("hello from MCU\n")
	s := &fakeSerial{conn: conn}
	d, out, _ := newDevice(t, s, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Monitor(ctx, "/dev/ttyACM0", 0) }()

	require.Eventually(t, func() bool { return strings.Contains(out.String(), "hello from MCU") }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}

	text := out.String()
	assert.Contains(t, text, "Opening port: /dev/ttyACM0 at 115200 baud")
	assert.Contains(t, text, "Connected! Monitoring serial data (Press Ctrl+C to exit)...")
	assert.Contains(t, text, "Monitoring stopped.")
	assert.Equal(t, []int{115200}, s.bauds)
}

func TestMonitorRejectsBaud(t *testing.T) {
	s := &fakeSerial{conn: newFakeConn()}
	d, _, _ := newDevice(t, s, "")

	err := d.Monitor(context.Background(), "/dev/ttyACM0", 1200)
	assert.Error(t, err)
	assert.Empty(t, s.opened)
}

func TestMonitorOpenFailure(t *testing.T) {
	d, _, _ := newDevice(t, &fakeSerial{}, "")
	err := d.Monitor(context.Background(), "/dev/ttyACM0", 9600)
	assert.ErrorContains(t, err, "failed to connect")
}

func TestReset(t *testing.T) {
	conn := newFakeConn()
	d, out, _ := newDevice(t, &fakeSerial{conn: conn}, "")

	require.NoError(t, d.Reset(context.Background(), "/dev/ttyUSB0"))
	assert.Equal(t, []time.Duration{ResetPulse}, conn.pulses)
	assert.True(t, conn.pulseAt)
	assert.Contains(t, out.String(), "Pulsing DTR to reset MCU...")
	assert.Contains(t, out.String(), "MCU should be reset now.")
}

var _ io.ReadWriteCloser = (*fakeConn)(nil)
