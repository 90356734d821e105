package device

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"lumos/internal/config"
	"lumos/internal/runner"
)

// FlashAddress is the start of the STM32 internal flash.
const FlashAddress = "0x08000000"

// FlashBaud is the bootloader line speed.
const FlashBaud = 115200

// ErrNoFirmware is returned when build/firmware.bin is missing.
var ErrNoFirmware = errors.New("firmware.bin not found in build directory\nRun 'lumos build' first to compile the firmware")

// FirmwarePath returns build/firmware.bin for a project root.
func FirmwarePath(root string) string {
	return filepath.Join(config.BuildDir(root), "firmware.bin")
}

// Flash writes build/firmware.bin through the serial bootloader. The firmware
// is checked before any port is selected.
func (d *Device) Flash(ctx context.Context, explicitPort string) error {
	firmware := FirmwarePath(d.Root)
	info, err := os.Stat(firmware)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNoFirmware
		}
		return fmt.Errorf("failed to read firmware: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("firmware.bin is empty; rebuild with 'lumos build'")
	}

	port, err := d.ResolvePort(explicitPort)
	if err != nil {
		return err
	}

	d.Log.Printf("\nFlashing firmware...\n")
	d.Log.Printf("  Firmware: %s\n", firmware)
	d.Log.Printf("  Size: %d bytes\n", info.Size())
	d.Log.Printf("  Port: %s\n\n", port)

	cmd := runner.Command{
		Name: d.Flasher,
		Args: []string{
			"-b", fmt.Sprint(FlashBaud),
			"-w", firmware,
			"-v",
			"-S", FlashAddress,
			"-g", FlashAddress,
			port,
		},
		Dir: d.Root,
	}
	d.Log.Debug("Running: %s\n", cmd)

	res, err := runner.Run(ctx, d.Invoker, cmd)
	if out := res.Output(); out != "" && err == nil {
		d.Log.Debug("%s\n", out)
	}
	if err != nil {
		return fmt.Errorf("failed to flash firmware: %w", err)
	}

	d.Log.Printf("\n")
	d.Log.Success("Firmware flashed successfully!\n")
	return nil
}
