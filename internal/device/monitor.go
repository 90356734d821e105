package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"lumos/internal/serial"
)

// ResetPulse is how long DTR is held active to reset the MCU.
const ResetPulse = 100 * time.Millisecond

// Monitor copies serial output to the log until ctx is cancelled.
// Cancellation is the normal way a session ends and is not an error.
func (d *Device) Monitor(ctx context.Context, explicitPort string, baud int) error {
	if baud == 0 {
		baud = serial.DefaultBaud
	}
	if err := serial.ValidateBaud(baud); err != nil {
		return err
	}

	port, err := d.ResolvePort(explicitPort)
	if err != nil {
		return err
	}

	d.Log.Printf("Opening port: %s at %d baud\n", port, baud)
	conn, err := d.Serial.Open(port, baud)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	var once sync.Once
	closeConn := func() { once.Do(func() { _ = conn.Close() }) }
	defer closeConn()

	d.Log.Printf("Connected! Monitoring serial data (Press Ctrl+C to exit)...\n")
	d.Log.Printf("%s\n", strings.Repeat("-", 59))

	stop := context.AfterFunc(ctx, closeConn)
	defer stop()

	_, err = io.Copy(d.Log.Out(), conn)
	if ctx.Err() != nil {
		d.Log.Printf("\nMonitoring stopped.\n")
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return fmt.Errorf("serial port %s closed", port)
	}
	return fmt.Errorf("serial read failed: %w", err)
}

// Reset pulses DTR (active low) on port to reset the MCU.
func (d *Device) Reset(ctx context.Context, port string) error {
	conn, err := d.Serial.Open(port, serial.DefaultBaud)
	if err != nil {
		return fmt.Errorf("failed to open port: %w", err)
	}
	defer conn.Close()

	d.Log.Printf("Pulsing DTR to reset MCU...\n")
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := conn.PulseDTR(ResetPulse, true); err != nil {
		return fmt.Errorf("failed to pulse DTR: %w", err)
	}
	d.Log.Printf("MCU should be reset now.\n")
	return nil
}
