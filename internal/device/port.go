package device

import (
	"errors"
	"fmt"
	"strconv"

	"lumos/internal/config"
)

// ErrNoPorts is returned when port auto-detection finds nothing.
var ErrNoPorts = errors.New("no serial ports found")

// ResolvePort picks the serial port for flash and monitor:
// an explicit port, then the cached port if it is still present, then the
// only available port, then an interactive choice. The result is cached in
// build/cache.yaml.
func (d *Device) ResolvePort(explicit string) (string, error) {
	cache, err := config.LoadCache(d.Root)
	if err != nil {
		d.Log.Warn("Warning: %v\n", err)
	}

	if explicit != "" {
		d.remember(cache, explicit, false)
		return explicit, nil
	}

	ports, err := d.Serial.ListPorts()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", ErrNoPorts
	}

	if cached := cache.SerialPort; cached != "" {
		if contains(ports, cached) {
			d.Log.Printf("Using cached port: %s\n", cached)
			return cached, nil
		}
		d.Log.Printf("Cached port '%s' no longer available\n", cached)
	}

	var selected string
	if len(ports) == 1 {
		selected = ports[0]
		d.Log.Printf("Auto-selected port: %s\n", selected)
	} else {
		d.Log.Printf("Available serial ports:\n")
		for i, p := range ports {
			d.Log.Printf("  %d. %s\n", i+1, p)
		}
		d.Log.Printf("Enter choice [1-%d]: ", len(ports))

		input := d.readLine()
		n, err := strconv.Atoi(input)
		if err != nil {
			return "", fmt.Errorf("invalid input %q", input)
		}
		if n < 1 || n > len(ports) {
			return "", fmt.Errorf("invalid choice %d", n)
		}
		selected = ports[n-1]
	}

	d.remember(cache, selected, true)
	return selected, nil
}

// remember saves port in the cache. A failing cache write is only a warning.
func (d *Device) remember(cache *config.PortCache, port string, announce bool) {
	cache.SerialPort = port
	if err := config.SaveCache(d.Root, cache); err != nil {
		d.Log.Warn("Warning: could not cache port: %v\n", err)
		return
	}
	if announce {
		d.Log.Printf("Port cached for future use\n")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
