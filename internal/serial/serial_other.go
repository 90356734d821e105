//go:build !linux && !darwin

package serial

import "time"

// Port is unavailable on this platform.
type Port struct{}

// Open always fails on this platform.
func Open(name string, baud int) (*Port, error) {
	if err := ValidateBaud(baud); err != nil {
		return nil, err
	}
	return nil, ErrUnsupportedPlatform
}

func (p *Port) Name() string { return "" }

func (p *Port) Read(b []byte) (int, error) { return 0, ErrUnsupportedPlatform }

func (p *Port) Write(b []byte) (int, error) { return 0, ErrUnsupportedPlatform }

func (p *Port) Close() error { return nil }

func (p *Port) SetDTR(on bool) error { return ErrUnsupportedPlatform }

func (p *Port) PulseDTR(time.Duration, bool) error { return ErrUnsupportedPlatform }
