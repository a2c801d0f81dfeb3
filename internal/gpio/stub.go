//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealPin is not available on non-Linux platforms. Every hardware call fails,
// which the actuator reports as a hardware fault.
type RealPin struct {
	offset int
}

// NewRealPin returns a pin whose operations always fail.
func NewRealPin(chip string, offset int) *RealPin {
	return &RealPin{offset: offset}
}

// Open is not implemented on non-Linux platforms.
func (p *RealPin) Open() error { return errUnsupported }

// Close is a no-op.
func (p *RealPin) Close() error { return nil }

// IsOpen always reports false.
func (p *RealPin) IsOpen() bool { return false }

// Write is not implemented on non-Linux platforms.
func (p *RealPin) Write(Level) error { return errUnsupported }

// Read is not implemented on non-Linux platforms.
func (p *RealPin) Read() (Level, error) { return LevelOff, errUnsupported }

// Line returns the configured offset.
func (p *RealPin) Line() int { return p.offset }
