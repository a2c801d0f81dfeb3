// Package gpio provides the relay output pin with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "errors"

// Level is the electrical level of an output line.
type Level int

const (
	Low  Level = 0
	High Level = 1
)

// The relay board is active-low: Low energizes the coil.
const (
	LevelOn  = Low
	LevelOff = High
)

func (l Level) String() string {
	if l == Low {
		return "LOW"
	}
	return "HIGH"
}

// ErrNotOpen is returned by Read and Write when the line has not been acquired.
var ErrNotOpen = errors.New("gpio: pin not open")

// Pin is a single output line driving the relay.
type Pin interface {
	// Open acquires the line as an output, driven to LevelOff.
	Open() error

	// Close releases the line. Closing a closed pin is a no-op.
	Close() error

	// IsOpen reports whether the line is currently acquired.
	IsOpen() bool

	// Write drives the line to the given level.
	Write(level Level) error

	// Read returns the level the line is currently driven to.
	Read() (Level, error)

	// Line returns the BCM offset of the pin.
	Line() int
}

// Defaults (BCM numbering).
const (
	DefaultChip = "gpiochip0"
	DefaultPin  = 21
)
