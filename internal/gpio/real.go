//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// RealPin drives the relay from actual hardware using the Linux GPIO character device.
type RealPin struct {
	mu     sync.Mutex
	chip   string
	offset int
	line   *gpiocdev.Line
}

// NewRealPin creates a pin for the given chip and BCM offset. The line is not
// requested until Open.
func NewRealPin(chip string, offset int) *RealPin {
	return &RealPin{chip: chip, offset: offset}
}

// Open requests the line as an output, initially driven to LevelOff so that
// acquiring the pin never energizes the relay.
func (p *RealPin) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line != nil {
		return nil
	}
	l, err := gpiocdev.RequestLine(p.chip, p.offset,
		gpiocdev.AsOutput(int(LevelOff)),
		gpiocdev.WithConsumer("coffee-relay"))
	if err != nil {
		return fmt.Errorf("request pin %d on %s: %w", p.offset, p.chip, err)
	}
	p.line = l
	return nil
}

// Close releases the line.
// The line is reconfigured as an input with pull-up before release. The relay
// board is active-low, so a floating or pulled-down line would energize it.
func (p *RealPin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line == nil {
		return nil
	}

	var errs []error
	if err := p.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", p.offset, err))
	}
	if err := p.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", p.offset, err))
	}
	p.line = nil

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// IsOpen reports whether the line is requested.
func (p *RealPin) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.line != nil
}

// Write drives the line.
func (p *RealPin) Write(level Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line == nil {
		return ErrNotOpen
	}
	if err := p.line.SetValue(int(level)); err != nil {
		return fmt.Errorf("write pin %d: %w", p.offset, err)
	}
	return nil
}

// Read returns the current value of the line.
func (p *RealPin) Read() (Level, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.line == nil {
		return LevelOff, ErrNotOpen
	}
	v, err := p.line.Value()
	if err != nil {
		return LevelOff, fmt.Errorf("read pin %d: %w", p.offset, err)
	}
	if v == 0 {
		return Low, nil
	}
	return High, nil
}

// Line returns the BCM offset.
func (p *RealPin) Line() int { return p.offset }
