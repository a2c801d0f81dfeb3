// Package actuator owns the relay pin and the logical device state derived
// from it. It translates on/off intent into pin operations.
package actuator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sweeney/coffee-relay/internal/gpio"
)

// State is the logical state of the relay as reported to callers.
type State string

const (
	StateOn          State = "ON"
	StateOff         State = "OFF"
	StateUnavailable State = "UNAVAILABLE"
)

// ErrHardwareFault matches every *HardwareFault via errors.Is.
var ErrHardwareFault = errors.New("hardware fault")

// HardwareFault reports a failed pin operation.
type HardwareFault struct {
	Op   string // open, close, read or write
	Line int
	Err  error
}

func (f *HardwareFault) Error() string {
	return fmt.Sprintf("hardware fault: %s pin %d: %v", f.Op, f.Line, f.Err)
}

func (f *HardwareFault) Unwrap() error { return f.Err }

// Is reports whether target is ErrHardwareFault.
func (f *HardwareFault) Is(target error) bool { return target == ErrHardwareFault }

// Controller drives a single relay pin. It is safe for concurrent use.
type Controller struct {
	mu    sync.Mutex
	pin   gpio.Pin
	state State
	log   zerolog.Logger
}

// New creates a Controller for the given pin. The device is assumed unpowered
// until the first command.
func New(pin gpio.Pin, logger zerolog.Logger) *Controller {
	return &Controller{
		pin:   pin,
		state: StateOff,
		log:   logger.With().Str("component", "actuator").Int("pin", pin.Line()).Logger(),
	}
}

// Energize acquires the pin if needed and drives it to the on level.
// Calling it while already energized rewrites the same level.
func (c *Controller) Energize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.acquire(); err != nil {
		return err
	}
	if err := c.pin.Write(gpio.LevelOn); err != nil {
		c.resync()
		return c.fault("write", err)
	}
	if c.state != StateOn {
		c.log.Info().Msg("relay energized")
	}
	c.state = StateOn
	return nil
}

// DeEnergize drives the pin to the off level and releases it.
// Calling it while already unpowered re-asserts the off level.
func (c *Controller) DeEnergize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.acquire(); err != nil {
		return err
	}
	if err := c.pin.Write(gpio.LevelOff); err != nil {
		c.resync()
		return c.fault("write", err)
	}
	if c.state != StateOff {
		c.log.Info().Msg("relay de-energized")
	}
	c.state = StateOff

	if err := c.pin.Close(); err != nil {
		return c.fault("close", err)
	}
	return nil
}

// Status reads the live pin level. A pin that cannot be acquired or read
// is reported as StateUnavailable. A pin acquired only for the read is
// released again.
func (c *Controller) Status() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	opened := false
	if !c.pin.IsOpen() {
		if err := c.pin.Open(); err != nil {
			c.log.Warn().Err(err).Msg("status: open pin")
			return StateUnavailable
		}
		opened = true
	}

	lvl, err := c.pin.Read()
	if opened {
		if cerr := c.pin.Close(); cerr != nil {
			c.log.Warn().Err(cerr).Msg("status: release pin")
		}
	}
	if err != nil {
		c.log.Warn().Err(err).Msg("status: read pin")
		return StateUnavailable
	}
	return levelState(lvl)
}

// State returns the last commanded (or re-read) state without touching the pin.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) acquire() error {
	if c.pin.IsOpen() {
		return nil
	}
	if err := c.pin.Open(); err != nil {
		return c.fault("open", err)
	}
	return nil
}

// resync replaces the cached state with what the pin reports after a failed
// write. If the pin cannot be read either, the cached state is kept.
func (c *Controller) resync() {
	lvl, err := c.pin.Read()
	if err != nil {
		c.log.Warn().Err(err).Msg("re-read after failed write")
		return
	}
	c.state = levelState(lvl)
}

func (c *Controller) fault(op string, err error) error {
	f := &HardwareFault{Op: op, Line: c.pin.Line(), Err: err}
	c.log.Error().Err(err).Str("op", op).Msg("pin operation failed")
	return f
}

func levelState(l gpio.Level) State {
	if l == gpio.LevelOn {
		return StateOn
	}
	return StateOff
}
