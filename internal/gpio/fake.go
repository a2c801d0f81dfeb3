package gpio

import "sync"

// FakePin is a test double for Pin. It is safe for concurrent use.
type FakePin struct {
	mu sync.Mutex

	line  int
	open  bool
	level Level

	// Writes records every level successfully written, in order.
	writes []Level

	opens  int
	closes int

	// Error injection. Each error, when set, is returned by the matching call.
	OpenError  error
	CloseError error
	WriteError error
	ReadError  error
}

// NewFakePin creates a closed FakePin whose line reads as LevelOff.
func NewFakePin(line int) *FakePin {
	return &FakePin{line: line, level: LevelOff}
}

// Open marks the pin as acquired and drives it to LevelOff.
func (f *FakePin) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OpenError != nil {
		return f.OpenError
	}
	f.open = true
	f.level = LevelOff
	f.opens++
	return nil
}

// Close marks the pin as released.
func (f *FakePin) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CloseError != nil {
		return f.CloseError
	}
	if f.open {
		f.closes++
	}
	f.open = false
	return nil
}

// IsOpen reports whether Open has been called without a subsequent Close.
func (f *FakePin) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Write records the level.
func (f *FakePin) Write(level Level) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return ErrNotOpen
	}
	if f.WriteError != nil {
		return f.WriteError
	}
	f.level = level
	f.writes = append(f.writes, level)
	return nil
}

// Read returns the last written level.
func (f *FakePin) Read() (Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return LevelOff, ErrNotOpen
	}
	if f.ReadError != nil {
		return LevelOff, f.ReadError
	}
	return f.level, nil
}

// Line returns the configured offset.
func (f *FakePin) Line() int { return f.line }

// SetErrors replaces all injected errors atomically.
func (f *FakePin) SetErrors(open, close, write, read error) {
	f.mu.Lock()
	f.OpenError, f.CloseError, f.WriteError, f.ReadError = open, close, write, read
	f.mu.Unlock()
}

// Writes returns a copy of the recorded writes.
func (f *FakePin) Writes() []Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Level, len(f.writes))
	copy(out, f.writes)
	return out
}

// CountWrites returns how many times level was written.
func (f *FakePin) CountWrites(level Level) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, l := range f.writes {
		if l == level {
			n++
		}
	}
	return n
}

// Opens returns the number of successful Open calls.
func (f *FakePin) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

// Closes returns the number of Close calls that released an open line.
func (f *FakePin) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// Level returns the level the fake line is driven to, regardless of open state.
func (f *FakePin) Level() Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level
}

// Reset clears recorded calls and injected errors, and closes the pin.
func (f *FakePin) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.level = LevelOff
	f.writes = nil
	f.opens = 0
	f.closes = 0
	f.OpenError, f.CloseError, f.WriteError, f.ReadError = nil, nil, nil, nil
}
