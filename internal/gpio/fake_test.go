package gpio

import (
	"errors"
	"sync"
	"testing"
)

var _ Pin = (*FakePin)(nil)
var _ Pin = (*RealPin)(nil)

func TestFakePinStartsClosedAndOff(t *testing.T) {
	f := NewFakePin(DefaultPin)

	if f.IsOpen() {
		t.Error("should not be open initially")
	}
	if f.Level() != LevelOff {
		t.Errorf("level: got %v, want %v", f.Level(), LevelOff)
	}
	if f.Line() != DefaultPin {
		t.Errorf("line: got %d, want %d", f.Line(), DefaultPin)
	}
}

func TestFakePinOpenWriteRead(t *testing.T) {
	f := NewFakePin(21)

	if err := f.Open(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.IsOpen() {
		t.Fatal("should be open after Open()")
	}

	if err := f.Write(LevelOn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lvl, err := f.Read()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lvl != Low {
		t.Errorf("read: got %v, want LOW", lvl)
	}

	if err := f.Write(LevelOff); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lvl, _ = f.Read()
	if lvl != High {
		t.Errorf("read: got %v, want HIGH", lvl)
	}

	writes := f.Writes()
	if len(writes) != 2 || writes[0] != Low || writes[1] != High {
		t.Errorf("writes: got %v, want [LOW HIGH]", writes)
	}
}

func TestFakePinRequiresOpen(t *testing.T) {
	f := NewFakePin(21)

	if err := f.Write(LevelOn); !errors.Is(err, ErrNotOpen) {
		t.Errorf("write on closed pin: got %v, want ErrNotOpen", err)
	}
	if _, err := f.Read(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("read on closed pin: got %v, want ErrNotOpen", err)
	}
}

func TestFakePinOpenDrivesOff(t *testing.T) {
	f := NewFakePin(21)
	f.Open()
	f.Write(LevelOn)
	f.Close()

	f.Open()
	lvl, _ := f.Read()
	if lvl != LevelOff {
		t.Errorf("after reopen: got %v, want %v", lvl, LevelOff)
	}
}

func TestFakePinInjectedErrors(t *testing.T) {
	f := NewFakePin(21)
	f.OpenError = errors.New("simulated open")

	if err := f.Open(); err == nil || err.Error() != "simulated open" {
		t.Errorf("open: got %v, want simulated open", err)
	}
	if f.IsOpen() {
		t.Error("failed open should leave pin closed")
	}

	f.SetErrors(nil, nil, errors.New("simulated write"), errors.New("simulated read"))
	f.Open()
	if err := f.Write(LevelOn); err == nil {
		t.Error("expected write error")
	}
	if _, err := f.Read(); err == nil {
		t.Error("expected read error")
	}
	if len(f.Writes()) != 0 {
		t.Errorf("failed writes should not be recorded, got %v", f.Writes())
	}
}

func TestFakePinCounters(t *testing.T) {
	f := NewFakePin(21)
	f.Open()
	f.Write(LevelOn)
	f.Write(LevelOn)
	f.Write(LevelOff)
	f.Close()
	f.Close() // closing a closed pin is not counted

	if got := f.CountWrites(LevelOn); got != 2 {
		t.Errorf("on writes: got %d, want 2", got)
	}
	if got := f.CountWrites(LevelOff); got != 1 {
		t.Errorf("off writes: got %d, want 1", got)
	}
	if f.Opens() != 1 {
		t.Errorf("opens: got %d, want 1", f.Opens())
	}
	if f.Closes() != 1 {
		t.Errorf("closes: got %d, want 1", f.Closes())
	}
}

func TestFakePinReset(t *testing.T) {
	f := NewFakePin(21)
	f.Open()
	f.Write(LevelOn)
	f.WriteError = errors.New("x")

	f.Reset()

	if f.IsOpen() || f.Level() != LevelOff || len(f.Writes()) != 0 || f.WriteError != nil {
		t.Errorf("reset did not clear state: open=%v level=%v writes=%v", f.IsOpen(), f.Level(), f.Writes())
	}
}

func TestFakePinConcurrentUse(t *testing.T) {
	f := NewFakePin(21)
	f.Open()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				f.Write(LevelOn)
			} else {
				f.Read()
			}
		}(i)
	}
	wg.Wait()

	if got := f.CountWrites(LevelOn); got != 5 {
		t.Errorf("on writes: got %d, want 5", got)
	}
}

func TestLevelString(t *testing.T) {
	if Low.String() != "LOW" {
		t.Errorf("Low: got %q", Low.String())
	}
	if High.String() != "HIGH" {
		t.Errorf("High: got %q", High.String())
	}
}
