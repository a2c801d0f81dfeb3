package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidTime is returned by ParseTimeOfDay for malformed input.
var ErrInvalidTime = errors.New("invalid time of day")

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour, Minute, Second int
}

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS" (24-hour clock).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	var vals [3]int
	limits := [3]int{23, 59, 59}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		vals[i] = n
	}
	return TimeOfDay{Hour: vals[0], Minute: vals[1], Second: vals[2]}, nil
}

// String formats as HH:MM:SS.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Resolve returns the next instant at tod strictly after now, in now's
// location. A target at or before now rolls forward to the same clock time on
// the next day. On the day clocks fall back a repeated time of day has two
// instants and the earliest one after now is chosen.
func Resolve(now time.Time, tod TimeOfDay) time.Time {
	loc := now.Location()
	y, m, d := now.Date()
	for _, t := range occurrences(y, m, d, tod, loc) {
		if t.After(now) {
			return t
		}
	}
	y, m, d = time.Date(y, m, d+1, 12, 0, 0, 0, loc).Date()
	return occurrences(y, m, d, tod, loc)[0]
}

// occurrences returns the instants, in order, whose wall clock in loc reads
// tod on the given day. A time skipped by a spring-forward gap yields the
// single instant time.Date normalizes it to.
func occurrences(y int, m time.Month, d int, tod TimeOfDay, loc *time.Location) []time.Time {
	t := time.Date(y, m, d, tod.Hour, tod.Minute, tod.Second, 0, loc)
	out := []time.Time{t}

	_, off := t.Zone()
	for _, shift := range []time.Duration{-3 * time.Hour, 3 * time.Hour} {
		_, other := t.Add(shift).Zone()
		if other == off {
			continue
		}
		alt := t.Add(time.Duration(off-other) * time.Second)
		ay, am, ad := alt.Date()
		if ay != y || am != m || ad != d || alt.Hour() != tod.Hour || alt.Minute() != tod.Minute || alt.Second() != tod.Second {
			continue
		}
		if alt.Before(t) {
			out = []time.Time{alt, t}
		} else {
			out = append(out, alt)
		}
	}
	return out
}
