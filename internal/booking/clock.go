// Package booking holds the pure rules behind room reservations: clock parsing,
// overlap detection, duration and booking-window checks, and utilization math.
package booking

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidClock is returned for strings that are not a valid HH:MM wall-clock time.
var ErrInvalidClock = errors.New("invalid time format; expected HH:MM")

const minutesPerDay = 24 * 60

// ParseClock converts "HH:MM" to minutes since midnight.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 || !digits(hh) || !digits(mm) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return h*60 + m, nil
}

// digits reports whether s is made of ASCII digits only; Atoi alone accepts a sign.
func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatClock converts minutes since midnight back to "HH:MM", clamped to the day.
func FormatClock(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	if minutes >= minutesPerDay {
		minutes = minutesPerDay - 1
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Interval is a half-open [Start, End) range in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// ParseInterval parses a start/end clock pair without checking their order.
func ParseInterval(start, end string) (Interval, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: s, End: e}, nil
}

// Overlaps uses strict comparison so back-to-back intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// Minutes is the length of the interval; inverted intervals yield a negative value.
func (i Interval) Minutes() int {
	return i.End - i.Start
}
