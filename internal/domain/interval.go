package domain

import (
	"errors"
	"fmt"
	"time"
)

// Interval is a half-open [Start, End) range of minutes from midnight on
// some date. All overlap arithmetic in the engine runs on these.
type Interval struct {
	Start int
	End   int
}

func (i Interval) Empty() bool {
	return i.End <= i.Start
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

func (i Interval) Contains(o Interval) bool {
	return i.Start <= o.Start && o.End <= i.End
}

// Subtract removes o from i, producing zero, one or two intervals.
func (i Interval) Subtract(o Interval) []Interval {
	if o.Empty() || !i.Overlaps(o) {
		return []Interval{i}
	}

	out := make([]Interval, 0, 2)
	if i.Start < o.Start {
		out = append(out, Interval{Start: i.Start, End: o.Start})
	}
	if o.End < i.End {
		out = append(out, Interval{Start: o.End, End: i.End})
	}
	return out
}

// SubtractAll removes every blocked interval from the given base intervals,
// keeping the result sorted by start.
func SubtractAll(base []Interval, blocked []Interval) []Interval {
	out := base
	for _, b := range blocked {
		next := make([]Interval, 0, len(out)+1)
		for _, iv := range out {
			next = append(next, iv.Subtract(b)...)
		}
		out = next
	}
	return out
}

// ParseClock converts "HH:MM" to minutes from midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, errors.New("time must be in HH:MM format")
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock converts minutes from midnight to "HH:MM".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MinuteOf returns the minute-of-day for t in UTC.
func MinuteOf(t time.Time) int {
	t = t.UTC()
	return t.Hour()*60 + t.Minute()
}
