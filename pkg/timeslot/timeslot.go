package timeslot

import (
	"errors"
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"

	MinutesPerDay = 24 * 60
)

var (
	ErrInvalidDate  = errors.New("invalid date format, use YYYY-MM-DD")
	ErrInvalidClock = errors.New("invalid time format, use HH:MM")
)

// Window is a half-open [Start, End) range expressed in minutes since midnight.
type Window struct {
	Start int
	End   int
}

// ParseDate parses a yyyy-MM-dd string into a naive date at UTC midnight.
func ParseDate(value string) (time.Time, error) {
	d, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// FormatDate renders a date as yyyy-MM-dd.
func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// DateOf drops the clock part of t and returns the naive calendar date at UTC midnight.
// The wall-clock date of t in its own location is kept.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseClock parses HH:mm (24-hour) into minutes since midnight.
func ParseClock(value string) (int, error) {
	if len(value) != len(ClockLayout) {
		return 0, ErrInvalidClock
	}
	t, err := time.Parse(ClockLayout, value)
	if err != nil {
		return 0, ErrInvalidClock
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes since midnight as HH:mm.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// AddMinutes returns clock + minutes as HH:mm. It fails when the result leaves the day.
func AddMinutes(clock string, minutes int) (string, error) {
	start, err := ParseClock(clock)
	if err != nil {
		return "", err
	}
	end := start + minutes
	if minutes <= 0 || end > MinutesPerDay-1 {
		return "", fmt.Errorf("%s + %d minutes does not fit in the day", clock, minutes)
	}
	return FormatClock(end), nil
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Intervals touching at an endpoint do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// Contains reports whether [start, end) lies entirely inside w.
func (w Window) Contains(start, end int) bool {
	return start >= w.Start && end <= w.End
}

// Starts walks w from its start in steps of duration+buffer and returns every start
// whose slot still ends inside the window. The buffer follows each slot, never the first.
func (w Window) Starts(duration, buffer int) []int {
	if duration <= 0 || w.End <= w.Start {
		return nil
	}
	if buffer < 0 {
		buffer = 0
	}

	starts := make([]int, 0, (w.End-w.Start)/(duration+buffer)+1)
	for start := w.Start; start+duration <= w.End; start += duration + buffer {
		starts = append(starts, start)
	}
	return starts
}

// MinuteOfDay returns the minutes elapsed since midnight of t's wall clock.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
