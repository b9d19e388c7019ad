package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	minutesPerDay = 24 * 60

	dateLayout = "2006-01-02"
)

var (
	// ErrInvalidDate is returned when a date does not follow YYYY-MM-DD.
	ErrInvalidDate = errors.New("scheduler: invalid date")
	// ErrInvalidTime is returned when a wall-clock time does not follow HH:MM.
	ErrInvalidTime = errors.New("scheduler: invalid time")
	// ErrEmptyWindow is returned when a window does not satisfy start < end.
	ErrEmptyWindow = errors.New("scheduler: start must be before end")
)

// Date is a calendar date in the engine's single local zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// TimeOfDay is a wall-clock time with minute resolution, stored as minutes
// since midnight.
type TimeOfDay int

// EndOfDay is the exclusive upper bound of a day. It is never parsed from
// input; legacy full-day windows use it as their effective end.
const EndOfDay TimeOfDay = minutesPerDay

// legacyFullDayEnd is the "23:59" end produced by the legacy full-day path.
const legacyFullDayEnd TimeOfDay = minutesPerDay - 1

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %02d:%02d", ErrInvalidTime, hour, minute)
	}
	return TimeOfDay(hour*60 + minute), nil
}

// MustTimeOfDay is like ParseTimeOfDay but panics on malformed input.
func MustTimeOfDay(value string) TimeOfDay {
	t, err := ParseTimeOfDay(value)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTimeOfDay parses HH:MM or HH:MM:SS. Seconds are accepted and dropped.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	trimmed := strings.TrimSpace(value)
	parts := strings.Split(trimmed, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}

	fields := make([]int, len(parts))
	for i, part := range parts {
		if len(part) != 2 || !isDigits(part) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, value)
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, value)
		}
		fields[i] = n
	}
	if len(fields) == 3 && fields[2] > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}

	t, err := NewTimeOfDay(fields[0], fields[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	return t, nil
}

// TimeOfDayOf returns the wall-clock minute of t in t's location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Window is a half-open interval [Start, End) on a single date.
type Window struct {
	Date  Date
	Start TimeOfDay
	End   TimeOfDay
}

// NewWindow validates start < end and returns the window.
func NewWindow(date Date, start, end TimeOfDay) (Window, error) {
	w := Window{Date: date, Start: start, End: end}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// ParseWindow parses the wire representation of a window.
func ParseWindow(date, start, end string) (Window, error) {
	d, err := ParseDate(date)
	if err != nil {
		return Window{}, err
	}
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return Window{}, err
	}
	return NewWindow(d, s, e)
}

// Validate reports whether the window is well formed.
func (w Window) Validate() error {
	if w.Date.IsZero() {
		return ErrInvalidDate
	}
	if w.Start < 0 || w.End > EndOfDay {
		return ErrInvalidTime
	}
	if w.Start >= w.End {
		return fmt.Errorf("%w: %s-%s", ErrEmptyWindow, w.Start, w.End)
	}
	return nil
}

// IsLegacyFullDay reports whether the window is a 00:00-23:59 booking
// written by the legacy compatibility path.
func (w Window) IsLegacyFullDay() bool {
	return w.Start == 0 && w.End == legacyFullDayEnd
}

// effectiveEnd stretches legacy full-day windows to the end of the day.
func (w Window) effectiveEnd() TimeOfDay {
	if w.IsLegacyFullDay() {
		return EndOfDay
	}
	return w.End
}

// Overlaps reports whether two windows share at least one minute.
// Windows that only touch at an endpoint do not overlap.
func (w Window) Overlaps(other Window) bool {
	return w.Date == other.Date &&
		w.Start < other.effectiveEnd() &&
		w.effectiveEnd() > other.Start
}

// Contains reports whether t falls inside [Start, End).
func (w Window) Contains(t TimeOfDay) bool {
	return w.Start <= t && t < w.effectiveEnd()
}

func (w Window) String() string {
	return fmt.Sprintf("%s %s-%s", w.Date, w.Start, w.End)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
