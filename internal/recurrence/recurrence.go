// Package recurrence computes the occurrence dates of recurring transactions.
//
// Month and year steps clamp to the last day of the target month instead of
// rolling over: Jan 31 + 1 month is Feb 29 (leap year) or Feb 28, and
// Feb 29 + 1 year is Feb 28. Time of day and location are preserved.
package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// Interval is the repeat cadence of a recurring transaction.
type Interval string

const (
	Daily   Interval = "DAILY"
	Weekly  Interval = "WEEKLY"
	Monthly Interval = "MONTHLY"
	Yearly  Interval = "YEARLY"
)

// ErrInvalidInterval is returned for any tag other than the four intervals.
var ErrInvalidInterval = errors.New("invalid recurring interval")

// Intervals lists the supported intervals.
func Intervals() []Interval {
	return []Interval{Daily, Weekly, Monthly, Yearly}
}

// Valid reports whether i is a supported interval.
func (i Interval) Valid() bool {
	switch i {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// Parse converts a tag into an Interval.
func Parse(s string) (Interval, error) {
	i := Interval(s)
	if !i.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidInterval, s)
	}
	return i, nil
}

// Next returns the occurrence one interval after date.
func Next(date time.Time, interval Interval) (time.Time, error) {
	return Occurrence(date, interval, 1)
}

// Occurrence returns the n-th occurrence counted from anchor (n = 0 is the
// anchor itself). Month and year steps are computed from the anchor's
// day-of-month, so a schedule anchored on the 31st returns to the 31st in
// months that have one.
func Occurrence(anchor time.Time, interval Interval, n int) (time.Time, error) {
	switch interval {
	case Daily:
		return anchor.AddDate(0, 0, n), nil
	case Weekly:
		return anchor.AddDate(0, 0, 7*n), nil
	case Monthly:
		return addMonthsClamped(anchor, n), nil
	case Yearly:
		return addMonthsClamped(anchor, 12*n), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidInterval, interval)
	}
}

// NextAfter returns the first occurrence of the anchor's schedule that is
// strictly after the given instant.
func NextAfter(anchor time.Time, interval Interval, after time.Time) (time.Time, error) {
	if !interval.Valid() {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidInterval, interval)
	}

	n := estimateSteps(anchor, interval, after)
	for {
		occ, err := Occurrence(anchor, interval, n)
		if err != nil {
			return time.Time{}, err
		}
		if occ.After(after) {
			return occ, nil
		}
		n++
	}
}

// estimateSteps returns a step count at or below the answer of NextAfter so
// the search loop stays short for old anchors.
func estimateSteps(anchor time.Time, interval Interval, after time.Time) int {
	if !after.After(anchor) {
		return 1
	}
	var n int
	switch interval {
	case Daily:
		n = int(after.Sub(anchor).Hours() / 24)
	case Weekly:
		n = int(after.Sub(anchor).Hours() / (24 * 7))
	case Monthly:
		n = monthsBetween(anchor, after)
	case Yearly:
		n = monthsBetween(anchor, after) / 12
	}
	// Back off one step to absorb DST and clamping differences.
	if n > 1 {
		return n - 1
	}
	return 1
}

func monthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	total := int(month) - 1 + months
	y := year + floorDiv(total, 12)
	m := time.Month(floorMod(total, 12) + 1)

	if last := daysIn(y, m); day > last {
		day = last
	}
	hour, minute, sec := t.Clock()
	return time.Date(y, m, day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
