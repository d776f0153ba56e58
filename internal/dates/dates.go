// Package dates defines the canonical date-key encoding used as the join key
// for all activity records. A date-key is the zero-padded local calendar date
// ("2024-03-07"), so lexicographic order on keys equals chronological order.
package dates

import "time"

const KeyLayout = "2006-01-02"

// ToDateKey formats the wall-clock date of t in loc. When loc is nil the
// time's own location is used. The local date matters: an event stamped late
// in UTC can belong to the previous day in the user's zone.
func ToDateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = t.Location()
	}
	return t.In(loc).Format(KeyLayout)
}

// ParseDateKey is the exact left inverse of ToDateKey for any key it
// produced. The result is midnight UTC of the encoded calendar date.
func ParseDateKey(key string) (time.Time, error) {
	return time.Parse(KeyLayout, key)
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays moves t by n calendar days, normalizing across month boundaries.
func AddDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar date in their
// respective locations.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DaysBetweenInclusive counts calendar days from "from" through "to",
// counting both endpoints. Same day yields 1; a "to" before "from" yields a
// non-positive value the caller must handle. The civil dates are compared in
// UTC so DST transitions cannot skew the count.
func DaysBetweenInclusive(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	f := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	t := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours()/24) + 1
}

// MonthWindow returns the first and last day of the month containing t, at
// midnight in t's location.
func MonthWindow(t time.Time) (first, last time.Time) {
	y, m, _ := t.Date()
	first = time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	last = time.Date(y, m+1, 0, 0, 0, 0, 0, t.Location())
	return first, last
}

// DaysInMonth returns the day count of the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
