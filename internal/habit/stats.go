package habit

import (
	"time"

	"habitflow/internal/dates"
)

// maxStreakLookback caps the backward streak walk. Kept from the original
// behavior: habits older than a year undercount their streak. A fixed design
// limit, not an accident.
const maxStreakLookback = 365

// Streak counts consecutive active days walking backward from today,
// stopping at the first unmarked day or the habit's creation date. It is the
// current streak ending today, not the longest streak ever: a habit with a
// long historical run but no activity today yields 0.
func Streak(a *ActivityLog, created, today time.Time) int {
	createdDay := dates.StartOfDay(created)
	streak := 0
	for i := 0; i < maxStreakLookback; i++ {
		day := dates.AddDays(dates.StartOfDay(today), -i)
		if day.Before(createdDay) {
			break
		}
		if !a.HasActivity(dates.ToDateKey(day, nil)) {
			break
		}
		streak++
	}
	return streak
}

// CompletionRate is the percentage of days since creation (inclusive) with
// recorded activity, rounded, clamped to [0,100]. The clamp protects against
// malformed data producing more active days than elapsed days, e.g. from
// timezone shifts. A creation date in the future yields 0 rather than a
// division error.
func CompletionRate(a *ActivityLog, created, today time.Time) int {
	eligible := dates.DaysBetweenInclusive(created, today)
	if eligible <= 0 {
		return 0
	}
	createdKey := dates.ToDateKey(created, nil)
	active := 0
	for _, key := range a.ActiveDays() {
		// Date-keys sort chronologically, so pre-creation strays from
		// corrupted or external records are dropped by string compare.
		if key >= createdKey {
			active++
		}
	}
	rate := (active*100 + eligible/2) / eligible
	if rate > 100 {
		return 100
	}
	return rate
}
