package habit

import (
	"time"

	"habitflow/internal/dates"
)

// Cell is one day of a month grid.
type Cell struct {
	Day       int    `json:"day"`
	DateKey   string `json:"date_key"`
	Checked   bool   `json:"checked"`
	Magnitude int    `json:"magnitude"`
	// Valid marks days the user may interact with: on or after creation
	// and not in the future.
	Valid bool `json:"valid"`
	// BeforeCreation marks days rendered heavily dimmed, distinct from a
	// merely invalid future day.
	BeforeCreation bool `json:"before_creation"`
	Today          bool `json:"today"`
	CreationDay    bool `json:"creation_day"`
}

// Grid is a month projected onto a Monday-first 7-column calendar. Leading
// is the blank-cell count before day 1.
type Grid struct {
	Year    int        `json:"year"`
	Month   time.Month `json:"month"`
	Leading int        `json:"leading"`
	Cells   []Cell     `json:"cells"`
}

// MonthGrid builds the calendar for one month, annotating each day with
// activity state and interaction flags derived from the habit's creation
// date and the evaluation date.
func MonthGrid(year int, month time.Month, created, today time.Time, a *ActivityLog) Grid {
	first := time.Date(year, month, 1, 0, 0, 0, 0, today.Location())
	createdDay := dates.StartOfDay(created)
	todayDay := dates.StartOfDay(today)

	g := Grid{
		Year:  year,
		Month: month,
		// time.Weekday has Sunday=0; remap to Monday=0.
		Leading: (int(first.Weekday()) + 6) % 7,
	}
	for day := 1; day <= dates.DaysInMonth(year, month); day++ {
		d := time.Date(year, month, day, 0, 0, 0, 0, today.Location())
		key := dates.ToDateKey(d, nil)
		g.Cells = append(g.Cells, Cell{
			Day:            day,
			DateKey:        key,
			Checked:        a.HasActivity(key),
			Magnitude:      a.Magnitude(key),
			Valid:          !d.Before(createdDay) && !d.After(todayDay),
			BeforeCreation: d.Before(createdDay),
			Today:          dates.SameDay(d, todayDay),
			CreationDay:    dates.SameDay(d, createdDay),
		})
	}
	return g
}

// CanGoPrevious reports whether the month before (year, month) may be shown.
// Navigation is refused below the month containing the creation date; there
// is no upper bound, future months are viewable read-only.
func CanGoPrevious(year int, month time.Month, created time.Time) bool {
	prev := time.Date(year, month-1, 1, 0, 0, 0, 0, time.UTC)
	creationMonth := time.Date(created.Year(), created.Month(), 1, 0, 0, 0, 0, time.UTC)
	return !prev.Before(creationMonth)
}
