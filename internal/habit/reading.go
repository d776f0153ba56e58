package habit

import "math"

// DerivePagesRead turns a raw daily input into pages read that day.
//
// Pages mode treats the raw value as the absolute page number reached, so
// today's pages are the delta from yesterday's value. When yesterday has no
// record (first entry, or a gap) the whole raw value is attributed to today;
// that is a heuristic for missing history, not an exact figure.
//
// Percentage mode converts the 0-100 snapshot into the total pages implied
// so far. That figure is cumulative, not a daily delta; callers display it
// as-is for compatibility with the stored history.
func DerivePagesRead(book Book, raw, yesterdayRaw float64, hasYesterday bool) int {
	if raw <= 0 {
		return 0
	}
	switch book.TrackingMode {
	case TrackPercentage:
		return int(math.Round(raw / 100 * float64(book.TotalPages)))
	default:
		if !hasYesterday {
			return int(math.Round(raw))
		}
		delta := raw - yesterdayRaw
		if delta < 0 {
			return 0
		}
		return int(math.Round(delta))
	}
}
