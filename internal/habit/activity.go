package habit

import (
	"encoding/json"
	"log"
	"sort"

	"habitflow/internal/dates"
)

// BookEntry is one book's recorded progress for a single day. RawValue is
// what the user typed (absolute page or percentage); PagesRead is derived by
// DerivePagesRead and never entered directly.
type BookEntry struct {
	BookID    string  `json:"bookId"`
	RawValue  float64 `json:"rawValue"`
	PagesRead int     `json:"pagesRead"`
}

// ActivityLog is the per-habit activity store, a tagged variant over the two
// frequency shapes: a set of checked date-keys for daily habits, a date-key
// to book-entry-list mapping for reading habits.
type ActivityLog struct {
	Frequency Frequency
	Checked   map[string]bool
	Reading   map[string][]BookEntry
}

func NewActivityLog(frequency Frequency) *ActivityLog {
	return &ActivityLog{
		Frequency: frequency,
		Checked:   map[string]bool{},
		Reading:   map[string][]BookEntry{},
	}
}

// activityBlob is the stored jsonb shape. Reading-log values are kept as raw
// messages because legacy records stored a bare number where the current
// format stores an entry list.
type activityBlob struct {
	CheckedDays []string                   `json:"checkedDays,omitempty"`
	ReadingLog  map[string]json.RawMessage `json:"readingLog,omitempty"`
}

// ParseActivity decodes a stored habit_data blob, normalizing any legacy
// shape into the current variant so consumers never format-sniff. Corrupt
// per-day values are dropped with a warning, never fatal.
func ParseActivity(frequency Frequency, raw []byte) *ActivityLog {
	a := NewActivityLog(frequency)
	if len(raw) == 0 {
		return a
	}
	var blob activityBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		log.Printf("habit: unreadable activity blob, starting empty: %v", err)
		return a
	}
	for _, key := range blob.CheckedDays {
		if _, err := dates.ParseDateKey(key); err != nil {
			log.Printf("habit: dropping malformed checked day %q", key)
			continue
		}
		a.Checked[key] = true
	}
	for key, msg := range blob.ReadingLog {
		if _, err := dates.ParseDateKey(key); err != nil {
			log.Printf("habit: dropping malformed reading day %q", key)
			continue
		}
		var entries []BookEntry
		if err := json.Unmarshal(msg, &entries); err == nil {
			a.Reading[key] = entries
			continue
		}
		// Legacy format: a single number meaning pages read that day,
		// recorded before multi-book support.
		var n float64
		if err := json.Unmarshal(msg, &n); err == nil {
			if n > 0 {
				a.Reading[key] = []BookEntry{{RawValue: n, PagesRead: int(n)}}
			}
			continue
		}
		log.Printf("habit: dropping unreadable reading entry for %s", key)
	}
	return a
}

// Encode serializes the log in the current storage shape. The same shape is
// the API representation, so MarshalJSON delegates here and clients never see
// the in-memory variant fields.
func (a *ActivityLog) Encode() ([]byte, error) {
	blob := activityBlob{}
	if a.Frequency == FrequencyDaily {
		blob.CheckedDays = make([]string, 0, len(a.Checked))
		for key := range a.Checked {
			blob.CheckedDays = append(blob.CheckedDays, key)
		}
		sort.Strings(blob.CheckedDays)
	} else {
		blob.ReadingLog = make(map[string]json.RawMessage, len(a.Reading))
		for key, entries := range a.Reading {
			msg, err := json.Marshal(entries)
			if err != nil {
				return nil, err
			}
			blob.ReadingLog[key] = msg
		}
	}
	return json.Marshal(blob)
}

func (a *ActivityLog) MarshalJSON() ([]byte, error) {
	return a.Encode()
}

// HasActivity reports whether the day has any recorded progress.
func (a *ActivityLog) HasActivity(dateKey string) bool {
	return a.Magnitude(dateKey) > 0
}

// Magnitude is the day's activity size: 0/1 for daily habits, total pages
// for reading habits.
func (a *ActivityLog) Magnitude(dateKey string) int {
	if a.Frequency == FrequencyDaily {
		if a.Checked[dateKey] {
			return 1
		}
		return 0
	}
	total := 0
	for _, e := range a.Reading[dateKey] {
		if e.PagesRead > 0 {
			total += e.PagesRead
		}
	}
	return total
}

// ActiveDays returns every date-key with positive magnitude.
func (a *ActivityLog) ActiveDays() []string {
	var keys []string
	if a.Frequency == FrequencyDaily {
		for key := range a.Checked {
			keys = append(keys, key)
		}
		return keys
	}
	for key := range a.Reading {
		if a.Magnitude(key) > 0 {
			keys = append(keys, key)
		}
	}
	return keys
}

// MarkDone records a daily check-off. Idempotent.
func (a *ActivityLog) MarkDone(dateKey string) {
	a.Checked[dateKey] = true
}

// Unmark removes a daily check-off. Idempotent.
func (a *ActivityLog) Unmark(dateKey string) {
	delete(a.Checked, dateKey)
}

// RecordBookProgress stores one book's raw progress value for a day,
// deriving pages read against the previous day's value for the same book.
// A non-positive raw value removes the book's entry; a day on which every
// remaining entry derives zero pages is removed entirely so no zero-value
// noise persists.
func (a *ActivityLog) RecordBookProgress(book Book, dateKey string, raw float64) {
	entries := a.Reading[dateKey]
	if raw <= 0 {
		entries = removeBookEntry(entries, book.ID)
	} else {
		yesterdayRaw, hasYesterday := a.bookRawOn(previousDay(dateKey), book.ID)
		entry := BookEntry{
			BookID:    book.ID,
			RawValue:  raw,
			PagesRead: DerivePagesRead(book, raw, yesterdayRaw, hasYesterday),
		}
		entries = append(removeBookEntry(entries, book.ID), entry)
	}

	hasPages := false
	for _, e := range entries {
		if e.PagesRead > 0 {
			hasPages = true
			break
		}
	}
	if len(entries) == 0 || !hasPages {
		delete(a.Reading, dateKey)
		return
	}
	a.Reading[dateKey] = entries
}

func (a *ActivityLog) bookRawOn(dateKey, bookID string) (float64, bool) {
	for _, e := range a.Reading[dateKey] {
		if e.BookID == bookID {
			return e.RawValue, true
		}
	}
	return 0, false
}

func removeBookEntry(entries []BookEntry, bookID string) []BookEntry {
	out := entries[:0]
	for _, e := range entries {
		if e.BookID != bookID {
			out = append(out, e)
		}
	}
	return out
}

func previousDay(dateKey string) string {
	d, err := dates.ParseDateKey(dateKey)
	if err != nil {
		return ""
	}
	return dates.ToDateKey(dates.AddDays(d, -1), nil)
}
