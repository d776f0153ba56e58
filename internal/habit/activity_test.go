package habit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActivityDaily(t *testing.T) {
	a := ParseActivity(FrequencyDaily, []byte(`{"checkedDays":["2024-06-10","2024-06-11"]}`))
	assert.True(t, a.HasActivity("2024-06-10"))
	assert.True(t, a.HasActivity("2024-06-11"))
	assert.False(t, a.HasActivity("2024-06-12"))
	assert.Equal(t, 1, a.Magnitude("2024-06-10"))
}

func TestParseActivityReadingCurrentShape(t *testing.T) {
	blob := []byte(`{"readingLog":{"2024-06-10":[{"bookId":"b1","rawValue":145,"pagesRead":25}]}}`)
	a := ParseActivity(FrequencyReading, blob)
	assert.Equal(t, 25, a.Magnitude("2024-06-10"))
}

func TestParseActivityLegacyNumber(t *testing.T) {
	// Old records stored a bare pages number per day.
	blob := []byte(`{"readingLog":{"2024-06-10":30,"2024-06-11":0}}`)
	a := ParseActivity(FrequencyReading, blob)
	require.Len(t, a.Reading["2024-06-10"], 1)
	assert.Equal(t, 30, a.Magnitude("2024-06-10"))
	// Legacy zero-value days are not resurrected.
	assert.False(t, a.HasActivity("2024-06-11"))
}

func TestParseActivityToleratesGarbage(t *testing.T) {
	a := ParseActivity(FrequencyReading, []byte(`{"readingLog":{"2024-06-10":"what","not-a-date":[{"bookId":"b1"}]}}`))
	assert.Empty(t, a.ActiveDays())

	a = ParseActivity(FrequencyDaily, []byte(`not json at all`))
	assert.Empty(t, a.ActiveDays())
}

func TestMarkUnmarkIdempotent(t *testing.T) {
	a := NewActivityLog(FrequencyDaily)
	a.MarkDone("2024-06-10")
	a.MarkDone("2024-06-10")
	assert.Len(t, a.ActiveDays(), 1)
	a.Unmark("2024-06-10")
	a.Unmark("2024-06-10")
	assert.Empty(t, a.ActiveDays())
}

func TestRecordBookProgressDelta(t *testing.T) {
	book := Book{ID: "b1", Name: "Dune", TotalPages: 412, TrackingMode: TrackPages}
	a := NewActivityLog(FrequencyReading)

	a.RecordBookProgress(book, "2024-06-10", 120)
	assert.Equal(t, 120, a.Magnitude("2024-06-10"))

	a.RecordBookProgress(book, "2024-06-11", 145)
	assert.Equal(t, 25, a.Magnitude("2024-06-11"))

	// Re-recording the same value is idempotent.
	a.RecordBookProgress(book, "2024-06-11", 145)
	assert.Equal(t, 25, a.Magnitude("2024-06-11"))
	require.Len(t, a.Reading["2024-06-11"], 1)
}

func TestRecordBookProgressRemovesZeroDays(t *testing.T) {
	book := Book{ID: "b1", Name: "Dune", TotalPages: 412, TrackingMode: TrackPages}
	a := NewActivityLog(FrequencyReading)

	a.RecordBookProgress(book, "2024-06-10", 120)
	// Same cumulative page as yesterday derives zero pages; the sole
	// zero entry must not persist as noise.
	a.RecordBookProgress(book, "2024-06-11", 120)
	assert.False(t, a.HasActivity("2024-06-11"))
	_, exists := a.Reading["2024-06-11"]
	assert.False(t, exists)

	// Non-positive raw input removes the entry outright.
	a.RecordBookProgress(book, "2024-06-10", 0)
	assert.False(t, a.HasActivity("2024-06-10"))
}

func TestRecordBookProgressMultipleBooks(t *testing.T) {
	pages := Book{ID: "b1", Name: "Dune", TotalPages: 412, TrackingMode: TrackPages}
	pct := Book{ID: "b2", Name: "Emma", TotalPages: 200, TrackingMode: TrackPercentage}
	a := NewActivityLog(FrequencyReading)

	a.RecordBookProgress(pages, "2024-06-10", 50)
	a.RecordBookProgress(pct, "2024-06-10", 25)
	assert.Equal(t, 50+50, a.Magnitude("2024-06-10"))
	assert.Len(t, a.Reading["2024-06-10"], 2)
}

func TestActivityLogJSONShape(t *testing.T) {
	// The API representation is the storage shape, sorted, with camelCase
	// keys; the in-memory variant fields never leak to clients.
	blob, err := json.Marshal(dailyLog("2024-06-11", "2024-06-10"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"checkedDays":["2024-06-10","2024-06-11"]}`, string(blob))

	book := Book{ID: "b1", Name: "Dune", TotalPages: 412, TrackingMode: TrackPages}
	reading := NewActivityLog(FrequencyReading)
	reading.RecordBookProgress(book, "2024-06-10", 120)
	blob, err = json.Marshal(reading)
	require.NoError(t, err)
	assert.JSONEq(t, `{"readingLog":{"2024-06-10":[{"bookId":"b1","rawValue":120,"pagesRead":120}]}}`, string(blob))

	h, err := New("Exercise", FrequencyDaily, nil, nil, time.Now())
	require.NoError(t, err)
	raw, err := json.Marshal(h)
	require.NoError(t, err)
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Contains(t, fields, "activity")
	assert.NotContains(t, fields, "Activity")
}

func TestEncodeRoundTrip(t *testing.T) {
	book := Book{ID: "b1", Name: "Dune", TotalPages: 412, TrackingMode: TrackPages}
	a := NewActivityLog(FrequencyReading)
	a.RecordBookProgress(book, "2024-06-10", 120)
	a.RecordBookProgress(book, "2024-06-11", 145)

	blob, err := a.Encode()
	require.NoError(t, err)
	decoded := ParseActivity(FrequencyReading, blob)
	assert.Equal(t, 120, decoded.Magnitude("2024-06-10"))
	assert.Equal(t, 25, decoded.Magnitude("2024-06-11"))
}
