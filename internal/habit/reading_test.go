package habit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDerivePagesReadPagesMode(t *testing.T) {
	book := Book{ID: "b1", TotalPages: 412, TrackingMode: TrackPages}

	assert.Equal(t, 25, DerivePagesRead(book, 145, 120, true))

	// First entry with no prior day: the whole raw value counts as read
	// today (missing-history heuristic).
	assert.Equal(t, 30, DerivePagesRead(book, 30, 0, false))

	// Going backwards (re-reading, corrected entry) never yields
	// negative pages.
	assert.Equal(t, 0, DerivePagesRead(book, 100, 120, true))
}

func TestDerivePagesReadPercentageMode(t *testing.T) {
	book := Book{ID: "b1", TotalPages: 412, TrackingMode: TrackPercentage}

	// The derived figure is cumulative pages implied by the snapshot,
	// independent of yesterday.
	assert.Equal(t, 206, DerivePagesRead(book, 50, 25, true))
	assert.Equal(t, 41, DerivePagesRead(book, 10, 0, false))
	assert.Equal(t, 412, DerivePagesRead(book, 100, 0, false))
}

func TestDerivePagesReadNonPositive(t *testing.T) {
	book := Book{ID: "b1", TotalPages: 412, TrackingMode: TrackPages}
	assert.Equal(t, 0, DerivePagesRead(book, 0, 10, true))
	assert.Equal(t, 0, DerivePagesRead(book, -5, 10, true))
}
