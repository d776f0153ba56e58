package habit

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrValidation = errors.New("validation")

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyReading Frequency = "reading"
)

type TrackingMode string

const (
	TrackPages      TrackingMode = "pages"
	TrackPercentage TrackingMode = "percentage"
)

// Book is one book tracked by a reading habit. TotalPages is required so
// percentage entries can be converted into pages.
type Book struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	TotalPages   int          `json:"total_pages"`
	TrackingMode TrackingMode `json:"tracking_mode"`
}

// Habit is a user habit. Frequency and CreatedAt are immutable after
// creation; OwnerID is nil for guest-created habits.
type Habit struct {
	ID        string    `json:"id"`
	OwnerID   *string   `json:"owner_id"`
	Name      string    `json:"name"`
	Frequency Frequency `json:"frequency"`
	CreatedAt time.Time `json:"created_at"`
	Activity  *ActivityLog `json:"activity"`
	Books     []Book       `json:"books,omitempty"`
}

// New validates and builds a habit. CreatedAt anchors all streak and rate
// math, so it is fixed to the creation instant and never changes.
func New(name string, frequency Frequency, ownerID *string, books []Book, now time.Time) (*Habit, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name required", ErrValidation)
	}
	switch frequency {
	case FrequencyDaily:
		if len(books) > 0 {
			return nil, fmt.Errorf("%w: books only apply to reading habits", ErrValidation)
		}
	case FrequencyReading:
		if len(books) == 0 {
			return nil, fmt.Errorf("%w: reading habit needs at least one book", ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: frequency must be daily or reading", ErrValidation)
	}
	for i := range books {
		if books[i].Name == "" {
			return nil, fmt.Errorf("%w: book name required", ErrValidation)
		}
		if books[i].TotalPages <= 0 {
			return nil, fmt.Errorf("%w: book total_pages must be positive", ErrValidation)
		}
		switch books[i].TrackingMode {
		case TrackPages, TrackPercentage:
		case "":
			books[i].TrackingMode = TrackPages
		default:
			return nil, fmt.Errorf("%w: tracking_mode must be pages or percentage", ErrValidation)
		}
		if books[i].ID == "" {
			books[i].ID = uuid.NewString()
		}
	}
	return &Habit{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		Frequency: frequency,
		CreatedAt: now,
		Activity:  NewActivityLog(frequency),
		Books:     books,
	}, nil
}

func (h *Habit) BookByID(id string) (Book, bool) {
	for _, b := range h.Books {
		if b.ID == id {
			return b, true
		}
	}
	return Book{}, false
}

// OwnedBy reports whether userID may mutate the habit. Guest habits have no
// owner and are mutable by whoever holds the id, matching guest mode.
func (h *Habit) OwnedBy(userID string) bool {
	if h.OwnerID == nil {
		return true
	}
	return *h.OwnerID == userID
}
