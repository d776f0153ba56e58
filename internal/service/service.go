package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"habitflow/internal/auth"
	"habitflow/internal/dates"
	"habitflow/internal/habit"
	"habitflow/internal/repo"
	"habitflow/internal/sync"
	"habitflow/internal/todoist"
)

var ErrForbidden = errors.New("forbidden")

type Service struct {
	Repo       *repo.Repo
	Auth       *auth.Manager
	TokenTTL   time.Duration
	RefreshTTL time.Duration

	TodoistBaseURL string
	DefaultZone    *time.Location

	// NewEventSource builds the external client for a user token;
	// replaceable in tests.
	NewEventSource func(token string) sync.EventSource
}

func New(r *repo.Repo, authManager *auth.Manager, todoistBaseURL string, defaultZone *time.Location) *Service {
	s := &Service{
		Repo:           r,
		Auth:           authManager,
		TokenTTL:       time.Hour,
		RefreshTTL:     7 * 24 * time.Hour,
		TodoistBaseURL: todoistBaseURL,
		DefaultZone:    defaultZone,
	}
	s.NewEventSource = func(token string) sync.EventSource {
		return todoist.NewClient(todoistBaseURL, token)
	}
	return s
}

func (s *Service) Register(ctx context.Context, email, password string) (string, error) {
	hash, err := s.Auth.HashPassword(password)
	if err != nil {
		return "", err
	}
	return s.Repo.CreateUser(ctx, email, hash)
}

func (s *Service) Login(ctx context.Context, email, password string) (string, string, error) {
	userID, hash, err := s.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		return "", "", err
	}
	if err := s.Auth.ComparePassword(hash, password); err != nil {
		return "", "", errors.New("invalid credentials")
	}
	accessToken, err := s.Auth.NewAccessToken(userID, s.TokenTTL)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := s.Auth.NewRefreshToken()
	if err != nil {
		return "", "", err
	}
	if err := s.Repo.CreateSession(ctx, userID, refreshToken, time.Now().Add(s.RefreshTTL)); err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// CreateHabit validates and persists a new habit. ownerID is nil for guest
// habits.
func (s *Service) CreateHabit(ctx context.Context, ownerID *string, name string, frequency habit.Frequency, books []habit.Book) (*habit.Habit, error) {
	h, err := habit.New(name, frequency, ownerID, books, time.Now())
	if err != nil {
		return nil, err
	}
	if err := s.Repo.CreateHabit(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// SetChecked marks or unmarks one day of a daily habit. Only the owner may
// mutate an owned habit; the day must lie between creation and today.
func (s *Service) SetChecked(ctx context.Context, actorID *string, habitID, dateKey string, today time.Time, done bool) error {
	h, err := s.authorizeMutation(ctx, actorID, habitID)
	if err != nil {
		return err
	}
	if h.Frequency != habit.FrequencyDaily {
		return fmt.Errorf("%w: not a daily habit", habit.ErrValidation)
	}
	if err := s.validateDay(h, dateKey, today); err != nil {
		return err
	}
	if done {
		h.Activity.MarkDone(dateKey)
	} else {
		h.Activity.Unmark(dateKey)
	}
	return s.saveActivity(ctx, h)
}

// RecordProgress stores a reading habit's raw progress value for one book
// on one day.
func (s *Service) RecordProgress(ctx context.Context, actorID *string, habitID, dateKey, bookID string, value float64, today time.Time) error {
	h, err := s.authorizeMutation(ctx, actorID, habitID)
	if err != nil {
		return err
	}
	if h.Frequency != habit.FrequencyReading {
		return fmt.Errorf("%w: not a reading habit", habit.ErrValidation)
	}
	book, ok := h.BookByID(bookID)
	if !ok {
		return fmt.Errorf("%w: unknown book", habit.ErrValidation)
	}
	if err := s.validateDay(h, dateKey, today); err != nil {
		return err
	}
	h.Activity.RecordBookProgress(book, dateKey, value)
	return s.saveActivity(ctx, h)
}

func (s *Service) authorizeMutation(ctx context.Context, actorID *string, habitID string) (*habit.Habit, error) {
	h, err := s.Repo.GetHabit(ctx, habitID)
	if err != nil {
		return nil, err
	}
	if h.OwnerID != nil && (actorID == nil || !h.OwnedBy(*actorID)) {
		return nil, ErrForbidden
	}
	return h, nil
}

func (s *Service) validateDay(h *habit.Habit, dateKey string, today time.Time) error {
	d, err := dates.ParseDateKey(dateKey)
	if err != nil {
		return fmt.Errorf("%w: invalid date", habit.ErrValidation)
	}
	created := dates.StartOfDay(h.CreatedAt)
	created = time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, time.UTC)
	todayDay := dates.StartOfDay(today)
	todayDay = time.Date(todayDay.Year(), todayDay.Month(), todayDay.Day(), 0, 0, 0, 0, time.UTC)
	if d.Before(created) || d.After(todayDay) {
		return fmt.Errorf("%w: date outside habit lifetime", habit.ErrValidation)
	}
	return nil
}

func (s *Service) saveActivity(ctx context.Context, h *habit.Habit) error {
	blob, err := h.Activity.Encode()
	if err != nil {
		return err
	}
	return s.Repo.SaveHabitActivity(ctx, h.ID, blob)
}

// Stats are the habit's headline numbers at an evaluation date.
type Stats struct {
	Streak         int `json:"streak"`
	CheckedDays    int `json:"checked_days"`
	EligibleDays   int `json:"eligible_days"`
	CompletionRate int `json:"completion_rate"`
}

func (s *Service) Stats(ctx context.Context, habitID string, today time.Time) (*habit.Habit, Stats, error) {
	h, err := s.Repo.GetHabit(ctx, habitID)
	if err != nil {
		return nil, Stats{}, err
	}
	createdKey := dates.ToDateKey(h.CreatedAt, nil)
	checked := 0
	for _, key := range h.Activity.ActiveDays() {
		if key >= createdKey {
			checked++
		}
	}
	return h, Stats{
		Streak:         habit.Streak(h.Activity, h.CreatedAt, today),
		CheckedDays:    checked,
		EligibleDays:   dates.DaysBetweenInclusive(h.CreatedAt, today),
		CompletionRate: habit.CompletionRate(h.Activity, h.CreatedAt, today),
	}, nil
}

// Calendar builds one month's grid, refusing months strictly before the
// month containing the habit's creation date. Future months are fine.
func (s *Service) Calendar(ctx context.Context, habitID string, year int, month time.Month, today time.Time) (habit.Grid, error) {
	h, err := s.Repo.GetHabit(ctx, habitID)
	if err != nil {
		return habit.Grid{}, err
	}
	// Asking for month m is asking to navigate past m+1's lower bound.
	if !habit.CanGoPrevious(year, month+1, h.CreatedAt) {
		return habit.Grid{}, fmt.Errorf("%w: month precedes habit creation", habit.ErrValidation)
	}
	return habit.MonthGrid(year, month, h.CreatedAt, today, h.Activity), nil
}

// ShareHabit issues a share code; owner only.
func (s *Service) ShareHabit(ctx context.Context, ownerID, habitID string) (string, error) {
	h, err := s.Repo.GetHabit(ctx, habitID)
	if err != nil {
		return "", err
	}
	if h.OwnerID == nil || *h.OwnerID != ownerID {
		return "", ErrForbidden
	}
	code := uuid.NewString()
	if err := s.Repo.CreateShare(ctx, habitID, code); err != nil {
		return "", err
	}
	return code, nil
}

// TrackHabit appends the shared habit to the user's tracked list.
func (s *Service) TrackHabit(ctx context.Context, userID, code string) (string, error) {
	return s.Repo.AcceptShare(ctx, code, userID)
}

// React records an emoji reaction on one day; owner or tracker only.
func (s *Service) React(ctx context.Context, userID, habitID, dateKey, emoji string) error {
	if _, err := dates.ParseDateKey(dateKey); err != nil {
		return fmt.Errorf("%w: invalid date", habit.ErrValidation)
	}
	allowed, err := s.Repo.HasRelation(ctx, userID, habitID)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrForbidden
	}
	return s.Repo.AddReaction(ctx, habitID, userID, dateKey, emoji)
}

// SyncTodoist runs the explicit, user-triggered sync for the current month.
// Upstream failures surface to the caller here, unlike the opportunistic
// overlay refresh.
func (s *Service) SyncTodoist(ctx context.Context, userID, token, timezone string) (int, error) {
	p := &sync.Pipeline{
		Source:      s.NewEventSource(token),
		Store:       s.Repo,
		DefaultZone: s.DefaultZone,
	}
	return p.Run(ctx, userID, s.resolveZone(timezone), time.Time{}, time.Time{})
}

// RefreshCompletions is the opportunistic background variant: upstream
// unavailability degrades to zero synced records.
func (s *Service) RefreshCompletions(ctx context.Context, userID, token, timezone string) (int, error) {
	p := &sync.Pipeline{
		Source:      s.NewEventSource(token),
		Store:       s.Repo,
		DefaultZone: s.DefaultZone,
	}
	return p.RunQuiet(ctx, userID, s.resolveZone(timezone), time.Time{}, time.Time{})
}

func (s *Service) resolveZone(timezone string) *time.Location {
	if timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil
	}
	return loc
}

// Completions returns the user's stored completion overlay for a window.
func (s *Service) Completions(ctx context.Context, userID string, taskIDs []string, from, to string) (map[string][]string, error) {
	return s.Repo.QueryCompletions(ctx, userID, taskIDs, from, to)
}
