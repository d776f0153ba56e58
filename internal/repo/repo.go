package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"habitflow/internal/habit"
)

var (
	ErrNotFound = errors.New("not found")
)

// Completion is one synced external completion, unique per
// (user, task, local completion date).
type Completion struct {
	UserID string
	TaskID string
	Date   string
}

// Reaction is an emoji left on one day of a shared habit.
type Reaction struct {
	ID        string    `json:"id"`
	HabitID   string    `json:"habit_id"`
	UserID    string    `json:"user_id"`
	DateKey   string    `json:"date_key"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

type Repo struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{Pool: pool}
}

func (r *Repo) CreateUser(ctx context.Context, email, passwordHash string) (string, error) {
	var id string
	err := r.Pool.QueryRow(ctx, `INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id`, email, passwordHash).Scan(&id)
	return id, err
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (string, string, error) {
	var id, hash string
	err := r.Pool.QueryRow(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", ErrNotFound
	}
	return id, hash, err
}

func (r *Repo) GetUserByID(ctx context.Context, userID string) (string, string, error) {
	var id, email string
	err := r.Pool.QueryRow(ctx, `SELECT id, email FROM users WHERE id=$1`, userID).Scan(&id, &email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", ErrNotFound
	}
	return id, email, err
}

func (r *Repo) CreateSession(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.Pool.Exec(ctx, `INSERT INTO sessions (user_id, token, expires_at) VALUES ($1, $2, $3)`, userID, token, expiresAt)
	return err
}

// CreateHabit stores a new habit and, for owned habits, the owner's
// "created" list entry in one transaction.
func (r *Repo) CreateHabit(ctx context.Context, h *habit.Habit) error {
	blob, err := h.Activity.Encode()
	if err != nil {
		return fmt.Errorf("encode activity: %w", err)
	}
	var books []byte
	if h.Frequency == habit.FrequencyReading {
		if books, err = json.Marshal(h.Books); err != nil {
			return fmt.Errorf("encode books: %w", err)
		}
	}

	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO habits (id, owner_id, name, frequency, habit_data, books, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		h.ID, h.OwnerID, h.Name, string(h.Frequency), blob, books, h.CreatedAt); err != nil {
		return err
	}
	if h.OwnerID != nil {
		if _, err := tx.Exec(ctx, `INSERT INTO habiters (user_id, habit_id, relation) VALUES ($1, $2, 'created')
			ON CONFLICT DO NOTHING`, *h.OwnerID, h.ID); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) GetHabit(ctx context.Context, id string) (*habit.Habit, error) {
	var h habit.Habit
	var frequency string
	var blob, books []byte
	err := r.Pool.QueryRow(ctx, `SELECT id, owner_id, name, frequency, habit_data, books, created_at FROM habits WHERE id=$1`, id).
		Scan(&h.ID, &h.OwnerID, &h.Name, &frequency, &blob, &books, &h.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	h.Frequency = habit.Frequency(frequency)
	h.Activity = habit.ParseActivity(h.Frequency, blob)
	if len(books) > 0 {
		if err := json.Unmarshal(books, &h.Books); err != nil {
			return nil, fmt.Errorf("decode books for habit %s: %w", id, err)
		}
	}
	return &h, nil
}

// SaveHabitActivity overwrites the whole habit_data blob. Writes are
// read-modify-write on the blob, so two concurrent sessions editing the same
// habit race and the last writer wins; see the repo tests.
func (r *Repo) SaveHabitActivity(ctx context.Context, id string, blob []byte) error {
	cmd, err := r.Pool.Exec(ctx, `UPDATE habits SET habit_data=$1 WHERE id=$2`, blob, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListHabits returns the user's created and tracked habits.
func (r *Repo) ListHabits(ctx context.Context, userID string) (created, tracked []*habit.Habit, err error) {
	rows, err := r.Pool.Query(ctx, `SELECT h.id, h.owner_id, h.name, h.frequency, h.habit_data, h.books, h.created_at, hb.relation
		FROM habits h JOIN habiters hb ON hb.habit_id = h.id
		WHERE hb.user_id=$1 ORDER BY h.created_at`, userID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var h habit.Habit
		var frequency, relation string
		var blob, books []byte
		if err := rows.Scan(&h.ID, &h.OwnerID, &h.Name, &frequency, &blob, &books, &h.CreatedAt, &relation); err != nil {
			return nil, nil, err
		}
		h.Frequency = habit.Frequency(frequency)
		h.Activity = habit.ParseActivity(h.Frequency, blob)
		if len(books) > 0 {
			if err := json.Unmarshal(books, &h.Books); err != nil {
				return nil, nil, fmt.Errorf("decode books for habit %s: %w", h.ID, err)
			}
		}
		if relation == "tracked" {
			tracked = append(tracked, &h)
		} else {
			created = append(created, &h)
		}
	}
	return created, tracked, rows.Err()
}

// CreateShare issues a share code for a habit.
func (r *Repo) CreateShare(ctx context.Context, habitID, code string) error {
	_, err := r.Pool.Exec(ctx, `INSERT INTO habit_shares (code, habit_id) VALUES ($1, $2)`, code, habitID)
	return err
}

// AcceptShare resolves a share code and appends the habit to the user's
// tracked list. Accepting the same code twice is a no-op.
func (r *Repo) AcceptShare(ctx context.Context, code, userID string) (string, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var habitID string
	err = tx.QueryRow(ctx, `SELECT habit_id FROM habit_shares WHERE code=$1`, code).Scan(&habitID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO habiters (user_id, habit_id, relation) VALUES ($1, $2, 'tracked')
		ON CONFLICT DO NOTHING`, userID, habitID); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return habitID, nil
}

// HasRelation reports whether the user owns or tracks the habit.
func (r *Repo) HasRelation(ctx context.Context, userID, habitID string) (bool, error) {
	var exists bool
	err := r.Pool.QueryRow(ctx, `SELECT EXISTS(
		SELECT 1 FROM habiters WHERE user_id=$1 AND habit_id=$2
		UNION SELECT 1 FROM habits WHERE id=$2 AND owner_id=$1)`, userID, habitID).Scan(&exists)
	return exists, err
}

// UpsertCompletions inserts completion rows, skipping rows whose
// (user, task, date) key already exists. Safe to call repeatedly with the
// same input: the end state is identical, no duplicates accumulate.
func (r *Repo) UpsertCompletions(ctx context.Context, recs []Completion) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	for _, rec := range recs {
		if _, err := tx.Exec(ctx, `INSERT INTO todoist_completions (user_id, task_id, completion_date)
			VALUES ($1, $2, $3::date)
			ON CONFLICT (user_id, task_id, completion_date) DO NOTHING`,
			rec.UserID, rec.TaskID, rec.Date); err != nil {
			return fmt.Errorf("upsert completion %s/%s/%s: %w", rec.UserID, rec.TaskID, rec.Date, err)
		}
	}
	return tx.Commit(ctx)
}

// QueryCompletions returns the user's stored completion dates per task,
// limited to [from, to] and optionally to the given task ids.
func (r *Repo) QueryCompletions(ctx context.Context, userID string, taskIDs []string, from, to string) (map[string][]string, error) {
	query := `SELECT task_id, to_char(completion_date, 'YYYY-MM-DD') FROM todoist_completions
		WHERE user_id=$1 AND completion_date BETWEEN $2::date AND $3::date`
	args := []any{userID, from, to}
	if len(taskIDs) > 0 {
		query += ` AND task_id = ANY($4)`
		args = append(args, taskIDs)
	}
	query += ` ORDER BY completion_date`

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string][]string{}
	for rows.Next() {
		var taskID, date string
		if err := rows.Scan(&taskID, &date); err != nil {
			return nil, err
		}
		res[taskID] = append(res[taskID], date)
	}
	return res, rows.Err()
}

// AddReaction records an emoji reaction; repeating the same reaction is a
// no-op.
func (r *Repo) AddReaction(ctx context.Context, habitID, userID, dateKey, emoji string) error {
	_, err := r.Pool.Exec(ctx, `INSERT INTO reactions (habit_id, user_id, date_key, emoji) VALUES ($1, $2, $3::date, $4)
		ON CONFLICT (habit_id, user_id, date_key, emoji) DO NOTHING`, habitID, userID, dateKey, emoji)
	return err
}

func (r *Repo) ListReactions(ctx context.Context, habitID, from, to string) ([]Reaction, error) {
	rows, err := r.Pool.Query(ctx, `SELECT id, habit_id, user_id, to_char(date_key, 'YYYY-MM-DD'), emoji, created_at
		FROM reactions WHERE habit_id=$1 AND date_key BETWEEN $2::date AND $3::date ORDER BY created_at`, habitID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Reaction
	for rows.Next() {
		var rx Reaction
		if err := rows.Scan(&rx.ID, &rx.HabitID, &rx.UserID, &rx.DateKey, &rx.Emoji, &rx.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rx)
	}
	return res, rows.Err()
}
