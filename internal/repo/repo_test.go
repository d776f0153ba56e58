package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"habitflow/internal/habit"
)

func setupTestRepo(t *testing.T) (*Repo, func()) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", schema))
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	_, err = pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema))
	if err != nil {
		pool.Close()
		t.Fatalf("create schema: %v", err)
	}
	if err := createTestTables(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("create tables: %v", err)
	}
	repo := New(pool)
	return repo, func() {
		_, _ = pool.Exec(ctx, fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
		pool.Close()
	}
}

func createTestTables(ctx context.Context, pool *pgxpool.Pool) error {
	queries := []string{
		`CREATE TABLE users (id uuid PRIMARY KEY DEFAULT gen_random_uuid(), email text, password_hash text, created_at timestamptz DEFAULT now())`,
		`CREATE TABLE sessions (id uuid PRIMARY KEY DEFAULT gen_random_uuid(), user_id uuid, token text, expires_at timestamptz, created_at timestamptz DEFAULT now())`,
		`CREATE TABLE habits (id text PRIMARY KEY, owner_id uuid NULL, name text, frequency text, habit_data jsonb DEFAULT '{}'::jsonb, books jsonb NULL, created_at timestamptz DEFAULT now())`,
		`CREATE TABLE habiters (user_id uuid, habit_id text, relation text, created_at timestamptz DEFAULT now(), UNIQUE (user_id, habit_id, relation))`,
		`CREATE TABLE habit_shares (code text PRIMARY KEY, habit_id text, created_at timestamptz DEFAULT now())`,
		`CREATE TABLE todoist_completions (user_id uuid, task_id text, completion_date date, synced_at timestamptz DEFAULT now(), UNIQUE (user_id, task_id, completion_date))`,
		`CREATE TABLE reactions (id uuid PRIMARY KEY DEFAULT gen_random_uuid(), habit_id text, user_id uuid, date_key date, emoji text, created_at timestamptz DEFAULT now(), UNIQUE (habit_id, user_id, date_key, emoji))`,
	}
	for _, query := range queries {
		if _, err := pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func createTestUser(ctx context.Context, t *testing.T, repo *Repo, email string) string {
	t.Helper()
	id, err := repo.CreateUser(ctx, email, "x")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	return id
}

func TestUpsertCompletionsIdempotent(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createTestUser(ctx, t, repo, "a@b.com")
	recs := []Completion{
		{UserID: userID, TaskID: "101", Date: "2024-06-10"},
		{UserID: userID, TaskID: "101", Date: "2024-06-11"},
		{UserID: userID, TaskID: "202", Date: "2024-06-10"},
	}

	for i := 0; i < 3; i++ {
		if err := repo.UpsertCompletions(ctx, recs); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	var count int
	if err := repo.Pool.QueryRow(ctx, `SELECT count(*) FROM todoist_completions WHERE user_id=$1`, userID).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 rows after repeated upserts, got %d", count)
	}
}

func TestQueryCompletionsWindow(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createTestUser(ctx, t, repo, "a@b.com")
	otherID := createTestUser(ctx, t, repo, "c@d.com")
	err := repo.UpsertCompletions(ctx, []Completion{
		{UserID: userID, TaskID: "101", Date: "2024-06-10"},
		{UserID: userID, TaskID: "101", Date: "2024-07-01"},
		{UserID: userID, TaskID: "202", Date: "2024-06-15"},
		{UserID: otherID, TaskID: "101", Date: "2024-06-10"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := repo.QueryCompletions(ctx, userID, nil, "2024-06-01", "2024-06-30")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got["101"]) != 1 || got["101"][0] != "2024-06-10" {
		t.Fatalf("task 101: expected only the June date, got %v", got["101"])
	}
	if len(got["202"]) != 1 {
		t.Fatalf("task 202: expected one date, got %v", got["202"])
	}

	got, err = repo.QueryCompletions(ctx, userID, []string{"202"}, "2024-06-01", "2024-06-30")
	if err != nil {
		t.Fatalf("filtered query: %v", err)
	}
	if len(got) != 1 || len(got["202"]) != 1 {
		t.Fatalf("expected only task 202, got %v", got)
	}
}

func TestSaveActivityLastWriterWins(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createTestUser(ctx, t, repo, "a@b.com")
	h, err := habit.New("Exercise", habit.FrequencyDaily, &userID, nil, time.Now())
	if err != nil {
		t.Fatalf("habit: %v", err)
	}
	if err := repo.CreateHabit(ctx, h); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Two sessions load the same habit, then each saves its own edit.
	// The whole blob is overwritten on save, so the first session's check
	// is lost when the second session writes.
	first, err := repo.GetHabit(ctx, h.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	second, err := repo.GetHabit(ctx, h.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	first.Activity.MarkDone("2024-06-10")
	second.Activity.MarkDone("2024-06-11")

	for _, s := range []*habit.Habit{first, second} {
		blob, err := s.Activity.Encode()
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if err := repo.SaveHabitActivity(ctx, h.ID, blob); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	final, err := repo.GetHabit(ctx, h.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Activity.HasActivity("2024-06-10") {
		t.Fatalf("expected the first session's check to be overwritten")
	}
	if !final.Activity.HasActivity("2024-06-11") {
		t.Fatalf("expected the last writer's check to survive")
	}
}

func TestSaveActivityMissingHabit(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()

	err := repo.SaveHabitActivity(context.Background(), "nope", []byte(`{}`))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAcceptShareIdempotent(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	ownerID := createTestUser(ctx, t, repo, "owner@x.com")
	trackerID := createTestUser(ctx, t, repo, "tracker@x.com")
	h, err := habit.New("Meditate", habit.FrequencyDaily, &ownerID, nil, time.Now())
	if err != nil {
		t.Fatalf("habit: %v", err)
	}
	if err := repo.CreateHabit(ctx, h); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.CreateShare(ctx, h.ID, "code-1"); err != nil {
		t.Fatalf("share: %v", err)
	}

	for i := 0; i < 2; i++ {
		habitID, err := repo.AcceptShare(ctx, "code-1", trackerID)
		if err != nil {
			t.Fatalf("accept %d: %v", i, err)
		}
		if habitID != h.ID {
			t.Fatalf("expected habit %s, got %s", h.ID, habitID)
		}
	}

	created, tracked, err := repo.ListHabits(ctx, trackerID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(created) != 0 || len(tracked) != 1 {
		t.Fatalf("expected one tracked habit, got created=%d tracked=%d", len(created), len(tracked))
	}

	if _, err := repo.AcceptShare(ctx, "no-such-code", trackerID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown code, got %v", err)
	}
}

func TestHabitRoundTripWithBooks(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createTestUser(ctx, t, repo, "a@b.com")
	h, err := habit.New("Read", habit.FrequencyReading, &userID,
		[]habit.Book{{Name: "Dune", TotalPages: 412}}, time.Now())
	if err != nil {
		t.Fatalf("habit: %v", err)
	}
	h.Activity.RecordBookProgress(h.Books[0], "2024-06-10", 120)
	if err := repo.CreateHabit(ctx, h); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetHabit(ctx, h.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Books) != 1 || got.Books[0].Name != "Dune" {
		t.Fatalf("books did not survive the round trip: %+v", got.Books)
	}
	if got.Activity.Magnitude("2024-06-10") != 120 {
		t.Fatalf("expected 120 pages on 2024-06-10, got %d", got.Activity.Magnitude("2024-06-10"))
	}

	ok, err := repo.HasRelation(ctx, userID, h.ID)
	if err != nil || !ok {
		t.Fatalf("expected owner relation: ok=%v err=%v", ok, err)
	}
}

func TestAddReactionIdempotent(t *testing.T) {
	repo, cleanup := setupTestRepo(t)
	defer cleanup()
	ctx := context.Background()

	userID := createTestUser(ctx, t, repo, "a@b.com")
	h, err := habit.New("Exercise", habit.FrequencyDaily, &userID, nil, time.Now())
	if err != nil {
		t.Fatalf("habit: %v", err)
	}
	if err := repo.CreateHabit(ctx, h); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := repo.AddReaction(ctx, h.ID, userID, "2024-06-10", "🔥"); err != nil {
			t.Fatalf("react %d: %v", i, err)
		}
	}
	got, err := repo.ListReactions(ctx, h.ID, "2024-06-01", "2024-06-30")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one reaction, got %d", len(got))
	}
	if got[0].DateKey != "2024-06-10" || got[0].Emoji != "🔥" {
		t.Fatalf("unexpected reaction: %+v", got[0])
	}
}
