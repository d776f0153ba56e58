package http

import (
	"net/http"
	"time"

	"habitflow/internal/auth"
	"habitflow/internal/repo"
	"habitflow/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type API struct {
	Repo    *repo.Repo
	Service *service.Service
	Auth    *auth.Manager
	Origins []string
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(loggingMiddleware)
	r.Use(a.corsMiddleware)

	r.Get("/health", a.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", a.handleRegister)
		r.Post("/login", a.handleLogin)
	})

	// The sync endpoint authenticates with the Todoist token in the body,
	// not a session; other methods fall through to chi's 405.
	r.Post("/api/todoist/sync", a.handleTodoistSync)

	r.Group(func(r chi.Router) {
		r.Use(a.optionalAuthMiddleware)
		r.Post("/habits", a.handleCreateHabit)
		r.Get("/habits/{id}", a.handleGetHabit)
		r.Post("/habits/{id}/check", a.handleCheckDay)
		r.Delete("/habits/{id}/check", a.handleUncheckDay)
		r.Post("/habits/{id}/progress", a.handleRecordProgress)
		r.Get("/habits/{id}/stats", a.handleStats)
		r.Get("/habits/{id}/calendar", a.handleCalendar)
		r.Get("/habits/{id}/reactions", a.handleListReactions)
	})

	r.Group(func(r chi.Router) {
		r.Use(a.authMiddleware)
		r.Get("/me", a.handleMe)
		r.Get("/habits", a.handleListHabits)
		r.Post("/habits/{id}/share", a.handleShareHabit)
		r.Post("/habits/track", a.handleTrackHabit)
		r.Post("/habits/{id}/reactions", a.handleAddReaction)
		r.Get("/api/todoist/completions", a.handleTodoistCompletions)
	})

	return r
}
