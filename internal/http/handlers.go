package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"habitflow/internal/auth"
	"habitflow/internal/dates"
	"habitflow/internal/habit"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type bookRequest struct {
	Name         string `json:"name"`
	TotalPages   int    `json:"total_pages"`
	TrackingMode string `json:"tracking_mode"`
}

type habitRequest struct {
	Name      string        `json:"name"`
	Frequency string        `json:"frequency"`
	Books     []bookRequest `json:"books"`
}

type dayRequest struct {
	Date string `json:"date"`
}

type progressRequest struct {
	Date   string  `json:"date"`
	BookID string  `json:"book_id"`
	Value  float64 `json:"value"`
}

type trackRequest struct {
	Code string `json:"code"`
}

type reactionRequest struct {
	Date  string `json:"date"`
	Emoji string `json:"emoji"`
}

type todoistSyncRequest struct {
	UserID       string `json:"user_id"`
	TodoistToken string `json:"todoist_token"`
	Timezone     string `json:"timezone"`
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Email and password required")
		return
	}
	userID, err := a.Service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "REGISTRATION_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": userID})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	accessToken, refreshToken, err := a.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: accessToken, RefreshToken: refreshToken})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user")
		return
	}
	id, email, err := a.Repo.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "email": email})
}

func (a *API) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	var req habitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var ownerID *string
	if userID, ok := auth.UserIDFromContext(r.Context()); ok {
		ownerID = &userID
	}
	books := make([]habit.Book, 0, len(req.Books))
	for _, b := range req.Books {
		books = append(books, habit.Book{
			Name:         b.Name,
			TotalPages:   b.TotalPages,
			TrackingMode: habit.TrackingMode(b.TrackingMode),
		})
	}
	h, err := a.Service.CreateHabit(r.Context(), ownerID, req.Name, habit.Frequency(req.Frequency), books)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

func (a *API) handleGetHabit(w http.ResponseWriter, r *http.Request) {
	h, err := a.Repo.GetHabit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (a *API) handleListHabits(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	created, tracked, err := a.Repo.ListHabits(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list habits")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"created": created, "tracked": tracked})
}

func (a *API) handleCheckDay(w http.ResponseWriter, r *http.Request) {
	a.setChecked(w, r, true)
}

func (a *API) handleUncheckDay(w http.ResponseWriter, r *http.Request) {
	a.setChecked(w, r, false)
}

func (a *API) setChecked(w http.ResponseWriter, r *http.Request, done bool) {
	var req dayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Date == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Date required")
		return
	}
	if err := a.Service.SetChecked(r.Context(), actorID(r), chi.URLParam(r, "id"), req.Date, evalToday(r), done); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": req.Date, "checked": done})
}

func (a *API) handleRecordProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Date == "" || req.BookID == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Date and book_id required")
		return
	}
	if err := a.Service.RecordProgress(r.Context(), actorID(r), chi.URLParam(r, "id"), req.Date, req.BookID, req.Value, evalToday(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"date": req.Date})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	h, stats, err := a.Service.Stats(r.Context(), chi.URLParam(r, "id"), evalToday(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"habit_id":   h.ID,
		"name":       h.Name,
		"frequency":  h.Frequency,
		"created_at": h.CreatedAt,
		"stats":      stats,
	})
}

func (a *API) handleCalendar(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid year")
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid month")
		return
	}
	grid, err := a.Service.Calendar(r.Context(), chi.URLParam(r, "id"), year, time.Month(month), evalToday(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

func (a *API) handleShareHabit(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	code, err := a.Service.ShareHabit(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"code": code})
}

func (a *API) handleTrackHabit(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req trackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Code required")
		return
	}
	habitID, err := a.Service.TrackHabit(r.Context(), userID, req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"habit_id": habitID})
}

func (a *API) handleAddReaction(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req reactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Date == "" || req.Emoji == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Date and emoji required")
		return
	}
	if err := a.Service.React(r.Context(), userID, chi.URLParam(r, "id"), req.Date, req.Emoji); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (a *API) handleListReactions(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		first, last := dates.MonthWindow(time.Now())
		from, to = dates.ToDateKey(first, nil), dates.ToDateKey(last, nil)
	}
	reactions, err := a.Repo.ListReactions(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list reactions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reactions": reactions})
}

func (a *API) handleTodoistSync(w http.ResponseWriter, r *http.Request) {
	var req todoistSyncRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" || req.TodoistToken == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Missing user_id or todoist_token")
		return
	}
	synced, err := a.Service.SyncTodoist(r.Context(), req.UserID, req.TodoistToken, req.Timezone)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "SYNC_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "synced": synced})
}

func (a *API) handleTodoistCompletions(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		first, last := dates.MonthWindow(time.Now())
		from, to = dates.ToDateKey(first, nil), dates.ToDateKey(last, nil)
	}
	var taskIDs []string
	if raw := r.URL.Query().Get("task_ids"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				taskIDs = append(taskIDs, id)
			}
		}
	}
	completions, err := a.Service.Completions(r.Context(), userID, taskIDs, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to query completions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"completions": completions})
}

// actorID returns the authenticated user id, or nil for guests.
func actorID(r *http.Request) *string {
	if userID, ok := auth.UserIDFromContext(r.Context()); ok {
		return &userID
	}
	return nil
}

// evalToday resolves the evaluation date for streak/rate/grid math. Clients
// may pin it with ?today=YYYY-MM-DD (useful for tests) or shift the zone
// with ?tz=; otherwise it is server wall-clock time.
func evalToday(r *http.Request) time.Time {
	if key := r.URL.Query().Get("today"); key != "" {
		if d, err := dates.ParseDateKey(key); err == nil {
			return d
		}
	}
	now := time.Now()
	if tz := r.URL.Query().Get("tz"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			now = now.In(loc)
		}
	}
	return now
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid payload")
		return false
	}
	return true
}
