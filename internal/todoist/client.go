// Package todoist is a minimal client for the Todoist Sync API v9 activity
// log. Events come back as loosely-typed bags of fields whose names have
// shifted across API revisions, so normalization resolves ids and dates from
// ordered candidate lists instead of a fixed schema.
package todoist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// maxActivityPageSize is the provider's enforced cap per activity call.
// Multi-page pagination is a known gap: a month with more completion events
// than this syncs partially.
const maxActivityPageSize = 100

type Client struct {
	BaseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds a client authenticating with the given personal token.
func NewClient(baseURL, token string) *Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &Client{
		BaseURL: baseURL,
		http:    oauth2.NewClient(context.Background(), src),
		// Todoist allows bursts but throttles sustained sync traffic.
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 3),
	}
}

type activityRequest struct {
	ObjectType string `json:"object_type"`
	EventType  string `json:"event_type"`
	Limit      int    `json:"limit"`
}

// CompletedEvents fetches item-completed activity events. The response may
// carry events as a bare array, under "events", or under "items" depending
// on API revision; all three are accepted.
func (c *Client) CompletedEvents(ctx context.Context) ([]map[string]any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := json.Marshal(activityRequest{
		ObjectType: "item",
		EventType:  "completed",
		Limit:      maxActivityPageSize,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/sync/v9/activity/get", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("todoist activity request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("todoist API error: %d", resp.StatusCode)
	}

	var payload json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("todoist activity decode: %w", err)
	}
	return extractEvents(payload)
}

func extractEvents(payload json.RawMessage) ([]map[string]any, error) {
	var direct []map[string]any
	if err := json.Unmarshal(payload, &direct); err == nil {
		return direct, nil
	}
	var wrapped struct {
		Events []map[string]any `json:"events"`
		Items  []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(payload, &wrapped); err != nil {
		return nil, fmt.Errorf("unexpected activity response shape: %w", err)
	}
	if wrapped.Events != nil {
		return wrapped.Events, nil
	}
	return wrapped.Items, nil
}

// taskIDFields and dateFields are the candidate names in resolution order;
// the first usable value wins.
var taskIDFields = []string{"object_id", "item_id", "id"}
var dateFields = []string{"event_date", "date_completed", "completed_date", "created_at", "date"}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000000Z",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Completion is a normalized event: the task and the instant it completed.
type Completion struct {
	TaskID     string
	OccurredAt time.Time
}

// NormalizeEvent resolves a raw event into a Completion. It returns false
// when no task id or no parseable timestamp can be found; such events are
// dropped by the caller, never a hard error.
func NormalizeEvent(ev map[string]any) (Completion, bool) {
	var taskID string
	for _, field := range taskIDFields {
		if id := stringifyID(ev[field]); id != "" {
			taskID = id
			break
		}
	}
	if taskID == "" {
		return Completion{}, false
	}
	for _, field := range dateFields {
		s, ok := ev[field].(string)
		if !ok || s == "" {
			continue
		}
		if t, ok := parseTimestamp(s); ok {
			return Completion{TaskID: taskID, OccurredAt: t}, true
		}
	}
	return Completion{}, false
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// stringifyID accepts the id as either a JSON string or number.
func stringifyID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	case json.Number:
		return id.String()
	default:
		return ""
	}
}
