package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"remindd/internal/config"
	"remindd/internal/model"
	"remindd/internal/reminder"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.PollSeconds = 1
	return cfg
}

func noEvents(ctx context.Context, now time.Time) []model.Occurrence {
	return nil
}

func TestHealth(t *testing.T) {
	s := NewServer(testConfig(), noEvents)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body != "OK" {
		t.Fatalf("body = %q, want OK", body)
	}
}

func TestRemindersMethodNotAllowed(t *testing.T) {
	s := NewServer(testConfig(), noEvents)

	req := httptest.NewRequest(http.MethodPost, "/reminders", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestCORSPreflightAllowedOrigin(t *testing.T) {
	s := NewServer(testConfig(), noEvents)

	req := httptest.NewRequest(http.MethodOptions, "/reminders", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("Allow-Credentials = %q", got)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), http.MethodGet) {
		t.Fatalf("Allow-Methods = %q", rec.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestCORSDisallowedOrigin(t *testing.T) {
	s := NewServer(testConfig(), noEvents)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("Allow-Origin = %q, want empty for disallowed origin", got)
	}
}

func TestRemindersStreamDelivery(t *testing.T) {
	start := time.Now().Add(5 * time.Minute).Truncate(time.Second)
	fetch := func(ctx context.Context, now time.Time) []model.Occurrence {
		return []model.Occurrence{{
			UID:         "ev-1",
			InstanceKey: start.Format(time.RFC3339),
			Summary:     "Standup",
			Start:       start,
		}}
	}

	ts := httptest.NewServer(NewServer(testConfig(), fetch).Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/reminders", nil)
	if err != nil {
		t.Fatalf("NewRequest error: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	reader := bufio.NewReader(resp.Body)
	var eventType, data string
	for eventType == "" || data == "" {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}

	if eventType != reminder.EventType {
		t.Fatalf("event type = %q, want %q", eventType, reminder.EventType)
	}

	var n reminder.Notification
	if err := json.Unmarshal([]byte(data), &n); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if n.Name != "Standup" {
		t.Fatalf("Name = %q, want %q", n.Name, "Standup")
	}
	if want := start.Format(time.RFC3339); n.Start != want {
		t.Fatalf("Start = %q, want %q", n.Start, want)
	}

	// Disconnect; the server side session should wind down without the
	// client noticing anything besides EOF.
	cancel()
}
