package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"remindd/internal/config"
	appLog "remindd/internal/log"
	"remindd/internal/reminder"
)

// Server exposes the reminder stream over HTTP. Endpoints:
//
//	GET /reminders  — long-lived SSE stream of reminder notifications
//	GET /health     — liveness probe
type Server struct {
	cfg   *config.Config
	fetch reminder.FetchFunc
	mux   *http.ServeMux
}

// NewServer constructs a Server. fetch is the per-poll source of
// reminder-window occurrences (one shared feed client; each connection still
// polls it independently).
func NewServer(cfg *config.Config, fetch reminder.FetchFunc) *Server {
	s := &Server{
		cfg:   cfg,
		fetch: fetch,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for this server, with CORS applied.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/reminders", s.handleReminders)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReminders upgrades the request to a server-sent event stream and
// runs one reminder session for the lifetime of the connection. Disconnect
// is observed through the request context.
func (s *Server) handleReminders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		appLog.Error("streaming unsupported", errors.New("response writer is not a flusher"), "remote", r.RemoteAddr)
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	// Disable buffering in reverse proxies that honor this hint.
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	emit := func(n reminder.Notification) error {
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", reminder.EventType, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	sess := reminder.New(reminder.Config{
		Fetch:    s.fetch,
		Emit:     emit,
		Interval: time.Duration(s.cfg.PollSeconds) * time.Second,
		Name:     r.RemoteAddr,
	})

	// Blocks until the client disconnects or the server shuts down.
	sess.Run(r.Context())
}

// corsMiddleware applies the configured origin allowlist. The reminder
// stream is consumed by a browser frontend on a different origin, so
// credentials and preflight are handled here.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			h := w.Header()
			h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
				h.Set("Access-Control-Allow-Headers", reqHeaders)
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
