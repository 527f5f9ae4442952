// Package mockbackend is an in-memory implementation of the session backend
// API, used by `grove mock` and by integration-style tests. It speaks the
// exact wire format the HTTP adapter expects and offers fault-injection
// knobs for exercising retry and failure paths by hand.
package mockbackend

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/grove/api"
	"github.com/aretw0/grove/internal/logging"
)

// FailHeader lets a request force a specific status code, e.g. for watching
// the client classify and retry: `curl -H "X-Mock-Fail: 503" ...`.
const FailHeader = "X-Mock-Fail"

type session struct {
	ID      string         `json:"session_id"`
	AgentID string         `json:"agent_id"`
	State   map[string]any `json:"state,omitempty"`
}

// Server holds the in-memory session table. Safe for concurrent use.
type Server struct {
	logger  *slog.Logger
	latency time.Duration

	// failEvery makes every Nth chat call return 503, for retry demos.
	failEvery int

	mu       sync.Mutex
	sessions map[string]*session
	chats    int

	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithLatency injects a fixed delay into every request.
func WithLatency(d time.Duration) Option {
	return func(s *Server) {
		s.latency = d
	}
}

// WithFailEveryNth makes every nth chat request fail with HTTP 503.
func WithFailEveryNth(n int) Option {
	return func(s *Server) {
		s.failEvery = n
	}
}

// New creates a mock backend. It validates the embedded OpenAPI document so
// drift between the document and the handlers shows up at startup.
func New(opts ...Option) (*Server, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(api.Spec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("openapi spec is invalid: %w", err)
	}

	s := &Server{
		logger:   logging.NewNop(),
		sessions: make(map[string]*session),
		registry: prometheus.NewRegistry(),
	}
	s.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mockbackend_requests_total",
			Help: "Requests served by the mock backend",
		},
		[]string{"route", "status"},
	)
	s.registry.MustRegister(s.requests)

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler builds the chi router for the backend API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(s.faults)

	r.Post("/sessions", s.createSession)
	r.Get("/sessions", s.listSessions)
	r.Get("/sessions/{sessionId}", s.getSession)
	r.Delete("/sessions/{sessionId}", s.deleteSession)
	r.Post("/chat", s.chat)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(api.Spec)
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

// faults applies the latency and forced-failure knobs.
func (s *Server) faults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.latency > 0 {
			time.Sleep(s.latency)
		}
		if v := r.Header.Get(FailHeader); v != "" {
			var code int
			if _, err := fmt.Sscanf(v, "%d", &code); err == nil && code >= 400 && code < 600 {
				s.logger.Debug("forced failure", "path", r.URL.Path, "status", code)
				writeError(w, code, "forced failure")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// SessionCount reports live sessions, for tests and the mock command's logs.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID string         `json:"agent_id"`
		State   map[string]any `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.count("create", http.StatusBadRequest)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" {
		s.count("create", http.StatusBadRequest)
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	sess := &session{
		ID:      uuid.NewString(),
		AgentID: req.AgentID,
		State:   req.State,
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Info("session created", "session_id", sess.ID, "agent_id", sess.AgentID)
	s.count("create", http.StatusOK)
	writeJSON(w, http.StatusOK, map[string]string{"session_id": sess.ID})
}

func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.Unlock()

	s.count("list", http.StatusOK)
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")

	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		s.count("get", http.StatusNotFound)
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	s.count("get", http.StatusOK)
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")

	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		s.count("delete", http.StatusNotFound)
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	s.logger.Info("session deleted", "session_id", id)
	s.count("delete", http.StatusNoContent)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		s.count("chat", http.StatusBadRequest)
		writeError(w, http.StatusBadRequest, "session_id and message are required")
		return
	}

	s.mu.Lock()
	sess, ok := s.sessions[req.SessionID]
	s.chats++
	failNow := s.failEvery > 0 && s.chats%s.failEvery == 0
	s.mu.Unlock()

	if !ok {
		s.count("chat", http.StatusNotFound)
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	if failNow {
		s.count("chat", http.StatusServiceUnavailable)
		writeError(w, http.StatusServiceUnavailable, "injected outage")
		return
	}

	s.count("chat", http.StatusOK)
	writeJSON(w, http.StatusOK, map[string]string{"response": reply(sess, req.Message)})
}

// reply renders the canned agent answer, personalized from session state.
func reply(sess *session, message string) string {
	if name, ok := sess.State["user_name"].(string); ok && name != "" {
		return fmt.Sprintf("[%s] Hello %s! You said: %s", sess.AgentID, name, message)
	}
	return fmt.Sprintf("[%s] You said: %s", sess.AgentID, message)
}

func (s *Server) count(route string, status int) {
	s.requests.WithLabelValues(route, fmt.Sprintf("%d", status)).Inc()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
