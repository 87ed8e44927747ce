// Package httpapi exposes the browser-facing HTTP surface: the synthesis
// proxy, the catalog endpoints, session lifecycle and the playback
// websocket, plus health and metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mewlabs/kittenvox/internal/backend"
	"github.com/mewlabs/kittenvox/internal/config"
	"github.com/mewlabs/kittenvox/internal/history"
	"github.com/mewlabs/kittenvox/internal/observability"
	"github.com/mewlabs/kittenvox/internal/playback"
	"github.com/mewlabs/kittenvox/internal/session"
)

// Synthesizer is the backend client surface the API depends on.
// *backend.Client satisfies it.
type Synthesizer interface {
	Synthesize(ctx context.Context, req backend.Request) backend.Outcome
}

// catalogProber is implemented by synthesizers that can probe the backend's
// live catalog; used for readiness reporting only.
type catalogProber interface {
	ListModels(ctx context.Context) ([]string, error)
}

type Server struct {
	cfg      config.Config
	sessions *session.Manager
	synth    Synthesizer
	store    history.Store
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
	static   http.Handler

	mu          sync.Mutex
	controllers map[string]*playback.Controller
}

func New(cfg config.Config, sessions *session.Manager, synth Synthesizer, store history.Store, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:         cfg,
		sessions:    sessions,
		synth:       synth,
		store:       store,
		metrics:     metrics,
		static:      newStaticHandler(),
		controllers: make(map[string]*playback.Controller),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up, so other sites cannot
				// drive a user's playback session.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Get("/ui", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ui/", http.StatusTemporaryRedirect)
	})
	r.Handle("/ui/*", http.StripPrefix("/ui/", s.static))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/api/tts", s.handleTTS)
	r.Get("/api/models", s.handleListModels)
	r.Get("/api/voices", s.handleListVoices)
	r.Get("/api/history", s.handleHistory)

	r.Post("/v1/session", s.handleCreateSession)
	r.Post("/v1/session/{id}/end", s.handleEndSession)
	r.Get("/v1/session/ws", s.handleSessionWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	backendStatus := "unknown"
	if prober, ok := s.synth.(catalogProber); ok {
		if _, err := prober.ListModels(r.Context()); err != nil {
			backendStatus = "unreachable"
		} else {
			backendStatus = "ok"
		}
	}
	// The proxy itself is ready even when the backend is down; requests
	// will surface 502s with a clear detail.
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ready",
		"backend": backendStatus,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondJSON(w, http.StatusOK, map[string]any{"records": []history.Record{}})
		return
	}
	records, err := s.store.Recent(r.Context(), 20)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_unavailable", err.Error())
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sess := s.sessions.Create(strings.TrimSpace(req.VoiceID), strings.TrimSpace(req.ModelID))
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()

	respondJSON(w, http.StatusCreated, session.CreateResponse{
		SessionID:       sess.ID,
		Status:          sess.Status,
		VoiceID:         sess.VoiceID,
		ModelID:         sess.ModelID,
		StartedAt:       sess.StartedAt,
		LastActivityAt:  sess.LastActivityAt,
		InactivityTTLMS: s.cfg.SessionInactivityTimeout.Milliseconds(),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.ReleaseSession(id)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	respondJSON(w, http.StatusOK, sess)
}

// ReleaseSession tears down the playback controller bound to a session,
// releasing its artifact. Safe to call for sessions with no controller.
func (s *Server) ReleaseSession(sessionID string) {
	s.mu.Lock()
	ctrl := s.controllers[sessionID]
	delete(s.controllers, sessionID)
	s.mu.Unlock()
	if ctrl != nil {
		ctrl.Close()
	}
}

// bindController registers a session's controller, closing any previous one
// so a reconnecting tab never leaves a live artifact behind.
func (s *Server) bindController(sessionID string, ctrl *playback.Controller) {
	s.mu.Lock()
	prev := s.controllers[sessionID]
	s.controllers[sessionID] = ctrl
	s.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
}

func (s *Server) unbindController(sessionID string, ctrl *playback.Controller) {
	s.mu.Lock()
	if s.controllers[sessionID] == ctrl {
		delete(s.controllers, sessionID)
	}
	s.mu.Unlock()
	ctrl.Close()
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// detailResponse matches the error body shape of the synthesis backend, so
// proxy errors and backend errors look the same to the UI.
type detailResponse struct {
	Detail string `json:"detail"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func respondDetail(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, detailResponse{Detail: detail})
}
