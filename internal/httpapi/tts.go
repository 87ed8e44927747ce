package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mewlabs/kittenvox/internal/backend"
	"github.com/mewlabs/kittenvox/internal/history"
)

const missingTextDetail = "Missing 'text' parameter"

// handleTTS proxies one synthesis request to the backend. Validation is
// local and free; everything else is a single bounded backend attempt whose
// outcome maps one-to-one onto the response.
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text := q.Get("text")
	if strings.TrimSpace(text) == "" {
		respondDetail(w, http.StatusBadRequest, missingTextDetail)
		return
	}

	req := backend.Request{
		Text:  text,
		Voice: q.Get("voice"),
		Model: q.Get("model"),
	}

	start := time.Now()
	out := s.synth.Synthesize(r.Context(), req)
	elapsed := time.Since(start)

	s.metrics.ObserveSynthesis(out.Kind.String(), elapsed)
	s.recordSynthesis(q.Get("session_id"), req, out, elapsed)

	switch out.Kind {
	case backend.OutcomeAudio:
		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set("Content-Disposition", `attachment; filename="output.wav"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(out.Audio)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out.Audio)
	case backend.OutcomeBackendError:
		s.metrics.BackendErrors.WithLabelValues(strconv.Itoa(out.StatusCode)).Inc()
		respondDetail(w, out.StatusCode, out.Detail)
	case backend.OutcomeTimeout:
		respondDetail(w, http.StatusGatewayTimeout, out.Detail)
	case backend.OutcomeUnreachable:
		respondDetail(w, http.StatusBadGateway, out.Detail)
	}
}

// recordSynthesis appends a history row. Best effort; the response never
// waits on or fails with the store.
func (s *Server) recordSynthesis(sessionID string, req backend.Request, out backend.Outcome, elapsed time.Duration) {
	if s.store == nil {
		return
	}
	rec := history.Record{
		SessionID:  sessionID,
		Text:       req.Text,
		Voice:      req.Voice,
		Model:      req.Model,
		Outcome:    out.Kind.String(),
		StatusCode: out.StatusCode,
		AudioBytes: len(out.Audio),
		Duration:   elapsed,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.store.Save(ctx, rec)
	}()
}
