package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mewlabs/kittenvox/internal/audio"
	"github.com/mewlabs/kittenvox/internal/backend"
	"github.com/mewlabs/kittenvox/internal/config"
	"github.com/mewlabs/kittenvox/internal/history"
	"github.com/mewlabs/kittenvox/internal/observability"
	"github.com/mewlabs/kittenvox/internal/playback"
	"github.com/mewlabs/kittenvox/internal/session"
)

type scriptedSynth struct {
	calls   atomic.Int32
	outcome backend.Outcome
}

func (s *scriptedSynth) Synthesize(_ context.Context, _ backend.Request) backend.Outcome {
	s.calls.Add(1)
	return s.outcome
}

var metricsSeq atomic.Int64

func newTestServer(t *testing.T, synth Synthesizer, store history.Store) *Server {
	t.Helper()
	cfg := config.Config{
		SessionInactivityTimeout: 2 * time.Minute,
		AllowAnyOrigin:           true,
	}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	metrics := observability.NewMetrics(fmt.Sprintf("test_httpapi_%d", metricsSeq.Add(1)))
	return New(cfg, sessions, synth, store, metrics)
}

func TestTTSMissingTextIsLocalError(t *testing.T) {
	synth := &scriptedSynth{}
	srv := newTestServer(t, synth, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for _, target := range []string{"/api/tts", "/api/tts?text=", "/api/tts?text=%20%20"} {
		res, err := http.Get(ts.URL + target)
		if err != nil {
			t.Fatalf("GET %s error = %v", target, err)
		}
		var body struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("GET %s status = %d, want 400", target, res.StatusCode)
		}
		if body.Detail != "Missing 'text' parameter" {
			t.Fatalf("detail = %q", body.Detail)
		}
	}
	if synth.calls.Load() != 0 {
		t.Fatalf("backend calls = %d, want 0 for missing text", synth.calls.Load())
	}
}

func TestTTSSuccessRelaysBytesExactly(t *testing.T) {
	wav, err := audio.EncodeWAVPCM16LE(bytes.Repeat([]byte{0xAB, 0xCD}, 1200), 24000)
	if err != nil {
		t.Fatalf("EncodeWAVPCM16LE() error = %v", err)
	}
	synth := &scriptedSynth{outcome: backend.Outcome{
		Kind: backend.OutcomeAudio, Audio: wav, ContentType: "audio/wav", StatusCode: 200,
	}}
	store := history.NewInMemoryStore()
	srv := newTestServer(t, synth, store)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/api/tts?text=Hello+world&voice=Luna&model=m1")
	if err != nil {
		t.Fatalf("GET /api/tts error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "audio/wav" {
		t.Fatalf("Content-Type = %q, want audio/wav", ct)
	}
	if cd := res.Header.Get("Content-Disposition"); cd != `attachment; filename="output.wav"` {
		t.Fatalf("Content-Disposition = %q", cd)
	}
	got, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !bytes.Equal(got, wav) {
		t.Fatalf("relayed bytes differ from backend payload")
	}
	if synth.calls.Load() != 1 {
		t.Fatalf("backend calls = %d, want exactly 1", synth.calls.Load())
	}

	// History records the outcome (written asynchronously).
	deadline := time.Now().Add(time.Second)
	for {
		records, err := store.Recent(context.Background(), 1)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		if len(records) == 1 {
			if records[0].Outcome != "audio" || records[0].AudioBytes != len(wav) {
				t.Fatalf("unexpected history record: %+v", records[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("history record never written")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTTSBackendErrorPassthrough(t *testing.T) {
	synth := &scriptedSynth{outcome: backend.Outcome{
		Kind: backend.OutcomeBackendError, StatusCode: http.StatusInternalServerError, Detail: "OOM",
	}}
	srv := newTestServer(t, synth, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/api/tts?text=hi")
	if err != nil {
		t.Fatalf("GET /api/tts error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want backend's 500 preserved", res.StatusCode)
	}
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Detail != "OOM" {
		t.Fatalf("detail = %q, want backend detail passed through", body.Detail)
	}
}

func TestTTSTimeoutAndUnreachableAreDistinct(t *testing.T) {
	cases := []struct {
		outcome    backend.Outcome
		wantStatus int
		wantDetail string
	}{
		{backend.Outcome{Kind: backend.OutcomeTimeout, Detail: backend.TimeoutDetail}, http.StatusGatewayTimeout, backend.TimeoutDetail},
		{backend.Outcome{Kind: backend.OutcomeUnreachable, Detail: backend.UnreachableDetail}, http.StatusBadGateway, backend.UnreachableDetail},
	}
	for _, tc := range cases {
		synth := &scriptedSynth{outcome: tc.outcome}
		srv := newTestServer(t, synth, nil)
		ts := httptest.NewServer(srv.Router())

		res, err := http.Get(ts.URL + "/api/tts?text=hi")
		if err != nil {
			t.Fatalf("GET /api/tts error = %v", err)
		}
		var body struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		res.Body.Close()
		ts.Close()

		if res.StatusCode != tc.wantStatus {
			t.Fatalf("status = %d, want %d", res.StatusCode, tc.wantStatus)
		}
		if body.Detail != tc.wantDetail {
			t.Fatalf("detail = %q, want %q", body.Detail, tc.wantDetail)
		}
	}
	if !strings.Contains(backend.TimeoutDetail, "may still be loading") {
		t.Fatalf("timeout detail should hint the model may still be loading")
	}
}

func TestCatalogEndpoints(t *testing.T) {
	srv := newTestServer(t, &scriptedSynth{}, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/api/models")
	if err != nil {
		t.Fatalf("GET /api/models error = %v", err)
	}
	var models listModelsResponse
	if err := json.NewDecoder(res.Body).Decode(&models); err != nil {
		t.Fatalf("decode models: %v", err)
	}
	res.Body.Close()
	if len(models.Models) != 4 || models.DefaultModel != "KittenML/kitten-tts-mini-0.8" {
		t.Fatalf("unexpected models response: %+v", models)
	}

	res, err = http.Get(ts.URL + "/api/voices")
	if err != nil {
		t.Fatalf("GET /api/voices error = %v", err)
	}
	var voices listVoicesResponse
	if err := json.NewDecoder(res.Body).Decode(&voices); err != nil {
		t.Fatalf("decode voices: %v", err)
	}
	res.Body.Close()
	if len(voices.Voices) != 8 || voices.DefaultVoice != "Jasper" {
		t.Fatalf("unexpected voices response: %+v", voices)
	}
}

func TestCreateAndEndSession(t *testing.T) {
	srv := newTestServer(t, &scriptedSynth{}, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(session.CreateRequest{VoiceID: "Luna"})
	res, err := http.Post(ts.URL+"/v1/session", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create session request error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var created session.CreateResponse
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.SessionID == "" || created.VoiceID != "Luna" {
		t.Fatalf("unexpected create response: %+v", created)
	}

	endRes, err := http.Post(ts.URL+"/v1/session/"+created.SessionID+"/end", "application/json", nil)
	if err != nil {
		t.Fatalf("end session request error = %v", err)
	}
	defer endRes.Body.Close()
	if endRes.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d, want %d", endRes.StatusCode, http.StatusOK)
	}
}

func TestUIRoutes(t *testing.T) {
	srv := newTestServer(t, &scriptedSynth{}, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	rootRes, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	defer rootRes.Body.Close()
	if rootRes.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("GET / status = %d, want %d", rootRes.StatusCode, http.StatusTemporaryRedirect)
	}
	if got := rootRes.Header.Get("Location"); got != "/ui/" {
		t.Fatalf("GET / location = %q, want %q", got, "/ui/")
	}

	uiRes, err := http.Get(ts.URL + "/ui/")
	if err != nil {
		t.Fatalf("GET /ui/ error = %v", err)
	}
	defer uiRes.Body.Close()
	if uiRes.StatusCode != http.StatusOK {
		t.Fatalf("GET /ui/ status = %d, want %d", uiRes.StatusCode, http.StatusOK)
	}
	var body bytes.Buffer
	if _, err := body.ReadFrom(uiRes.Body); err != nil {
		t.Fatalf("reading /ui/ body failed: %v", err)
	}
	if !strings.Contains(body.String(), "KittenTTS") {
		t.Fatalf("GET /ui/ body missing expected content")
	}
}

func TestReleaseSessionClosesBoundController(t *testing.T) {
	synth := &scriptedSynth{outcome: backend.Outcome{
		Kind: backend.OutcomeAudio, Audio: []byte("RIFF"), ContentType: "audio/wav",
	}}
	srv := newTestServer(t, synth, nil)

	ctrl := playback.NewController(synth, func() playback.Player { return nil }, nil)
	if err := ctrl.Generate(context.Background(), "hi", "", ""); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for ctrl.Snapshot().State != playback.StateReady {
		if time.Now().After(deadline) {
			t.Fatalf("controller never reached ready")
		}
		time.Sleep(2 * time.Millisecond)
	}

	srv.bindController("sess-1", ctrl)
	srv.ReleaseSession("sess-1")

	if got := ctrl.Snapshot().State; got != playback.StateIdle {
		t.Fatalf("state after release = %q, want idle", got)
	}
	if _, _, err := ctrl.Download(); err == nil {
		t.Fatalf("released session must not retain a downloadable artifact")
	}
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, &scriptedSynth{}, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		res, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d, want 200", path, res.StatusCode)
		}
	}
}
