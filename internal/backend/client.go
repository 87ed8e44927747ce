// Package backend is the HTTP client for the external speech-synthesis
// service. It issues a single bounded attempt per request and folds every
// result into an Outcome, so callers never see raw transport errors.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mewlabs/kittenvox/internal/reliability"
)

// RequestTimeout is the hard ceiling on one synthesis call. It is generous
// because the first request against a cold backend also pays the model load.
const RequestTimeout = 5 * time.Minute

// Canonical user-facing detail strings for transport-level outcomes. The
// timeout wording deliberately hints that the backend may still be working.
const (
	TimeoutDetail      = "Request timed out. The model may still be loading."
	UnreachableDetail  = "Cannot reach the TTS backend. Is it running?"
	genericErrorDetail = "Backend error"
)

// Request carries one synthesis request. Voice and Model are pass-through
// strings; when empty they are omitted and the backend defaults apply.
type Request struct {
	Text  string
	Voice string
	Model string
}

// OutcomeKind discriminates the Outcome union.
type OutcomeKind int

const (
	OutcomeAudio OutcomeKind = iota
	OutcomeBackendError
	OutcomeTimeout
	OutcomeUnreachable
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAudio:
		return "audio"
	case OutcomeBackendError:
		return "backend_error"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// Outcome is the result of exactly one synthesis attempt. Audio and
// ContentType are set only for OutcomeAudio; StatusCode and Detail only for
// the error kinds.
type Outcome struct {
	Kind        OutcomeKind
	Audio       []byte
	ContentType string
	StatusCode  int
	Detail      string
}

type errorBody struct {
	Detail string `json:"detail"`
}

// Client talks to the synthesis backend.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// NewClient creates a backend client for the given base URL. The HTTP
// client carries no timeout of its own; Synthesize applies the deadline via
// context so the in-flight request is cancelled when it elapses.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: RequestTimeout,
	}
}

// Synthesize performs one GET /tts call under RequestTimeout. It never
// returns an error: validation failures, backend errors, timeouts and
// unreachable transports all map to Outcome variants.
func (c *Client) Synthesize(ctx context.Context, req Request) Outcome {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("text", req.Text)
	if req.Voice != "" {
		q.Set("voice", req.Voice)
	}
	if req.Model != "" {
		q.Set("model", req.Model)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tts?"+q.Encode(), nil)
	if err != nil {
		return Outcome{Kind: OutcomeUnreachable, Detail: UnreachableDetail}
	}

	res, err := c.http.Do(httpReq)
	if err != nil {
		if reliability.IsTimeout(err) {
			return Outcome{Kind: OutcomeTimeout, Detail: TimeoutDetail}
		}
		return Outcome{Kind: OutcomeUnreachable, Detail: UnreachableDetail}
	}
	defer res.Body.Close()

	if !reliability.IsSuccessHTTPStatus(res.StatusCode) {
		detail := genericErrorDetail
		var body errorBody
		if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&body); err == nil && strings.TrimSpace(body.Detail) != "" {
			detail = body.Detail
		}
		return Outcome{Kind: OutcomeBackendError, StatusCode: res.StatusCode, Detail: detail}
	}

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		if reliability.IsTimeout(err) {
			return Outcome{Kind: OutcomeTimeout, Detail: TimeoutDetail}
		}
		return Outcome{Kind: OutcomeUnreachable, Detail: UnreachableDetail}
	}

	contentType := res.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/wav"
	}
	return Outcome{Kind: OutcomeAudio, Audio: audio, ContentType: contentType, StatusCode: res.StatusCode}
}

// ListModels fetches the backend's model identifiers. Used as a liveness
// probe; the UI catalog does not depend on it.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	return c.fetchList(ctx, "/models", "models")
}

// ListVoices fetches the backend's voice names.
func (c *Client) ListVoices(ctx context.Context) ([]string, error) {
	return c.fetchList(ctx, "/voices", "voices")
}

func (c *Client) fetchList(ctx context.Context, path, key string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer res.Body.Close()
	if !reliability.IsSuccessHTTPStatus(res.StatusCode) {
		return nil, fmt.Errorf("fetch %s: status %d", path, res.StatusCode)
	}

	var parsed map[string][]string
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return parsed[key], nil
}
