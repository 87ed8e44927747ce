// Package history records synthesis request metadata. Audio bytes are never
// stored; artifacts live only inside their session.
package history

import (
	"context"
	"time"
)

// Record stores the metadata of one synthesis attempt and its outcome.
type Record struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"session_id"`
	Text       string        `json:"text"`
	Voice      string        `json:"voice"`
	Model      string        `json:"model"`
	Outcome    string        `json:"outcome"`
	StatusCode int           `json:"status_code"`
	AudioBytes int           `json:"audio_bytes"`
	Duration   time.Duration `json:"duration_ms"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Store persists and retrieves synthesis history.
type Store interface {
	Save(ctx context.Context, record Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}
