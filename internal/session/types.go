package session

import "time"

// CreateRequest defines payload for creating a new session.
type CreateRequest struct {
	VoiceID string `json:"voice_id"`
	ModelID string `json:"model_id"`
}

// CreateResponse returns created session metadata.
type CreateResponse struct {
	SessionID       string    `json:"session_id"`
	Status          Status    `json:"status"`
	VoiceID         string    `json:"voice_id"`
	ModelID         string    `json:"model_id"`
	StartedAt       time.Time `json:"started_at"`
	LastActivityAt  time.Time `json:"last_activity_at"`
	InactivityTTLMS int64     `json:"inactivity_ttl_ms"`
}
