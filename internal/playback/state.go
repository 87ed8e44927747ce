package playback

import (
	"time"

	"github.com/google/uuid"
)

// State is the playback session state. Exactly one state is active at a
// time; transitions are owned by the Controller.
type State string

const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateReady      State = "ready"
	StatePlaying    State = "playing"
	StatePaused     State = "paused"
	StateError      State = "error"
)

// Artifact is one generated audio result. It is exclusively owned by the
// Controller; Release drops the bytes and must run before a replacement
// artifact is created.
type Artifact struct {
	ID          string
	Data        []byte
	ContentType string
	CreatedAt   time.Time

	released bool
}

func newArtifact(data []byte, contentType string) *Artifact {
	return &Artifact{
		ID:          uuid.NewString(),
		Data:        data,
		ContentType: contentType,
		CreatedAt:   time.Now().UTC(),
	}
}

// Release frees the artifact's audio bytes. Safe to call more than once.
func (a *Artifact) Release() {
	a.Data = nil
	a.released = true
}

// Released reports whether Release has been called.
func (a *Artifact) Released() bool {
	return a.released
}

// Snapshot is a read-only view of the controller for UI consumption.
type Snapshot struct {
	State      State  `json:"state"`
	ArtifactID string `json:"artifact_id,omitempty"`
	Detail     string `json:"detail,omitempty"`
}
