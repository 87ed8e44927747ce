// Package playback implements the per-session state machine that owns one
// generated audio artifact and its player binding: generation, play, pause,
// resume, download, replacement and teardown.
package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mewlabs/kittenvox/internal/backend"
)

var (
	// ErrEmptyText rejects generation requests with no text to speak.
	ErrEmptyText = errors.New("text must not be empty")
	// ErrNoArtifact is returned for play/download actions with nothing generated.
	ErrNoArtifact = errors.New("no audio artifact available")
)

// InvalidActionError reports an action that the current state does not allow.
type InvalidActionError struct {
	Action string
	State  State
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("action %q not allowed in state %q", e.Action, e.State)
}

// Player is one playback binding for a single artifact. Implementations
// report natural end-of-audio by calling the finished callback passed to
// Start; the callback must not be invoked synchronously from Start, and
// Stop must not trigger it.
type Player interface {
	Start(a *Artifact, finished func()) error
	Pause() error
	Resume() error
	Stop()
}

// PlayerFactory builds a fresh player binding. At most one player built by
// the factory is live at a time.
type PlayerFactory func() Player

// Synthesizer produces audio for a synthesis request. *backend.Client
// satisfies it.
type Synthesizer interface {
	Synthesize(ctx context.Context, req backend.Request) backend.Outcome
}

// DownloadFilename is the fixed name audio artifacts are exposed under.
const DownloadFilename = "output.wav"

// Controller owns at most one live artifact and one player binding.
// Transitions are synchronous under the controller's lock; the backend call
// is the only suspension point and its result is applied through a sequence
// token so a stale response never overwrites a newer state.
type Controller struct {
	synth     Synthesizer
	newPlayer PlayerFactory
	onChange  func(Snapshot)

	mu       sync.Mutex
	state    State
	artifact *Artifact
	player   Player
	seq      uint64
	detail   string
}

// NewController creates an idle controller. onChange, when non-nil, is
// invoked outside the lock after every committed transition.
func NewController(synth Synthesizer, newPlayer PlayerFactory, onChange func(Snapshot)) *Controller {
	return &Controller{
		synth:     synth,
		newPlayer: newPlayer,
		onChange:  onChange,
		state:     StateIdle,
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Generate tears down any existing artifact, enters Generating and issues
// the synthesis request. The response is applied only if no newer Generate
// or Edit has superseded it.
func (c *Controller) Generate(ctx context.Context, text, voice, model string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	c.mu.Lock()
	c.teardownLocked()
	c.state = StateGenerating
	c.detail = ""
	c.seq++
	token := c.seq
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)

	go func() {
		out := c.synth.Synthesize(ctx, backend.Request{Text: text, Voice: voice, Model: model})
		c.complete(token, out)
	}()
	return nil
}

// complete applies a generation result, discarding it when stale.
func (c *Controller) complete(token uint64, out backend.Outcome) {
	c.mu.Lock()
	if token != c.seq || c.state != StateGenerating {
		c.mu.Unlock()
		return
	}

	switch out.Kind {
	case backend.OutcomeAudio:
		c.artifact = newArtifact(out.Audio, out.ContentType)
		c.state = StateReady
		c.detail = ""
	default:
		c.state = StateError
		c.detail = out.Detail
		if c.detail == "" {
			c.detail = "TTS generation failed"
		}
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// Play starts playback in Ready, resumes it in Paused and pauses it in
// Playing, mirroring a single toggle button.
func (c *Controller) Play() error {
	c.mu.Lock()
	switch c.state {
	case StateReady:
		player := c.newPlayer()
		if err := player.Start(c.artifact, func() { c.playerFinished() }); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("start player: %w", err)
		}
		c.player = player
		c.state = StatePlaying
	case StatePaused:
		if err := c.player.Resume(); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("resume player: %w", err)
		}
		c.state = StatePlaying
	case StatePlaying:
		if err := c.player.Pause(); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("pause player: %w", err)
		}
		c.state = StatePaused
	default:
		state := c.state
		c.mu.Unlock()
		return &InvalidActionError{Action: "play", State: state}
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

// Pause suspends playback, keeping the player binding so Play can resume
// from the retained position.
func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.state != StatePlaying {
		state := c.state
		c.mu.Unlock()
		return &InvalidActionError{Action: "pause", State: state}
	}
	if err := c.player.Pause(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("pause player: %w", err)
	}
	c.state = StatePaused
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
	return nil
}

// playerFinished handles natural end-of-audio: the player binding is
// released, the artifact is kept for replay and download.
func (c *Controller) playerFinished() {
	c.mu.Lock()
	if c.state != StatePlaying {
		c.mu.Unlock()
		return
	}
	c.player = nil
	c.state = StateReady
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// Download exposes the current artifact's bytes under the fixed filename.
// It is valid whenever an artifact exists and never changes state.
func (c *Controller) Download() (string, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.artifact == nil || c.artifact.Released() {
		return "", nil, ErrNoArtifact
	}
	return DownloadFilename, c.artifact.Data, nil
}

// Artifact returns the live artifact's id, content type and size.
func (c *Controller) Artifact() (id, contentType string, size int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.artifact == nil || c.artifact.Released() {
		return "", "", 0, false
	}
	return c.artifact.ID, c.artifact.ContentType, len(c.artifact.Data), true
}

// Edit invalidates the current result: any playback stops, the artifact is
// released and the session returns to Idle. An in-flight generation is
// superseded (its response will be discarded).
func (c *Controller) Edit() {
	c.mu.Lock()
	c.teardownLocked()
	c.seq++
	c.state = StateIdle
	c.detail = ""
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// Close releases all resources. Used on session end and expiry.
func (c *Controller) Close() {
	c.Edit()
}

// teardownLocked stops the player and releases the artifact, in that order,
// so no two live artifacts ever overlap.
func (c *Controller) teardownLocked() {
	if c.player != nil {
		c.player.Stop()
		c.player = nil
	}
	if c.artifact != nil {
		c.artifact.Release()
		c.artifact = nil
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{State: c.state, Detail: c.detail}
	if c.artifact != nil && !c.artifact.Released() {
		snap.ArtifactID = c.artifact.ID
	}
	return snap
}

func (c *Controller) notify(snap Snapshot) {
	if c.onChange != nil {
		c.onChange(snap)
	}
}
