package httpapi

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mewlabs/kittenvox/internal/playback"
	"github.com/mewlabs/kittenvox/internal/protocol"
)

// handleSessionWS hosts one playback session. The browser sends generate,
// control and player events; the server owns the state machine and pushes
// state snapshots, generated audio and download payloads back.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 256)
	bridge := &playerBridge{}
	pusher := &statePusher{ctx: ctx, outbound: outbound}

	ctrl := playback.NewController(s.synth, bridge.factory, pusher.onChange)
	pusher.ctrl = ctrl
	s.bindController(sessionID, ctrl)
	defer s.unbindController(sessionID, ctrl)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
				}
			}
		}
	}()

	// Tell the client where the session starts.
	pusher.push(snapshotEvent(ctrl.Snapshot()))

	conn.SetReadLimit(1 << 20)

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			pusher.push(protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Detail: err.Error(),
			})
			continue
		}
		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}
		_ = s.sessions.Touch(sessionID)

		switch msg := parsed.(type) {
		case protocol.Generate:
			voice := msg.Voice
			if voice == "" {
				voice = sess.VoiceID
			}
			model := msg.Model
			if model == "" {
				model = sess.ModelID
			}
			if err := ctrl.Generate(ctx, msg.Text, voice, model); err != nil {
				if errors.Is(err, playback.ErrEmptyText) {
					pusher.push(protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: "missing_text", Detail: missingTextDetail})
				} else {
					pusher.push(protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: "generate_failed", Detail: err.Error()})
				}
			}
		case protocol.Control:
			s.dispatchControl(ctrl, pusher, msg.Action)
		case protocol.PlayerEvent:
			// Only "ended" parses; it maps to natural end-of-audio.
			bridge.ended()
		}

		select {
		case <-ctx.Done():
			break readLoop
		default:
		}
	}

	cancel()
	<-writerDone
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}

func (s *Server) dispatchControl(ctrl *playback.Controller, pusher *statePusher, action string) {
	switch action {
	case protocol.ActionPlay:
		if err := ctrl.Play(); err != nil {
			pusher.push(protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: "invalid_action", Detail: err.Error()})
		}
	case protocol.ActionPause:
		if err := ctrl.Pause(); err != nil {
			pusher.push(protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: "invalid_action", Detail: err.Error()})
		}
	case protocol.ActionDownload:
		filename, data, err := ctrl.Download()
		if err != nil {
			pusher.push(protocol.ErrorEvent{Type: protocol.TypeErrorEvent, Code: "no_artifact", Detail: err.Error()})
			return
		}
		_, contentType, _, _ := ctrl.Artifact()
		pusher.push(protocol.DownloadPayload{
			Type:        protocol.TypeDownloadPayload,
			Filename:    filename,
			ContentType: contentType,
			AudioBase64: base64.StdEncoding.EncodeToString(data),
		})
	case protocol.ActionEdit:
		ctrl.Edit()
	}
}

// statePusher forwards controller transitions to the websocket writer. When
// a generation lands it also ships the artifact bytes, exactly once per
// artifact.
type statePusher struct {
	ctx      context.Context
	outbound chan any
	ctrl     *playback.Controller

	mu       sync.Mutex
	lastSent string
}

func (p *statePusher) onChange(snap playback.Snapshot) {
	p.push(snapshotEvent(snap))

	if snap.State != playback.StateReady || snap.ArtifactID == "" {
		return
	}
	p.mu.Lock()
	isNew := snap.ArtifactID != p.lastSent
	if isNew {
		p.lastSent = snap.ArtifactID
	}
	p.mu.Unlock()
	if !isNew {
		return
	}

	_, data, err := p.ctrl.Download()
	if err != nil {
		return
	}
	id, contentType, _, _ := p.ctrl.Artifact()
	p.push(protocol.AudioReady{
		Type:        protocol.TypeAudioReady,
		ArtifactID:  id,
		ContentType: contentType,
		AudioBase64: base64.StdEncoding.EncodeToString(data),
	})
}

func (p *statePusher) push(msg any) {
	select {
	case <-p.ctx.Done():
	case p.outbound <- msg:
	}
}

func snapshotEvent(snap playback.Snapshot) protocol.StateEvent {
	return protocol.StateEvent{
		Type:       protocol.TypeStateEvent,
		State:      string(snap.State),
		ArtifactID: snap.ArtifactID,
		Detail:     snap.Detail,
	}
}

// playerBridge routes the client's end-of-audio report to whichever player
// binding is currently live.
type playerBridge struct {
	mu      sync.Mutex
	current *wsPlayer
}

func (b *playerBridge) factory() playback.Player {
	p := &wsPlayer{}
	b.mu.Lock()
	b.current = p
	b.mu.Unlock()
	return p
}

func (b *playerBridge) ended() {
	b.mu.Lock()
	p := b.current
	b.mu.Unlock()
	if p != nil {
		p.ended()
	}
}

// wsPlayer mirrors the browser's audio element. Start/Pause/Resume carry no
// wire traffic of their own; the client reacts to state events. The binding
// only holds the finished callback until the client reports "ended".
type wsPlayer struct {
	mu       sync.Mutex
	finished func()
}

func (p *wsPlayer) Start(_ *playback.Artifact, finished func()) error {
	p.mu.Lock()
	p.finished = finished
	p.mu.Unlock()
	return nil
}

func (p *wsPlayer) Pause() error  { return nil }
func (p *wsPlayer) Resume() error { return nil }

func (p *wsPlayer) Stop() {
	p.mu.Lock()
	p.finished = nil
	p.mu.Unlock()
}

func (p *wsPlayer) ended() {
	p.mu.Lock()
	f := p.finished
	p.finished = nil
	p.mu.Unlock()
	if f != nil {
		f()
	}
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.Generate:
		return m.Type, true
	case protocol.Control:
		return m.Type, true
	case protocol.PlayerEvent:
		return m.Type, true
	case protocol.StateEvent:
		return m.Type, true
	case protocol.AudioReady:
		return m.Type, true
	case protocol.DownloadPayload:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
