// Package protocol defines the websocket payloads exchanged between the
// browser UI and the playback session host.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	// Client → server.
	TypeGenerate    MessageType = "generate"
	TypeControl     MessageType = "control"
	TypePlayerEvent MessageType = "player_event"

	// Server → client.
	TypeStateEvent      MessageType = "state_event"
	TypeAudioReady      MessageType = "audio_ready"
	TypeDownloadPayload MessageType = "download_payload"
	TypeErrorEvent      MessageType = "error_event"
)

// Control actions accepted from the client.
const (
	ActionPlay     = "play"
	ActionPause    = "pause"
	ActionDownload = "download"
	ActionEdit     = "edit"
)

// Player events reported by the client's audio element.
const PlayerEventEnded = "ended"

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// Generate asks the session to synthesize new audio, superseding any
// previous artifact.
type Generate struct {
	Type  MessageType `json:"type"`
	Text  string      `json:"text"`
	Voice string      `json:"voice,omitempty"`
	Model string      `json:"model,omitempty"`
}

// Control carries a playback action.
type Control struct {
	Type   MessageType `json:"type"`
	Action string      `json:"action"`
}

// PlayerEvent reports an audio element event back to the controller.
type PlayerEvent struct {
	Type  MessageType `json:"type"`
	Event string      `json:"event"`
}

// StateEvent is the snapshot pushed after every committed transition.
type StateEvent struct {
	Type       MessageType `json:"type"`
	State      string      `json:"state"`
	ArtifactID string      `json:"artifact_id,omitempty"`
	Detail     string      `json:"detail,omitempty"`
}

// AudioReady delivers a freshly generated artifact to the client.
type AudioReady struct {
	Type        MessageType `json:"type"`
	ArtifactID  string      `json:"artifact_id"`
	ContentType string      `json:"content_type"`
	AudioBase64 string      `json:"audio_base64"`
}

// DownloadPayload answers a download action.
type DownloadPayload struct {
	Type        MessageType `json:"type"`
	Filename    string      `json:"filename"`
	ContentType string      `json:"content_type"`
	AudioBase64 string      `json:"audio_base64"`
}

// ErrorEvent reports a rejected action or generation failure.
type ErrorEvent struct {
	Type   MessageType `json:"type"`
	Code   string      `json:"code"`
	Detail string      `json:"detail"`
}

// ParseClientMessage decodes and validates one inbound message.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeGenerate:
		var msg Generate
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeControl:
		var msg Control
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		switch msg.Action {
		case ActionPlay, ActionPause, ActionDownload, ActionEdit:
			return msg, nil
		default:
			return nil, fmt.Errorf("invalid control action %q", msg.Action)
		}
	case TypePlayerEvent:
		var msg PlayerEvent
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Event != PlayerEventEnded {
			return nil, fmt.Errorf("invalid player event %q", msg.Event)
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
