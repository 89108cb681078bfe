package webhooks

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/goliatone/go-callverify/core"
)

type EventType string

const (
	EventFunctionCall    EventType = "function_call"
	EventRoomFinished    EventType = "room_finished"
	EventParticipantLeft EventType = "participant_left"
)

// Event is one decoded webhook. Each variant carries only its own fields.
type Event interface {
	Type() EventType
}

type FunctionCallEvent struct {
	CallID       string
	FunctionName string
	Parameters   core.StepParameters
	RoomName     string
	RoomMetadata map[string]any
}

func (FunctionCallEvent) Type() EventType { return EventFunctionCall }

func (e FunctionCallEvent) Call() core.FunctionCall {
	return core.FunctionCall{
		CallID:       e.CallID,
		FunctionName: e.FunctionName,
		Parameters:   e.Parameters,
		RoomName:     e.RoomName,
		RoomMetadata: e.RoomMetadata,
	}
}

type RoomFinishedEvent struct {
	RoomName string
	CallID   string
}

func (RoomFinishedEvent) Type() EventType { return EventRoomFinished }

type ParticipantLeftEvent struct {
	RoomName string
	CallID   string
	Identity string
}

func (ParticipantLeftEvent) Type() EventType { return EventParticipantLeft }

// UnknownEvent keeps the raw type of anything the ingress does not route.
type UnknownEvent struct {
	RawType string
}

func (e UnknownEvent) Type() EventType { return EventType(e.RawType) }

type rawRoom struct {
	Name     string          `json:"name"`
	Metadata json.RawMessage `json:"metadata"`
}

type rawParticipant struct {
	Identity string `json:"identity"`
}

type rawEvent struct {
	Type         string          `json:"type"`
	FunctionName string          `json:"functionName"`
	Parameters   map[string]any  `json:"parameters"`
	CallID       string          `json:"callId"`
	RoomName     string          `json:"roomName"`
	Room         *rawRoom        `json:"room"`
	Metadata     map[string]any  `json:"metadata"`
	Participant  *rawParticipant `json:"participant"`
}

// DecodeEvent parses a webhook body into its event variant. Malformed JSON
// returns a payload error; an unrecognized type is not an error.
func DecodeEvent(body []byte) (Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, core.NewPayloadError(err, map[string]any{"size": len(body)})
	}

	roomName := strings.TrimSpace(raw.RoomName)
	metadata := map[string]any{}
	if raw.Room != nil {
		if roomName == "" {
			roomName = strings.TrimSpace(raw.Room.Name)
		}
		metadata = decodeRoomMetadata(raw.Room.Metadata)
	}
	if len(metadata) == 0 && len(raw.Metadata) > 0 {
		metadata = raw.Metadata
	}
	callID := strings.TrimSpace(raw.CallID)

	switch EventType(strings.TrimSpace(raw.Type)) {
	case EventFunctionCall:
		params := core.StepParameters(raw.Parameters)
		if params == nil {
			params = core.StepParameters{}
		}
		return FunctionCallEvent{
			CallID:       callID,
			FunctionName: strings.TrimSpace(raw.FunctionName),
			Parameters:   params,
			RoomName:     roomName,
			RoomMetadata: metadata,
		}, nil
	case EventRoomFinished:
		return RoomFinishedEvent{RoomName: roomName, CallID: callID}, nil
	case EventParticipantLeft:
		event := ParticipantLeftEvent{RoomName: roomName, CallID: callID}
		if raw.Participant != nil {
			event.Identity = strings.TrimSpace(raw.Participant.Identity)
		}
		return event, nil
	default:
		return UnknownEvent{RawType: raw.Type}, nil
	}
}

// decodeRoomMetadata accepts an object or a JSON-encoded string. Anything
// else yields an empty map.
func decodeRoomMetadata(raw json.RawMessage) map[string]any {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}
	}
	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return map[string]any{}
		}
		raw = []byte(strings.TrimSpace(encoded))
		if len(raw) == 0 {
			return map[string]any{}
		}
	}
	metadata := map[string]any{}
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return map[string]any{}
	}
	return metadata
}
