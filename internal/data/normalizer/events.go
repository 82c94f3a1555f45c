package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-agent-timeline/internal/core/model"
)

// DefaultDirectory is used when an envelope carries no directory
const DefaultDirectory = "global"

// Event kinds understood by the normalizer
const (
	KindSessionCreated    = "session.created"
	KindSessionStatus     = "session.status"
	KindSessionUpdated    = "session.updated"
	KindSessionError      = "session.error"
	KindMessageUpdated    = "message.updated"
	KindPartUpdated       = "message.part.updated"
	KindPermissionAsked   = "permission.asked"
	KindPermissionReplied = "permission.replied"
)

var ErrMalformedEnvelope = errors.New("malformed event envelope")

// RawEvent is one typed payload from the upstream stream.
// Raw holds the payload bytes exactly as received.
type RawEvent struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
	Directory  string          `json:"-"`
	Raw        json.RawMessage `json:"-"`
}

type envelope struct {
	Directory string          `json:"directory"`
	Payload   json.RawMessage `json:"payload"`
}

// DecodeEnvelope parses one {directory, payload} envelope
func DecodeEnvelope(data []byte) (RawEvent, error) {
	var env envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return RawEvent{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if len(env.Payload) == 0 {
		return RawEvent{}, fmt.Errorf("%w: missing payload", ErrMalformedEnvelope)
	}

	var ev RawEvent
	if err := sonic.Unmarshal(env.Payload, &ev); err != nil {
		return RawEvent{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if ev.Type == "" {
		return RawEvent{}, fmt.Errorf("%w: payload has no type", ErrMalformedEnvelope)
	}

	ev.Directory = env.Directory
	if ev.Directory == "" {
		ev.Directory = DefaultDirectory
	}
	ev.Raw = append(json.RawMessage(nil), env.Payload...)
	return ev, nil
}

type sessionInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type sessionInfoProps struct {
	Info sessionInfo `json:"info"`
}

type sessionStatusProps struct {
	SessionID string `json:"sessionID"`
	Status    struct {
		Type    string `json:"type"`
		Attempt int    `json:"attempt"`
		Message string `json:"message"`
	} `json:"status"`
}

type sessionErrorProps struct {
	SessionID string `json:"sessionID"`
	Error     *struct {
		Name string `json:"name"`
		Data *struct {
			Message string `json:"message"`
		} `json:"data"`
	} `json:"error"`
}

func (p sessionErrorProps) message() string {
	if p.Error == nil || p.Error.Data == nil {
		return ""
	}
	return p.Error.Data.Message
}

type messageInfo struct {
	ID         string            `json:"id"`
	SessionID  string            `json:"sessionID"`
	Role       string            `json:"role"`
	Finish     string            `json:"finish"`
	Tokens     *model.TokenUsage `json:"tokens"`
	Cost       *float64          `json:"cost"`
	ModelID    string            `json:"modelID"`
	ProviderID string            `json:"providerID"`
	Model      *struct {
		ModelID    string `json:"modelID"`
		ProviderID string `json:"providerID"`
	} `json:"model"`
}

type messageProps struct {
	Info messageInfo `json:"info"`
}

type toolState struct {
	Status string          `json:"status"`
	Input  json.RawMessage `json:"input"`
	Output string          `json:"output"`
	Error  string          `json:"error"`
	Time   *struct {
		Start int64 `json:"start"`
		End   int64 `json:"end"`
	} `json:"time"`
}

func (s toolState) duration() *int64 {
	if s.Time == nil || s.Time.End == 0 {
		return nil
	}
	d := s.Time.End - s.Time.Start
	return &d
}

type part struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"sessionID"`
	MessageID   string            `json:"messageID"`
	Type        string            `json:"type"`
	Text        string            `json:"text"`
	Tool        string            `json:"tool"`
	State       toolState         `json:"state"`
	Reason      string            `json:"reason"`
	Tokens      *model.TokenUsage `json:"tokens"`
	Cost        *float64          `json:"cost"`
	Description string            `json:"description"`
	Agent       string            `json:"agent"`
	Name        string            `json:"name"`
}

type partProps struct {
	Part  part   `json:"part"`
	Delta string `json:"delta"`
}

// permissionText accepts either a plain string or a permission object
type permissionText string

func (p *permissionText) UnmarshalJSON(data []byte) error {
	var s string
	if err := sonic.Unmarshal(data, &s); err == nil {
		*p = permissionText(s)
		return nil
	}
	var obj struct {
		Title string `json:"title"`
		Type  string `json:"type"`
		ID    string `json:"id"`
	}
	if err := sonic.Unmarshal(data, &obj); err != nil {
		return err
	}
	switch {
	case obj.Title != "":
		*p = permissionText(obj.Title)
	case obj.Type != "":
		*p = permissionText(obj.Type)
	default:
		*p = permissionText(obj.ID)
	}
	return nil
}

type permissionAskedProps struct {
	SessionID  string         `json:"sessionID"`
	Permission permissionText `json:"permission"`
}

type permissionRepliedProps struct {
	SessionID string `json:"sessionID"`
	Reply     string `json:"reply"`
}
