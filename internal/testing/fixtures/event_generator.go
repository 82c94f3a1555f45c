package fixtures

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-agent-timeline/internal/core/model"
)

// Payload is one upstream event payload: {"type": ..., "properties": {...}}
type Payload map[string]interface{}

func payload(kind string, props map[string]interface{}) Payload {
	return Payload{"type": kind, "properties": props}
}

// EventGenerator builds upstream events for one session
type EventGenerator struct {
	SessionID string
	MessageID string
}

// NewEventGenerator creates a generator for the given session
func NewEventGenerator(sessionID string) *EventGenerator {
	return &EventGenerator{SessionID: sessionID, MessageID: "msg_" + sessionID}
}

func (g *EventGenerator) SessionCreated(title string) Payload {
	return payload("session.created", map[string]interface{}{
		"info": map[string]interface{}{"id": g.SessionID, "title": title},
	})
}

func (g *EventGenerator) SessionUpdated(title string) Payload {
	return payload("session.updated", map[string]interface{}{
		"info": map[string]interface{}{"id": g.SessionID, "title": title},
	})
}

func (g *EventGenerator) Status(statusType string) Payload {
	return payload("session.status", map[string]interface{}{
		"sessionID": g.SessionID,
		"status":    map[string]interface{}{"type": statusType},
	})
}

func (g *EventGenerator) Retry(attempt int, message string) Payload {
	return payload("session.status", map[string]interface{}{
		"sessionID": g.SessionID,
		"status":    map[string]interface{}{"type": "retry", "attempt": attempt, "message": message},
	})
}

func (g *EventGenerator) UserMessage(modelID, providerID string) Payload {
	return payload("message.updated", map[string]interface{}{
		"info": map[string]interface{}{
			"id": g.MessageID, "sessionID": g.SessionID, "role": "user",
			"model": map[string]interface{}{"modelID": modelID, "providerID": providerID},
		},
	})
}

func (g *EventGenerator) AssistantMessage(finish string, input, output int, cost float64) Payload {
	info := map[string]interface{}{
		"id": g.MessageID, "sessionID": g.SessionID, "role": "assistant",
		"modelID": "claude-sonnet-4", "providerID": "anthropic",
		"tokens": map[string]interface{}{
			"input": input, "output": output, "reasoning": 0,
			"cache": map[string]interface{}{"read": 0, "write": 0},
		},
		"cost": cost,
	}
	if finish != "" {
		info["finish"] = finish
	}
	return payload("message.updated", map[string]interface{}{"info": info})
}

func (g *EventGenerator) part(partID, partType string, fields map[string]interface{}) map[string]interface{} {
	p := map[string]interface{}{
		"id": partID, "sessionID": g.SessionID, "messageID": g.MessageID, "type": partType,
	}
	for k, v := range fields {
		p[k] = v
	}
	return p
}

// TextDelta is a streaming text fragment for partID
func (g *EventGenerator) TextDelta(partID, delta string) Payload {
	return payload("message.part.updated", map[string]interface{}{
		"part":  g.part(partID, "text", map[string]interface{}{"text": delta}),
		"delta": delta,
	})
}

// TextFull is a text part update carrying no delta
func (g *EventGenerator) TextFull(partID, text string) Payload {
	return payload("message.part.updated", map[string]interface{}{
		"part": g.part(partID, "text", map[string]interface{}{"text": text}),
	})
}

func (g *EventGenerator) ReasoningDelta(partID, delta string) Payload {
	return payload("message.part.updated", map[string]interface{}{
		"part":  g.part(partID, "reasoning", map[string]interface{}{"text": delta}),
		"delta": delta,
	})
}

// Tool is a tool part in the given status. start and end are unix ms.
func (g *EventGenerator) Tool(partID, tool, status string, start, end int64) Payload {
	state := map[string]interface{}{
		"status": status,
		"input":  map[string]interface{}{"command": "ls"},
	}
	switch status {
	case "completed":
		state["output"] = "file-a\nfile-b"
		state["time"] = map[string]interface{}{"start": start, "end": end}
	case "error":
		state["error"] = "exit status 1"
		state["time"] = map[string]interface{}{"start": start, "end": end}
	case "running":
		state["time"] = map[string]interface{}{"start": start}
	}
	return payload("message.part.updated", map[string]interface{}{
		"part": g.part(partID, "tool", map[string]interface{}{"tool": tool, "state": state}),
	})
}

func (g *EventGenerator) StepStart(partID string) Payload {
	return payload("message.part.updated", map[string]interface{}{
		"part": g.part(partID, "step-start", nil),
	})
}

func (g *EventGenerator) StepFinish(partID, reason string, input, output int, cost float64) Payload {
	return payload("message.part.updated", map[string]interface{}{
		"part": g.part(partID, "step-finish", map[string]interface{}{
			"reason": reason,
			"tokens": map[string]interface{}{
				"input": input, "output": output, "reasoning": 0,
				"cache": map[string]interface{}{"read": 0, "write": 0},
			},
			"cost": cost,
		}),
	})
}

func (g *EventGenerator) Subtask(partID, description, agent string) Payload {
	return payload("message.part.updated", map[string]interface{}{
		"part": g.part(partID, "subtask", map[string]interface{}{"description": description, "agent": agent}),
	})
}

func (g *EventGenerator) AgentPart(partID, name string) Payload {
	return payload("message.part.updated", map[string]interface{}{
		"part": g.part(partID, "agent", map[string]interface{}{"name": name}),
	})
}

func (g *EventGenerator) PermissionAsked(permission string) Payload {
	return payload("permission.asked", map[string]interface{}{
		"sessionID": g.SessionID, "permission": permission,
	})
}

func (g *EventGenerator) PermissionReplied(reply string) Payload {
	return payload("permission.replied", map[string]interface{}{
		"sessionID": g.SessionID, "reply": reply,
	})
}

func (g *EventGenerator) SessionError(message string) Payload {
	props := map[string]interface{}{"sessionID": g.SessionID}
	if message != "" {
		props["error"] = map[string]interface{}{
			"name": "APIError",
			"data": map[string]interface{}{"message": message},
		}
	}
	return payload("session.error", props)
}

// Envelope wraps a payload the way the global event stream does
func Envelope(directory string, p Payload) []byte {
	data, err := sonic.Marshal(map[string]interface{}{"directory": directory, "payload": p})
	if err != nil {
		panic(fmt.Sprintf("fixtures: marshal envelope: %v", err))
	}
	return data
}

// SSE renders payloads as a server-sent event stream body
func SSE(payloads ...Payload) string {
	var b strings.Builder
	for _, p := range payloads {
		b.WriteString("data: ")
		b.Write(Envelope("/work/project", p))
		b.WriteString("\n\n")
	}
	return b.String()
}

// Entries builds n sequential entries for one session, timestamps spaced by gapMs
func Entries(n int, sessionID string, startMs, gapMs int64) []model.TimelineEntry {
	entries := make([]model.TimelineEntry, n)
	for i := range entries {
		entries[i] = model.TimelineEntry{
			ID:            fmt.Sprintf("evt-%d-%d", startMs, i),
			Timestamp:     startMs + int64(i)*gapMs,
			SequenceIndex: int64(i),
			From:          model.ActorAgent,
			To:            model.ActorTool,
			Label:         fmt.Sprintf("Call: tool-%d", i),
			ShortLabel:    "tool",
			Category:      model.CategoryTool,
			SessionID:     sessionID,
			Metadata:      &model.Metadata{ToolName: "bash", Status: "pending"},
		}
	}
	return entries
}
