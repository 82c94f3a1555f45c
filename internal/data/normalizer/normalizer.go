package normalizer

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-agent-timeline/internal/core/model"
	"github.com/penwyp/go-agent-timeline/internal/util"
)

const (
	labelMaxRunes      = 60
	toolOutputMaxRunes = 200
)

// Normalizer maps raw upstream events onto timeline entries.
// Unknown kinds and sub-states yield nil; they are expected as the
// upstream vocabulary grows.
type Normalizer struct {
	seq    *Sequencer
	clock  func() time.Time
	logger util.LoggerInterface
}

func New(seq *Sequencer) *Normalizer {
	if seq == nil {
		seq = NewSequencer()
	}
	return &Normalizer{
		seq:    seq,
		clock:  time.Now,
		logger: util.Component("normalizer"),
	}
}

// Sequencer returns the counter owned by this normalizer
func (n *Normalizer) Sequencer() *Sequencer {
	return n.seq
}

// Normalize converts one raw event into at most one entry
func (n *Normalizer) Normalize(ev RawEvent) *model.TimelineEntry {
	entry, err := n.mapEvent(ev)
	if err != nil {
		n.logger.Debug("skipping undecodable event", util.F("type", ev.Type), util.F("error", err))
		return nil
	}
	if entry == nil {
		return nil
	}

	entry.SequenceIndex, entry.ID = n.seq.Next()
	entry.Timestamp = n.clock().UnixMilli()
	entry.SourceEvent = ev.Raw
	return entry
}

func (n *Normalizer) mapEvent(ev RawEvent) (*model.TimelineEntry, error) {
	switch ev.Type {
	case KindSessionCreated:
		var p sessionInfoProps
		if err := decodeProps(ev, &p); err != nil {
			return nil, err
		}
		title := p.Info.Title
		if title == "" {
			title = p.Info.ID
		}
		return &model.TimelineEntry{
			From: model.ActorSystem, To: model.ActorSystem,
			Label:      "Session Created: " + title,
			ShortLabel: "Session+",
			Category:   model.CategoryControl,
			SessionID:  p.Info.ID,
		}, nil

	case KindSessionStatus:
		var p sessionStatusProps
		if err := decodeProps(ev, &p); err != nil {
			return nil, err
		}
		return mapSessionStatus(p), nil

	case KindMessageUpdated:
		var p messageProps
		if err := decodeProps(ev, &p); err != nil {
			return nil, err
		}
		return mapMessage(p.Info), nil

	case KindPartUpdated:
		var p partProps
		if err := decodeProps(ev, &p); err != nil {
			return nil, err
		}
		return n.mapPart(p), nil

	case KindPermissionAsked:
		var p permissionAskedProps
		if err := decodeProps(ev, &p); err != nil {
			return nil, err
		}
		return &model.TimelineEntry{
			From: model.ActorAgent, To: model.ActorUser,
			Label:      "Permission: " + string(p.Permission),
			ShortLabel: "Perm?",
			Category:   model.CategoryPermission,
			SessionID:  p.SessionID,
			Metadata:   &model.Metadata{Status: "asked"},
		}, nil

	case KindPermissionReplied:
		var p permissionRepliedProps
		if err := decodeProps(ev, &p); err != nil {
			return nil, err
		}
		label, short := "Granted", "Allow"
		if p.Reply == "reject" {
			label, short = "Denied", "Deny"
		}
		return &model.TimelineEntry{
			From: model.ActorUser, To: model.ActorAgent,
			Label:      fmt.Sprintf("Permission %s (%s)", label, p.Reply),
			ShortLabel: short,
			Category:   model.CategoryPermission,
			SessionID:  p.SessionID,
			Metadata:   &model.Metadata{Status: p.Reply},
		}, nil

	case KindSessionError:
		var p sessionErrorProps
		if err := decodeProps(ev, &p); err != nil {
			return nil, err
		}
		msg := p.message()
		label := msg
		if label == "" {
			label = "Unknown"
		}
		sessionID := p.SessionID
		if sessionID == "" {
			sessionID = model.UnknownSessionID
		}
		entry := &model.TimelineEntry{
			From: model.ActorLLM, To: model.ActorSystem,
			Label:      "Error: " + label,
			ShortLabel: "Error",
			Category:   model.CategoryError,
			SessionID:  sessionID,
		}
		if msg != "" {
			entry.Metadata = &model.Metadata{Error: msg}
		}
		return entry, nil

	case KindSessionUpdated:
		var p sessionInfoProps
		if err := decodeProps(ev, &p); err != nil {
			return nil, err
		}
		return &model.TimelineEntry{
			From: model.ActorSystem, To: model.ActorSystem,
			Label:      "Session Updated: " + p.Info.Title,
			ShortLabel: "Updated",
			Category:   model.CategoryControl,
			SessionID:  p.Info.ID,
		}, nil
	}
	return nil, nil
}

func mapSessionStatus(p sessionStatusProps) *model.TimelineEntry {
	switch p.Status.Type {
	case "busy":
		return &model.TimelineEntry{
			From: model.ActorSystem, To: model.ActorAgent,
			Label:      "Agent Activated",
			ShortLabel: "Busy",
			Category:   model.CategoryControl,
			SessionID:  p.SessionID,
			Metadata:   &model.Metadata{Status: "busy"},
		}
	case "idle":
		return &model.TimelineEntry{
			From: model.ActorAgent, To: model.ActorSystem,
			Label:      "Agent Idle",
			ShortLabel: "Idle",
			Category:   model.CategoryControl,
			SessionID:  p.SessionID,
			Metadata:   &model.Metadata{Status: "idle"},
		}
	case "retry":
		return &model.TimelineEntry{
			From: model.ActorLLM, To: model.ActorAgent,
			Label:      fmt.Sprintf("Retry #%d: %s", p.Status.Attempt, p.Status.Message),
			ShortLabel: fmt.Sprintf("Retry #%d", p.Status.Attempt),
			Category:   model.CategoryError,
			SessionID:  p.SessionID,
			Metadata:   &model.Metadata{Error: p.Status.Message, Status: "retry"},
		}
	}
	return nil
}

func mapMessage(msg messageInfo) *model.TimelineEntry {
	if msg.Role == "user" {
		meta := &model.Metadata{}
		if msg.Model != nil {
			meta.ModelID = msg.Model.ModelID
			meta.ProviderID = msg.Model.ProviderID
		}
		return &model.TimelineEntry{
			From: model.ActorUser, To: model.ActorSystem,
			Label:      "User Message",
			ShortLabel: "Msg",
			Category:   model.CategoryMessage,
			SessionID:  msg.SessionID,
			MessageID:  msg.ID,
			Metadata:   meta,
		}
	}

	finish := msg.Finish
	if finish == "" {
		finish = "pending"
	}
	return &model.TimelineEntry{
		From: model.ActorLLM, To: model.ActorAgent,
		Label:      fmt.Sprintf("Assistant Updated (%s)", finish),
		ShortLabel: "Asst",
		Category:   model.CategoryMessage,
		SessionID:  msg.SessionID,
		MessageID:  msg.ID,
		Metadata: &model.Metadata{
			Tokens:     msg.Tokens,
			Cost:       msg.Cost,
			ModelID:    msg.ModelID,
			ProviderID: msg.ProviderID,
		},
	}
}

func (n *Normalizer) mapPart(p partProps) *model.TimelineEntry {
	pt := p.Part
	entry := &model.TimelineEntry{
		SessionID: pt.SessionID,
		MessageID: pt.MessageID,
		PartID:    pt.ID,
	}

	switch pt.Type {
	case "text", "reasoning":
		text := p.Delta
		if text == "" {
			// Older servers send the accumulated text without a delta
			text = pt.Text
			if text != "" {
				n.logger.Debug("part update without delta", util.F("part", pt.ID), util.F("type", pt.Type))
			}
		}
		entry.From, entry.To = model.ActorLLM, model.ActorAgent
		entry.Category = model.CategoryToken
		if pt.Type == "text" {
			entry.Label = "Text: " + util.TruncateRunes(text, labelMaxRunes)
			entry.ShortLabel = "Text"
		} else {
			entry.Label = "Reasoning: " + util.TruncateRunes(text, labelMaxRunes)
			entry.ShortLabel = "Think"
		}
		if p.Delta != "" {
			entry.Metadata = &model.Metadata{Delta: p.Delta}
		}

	case "tool":
		return mapTool(entry, pt)

	case "step-start":
		entry.From, entry.To = model.ActorAgent, model.ActorLLM
		entry.Label = "LLM Step Start"
		entry.ShortLabel = "Step→"
		entry.Category = model.CategoryControl

	case "step-finish":
		entry.From, entry.To = model.ActorLLM, model.ActorAgent
		entry.Label = fmt.Sprintf("Step Done (%s)", pt.Reason)
		entry.ShortLabel = model.ShortLabelStepFinish
		entry.Category = model.CategoryControl
		entry.Metadata = &model.Metadata{Tokens: pt.Tokens, Cost: pt.Cost}

	case "subtask":
		subject := pt.Description
		if subject == "" {
			subject = pt.Agent
		}
		entry.From, entry.To = model.ActorAgent, model.ActorAgent
		entry.Label = "Subtask: " + util.TruncateRunes(subject, labelMaxRunes)
		entry.ShortLabel = "Subtask"
		entry.Category = model.CategoryControl

	case "agent":
		entry.From, entry.To = model.ActorAgent, model.ActorAgent
		entry.Label = "Agent: " + pt.Name
		entry.ShortLabel = pt.Name
		entry.Category = model.CategoryControl

	default:
		return nil
	}
	return entry
}

func mapTool(entry *model.TimelineEntry, pt part) *model.TimelineEntry {
	state := pt.State
	entry.ShortLabel = pt.Tool
	entry.Category = model.CategoryTool
	meta := &model.Metadata{ToolName: pt.Tool, ToolInput: state.Input, Status: state.Status}

	switch state.Status {
	case "pending":
		entry.From, entry.To = model.ActorAgent, model.ActorTool
		entry.Label = "Call: " + pt.Tool
	case "running":
		entry.From, entry.To = model.ActorTool, model.ActorTool
		entry.Label = "Running: " + pt.Tool
	case "completed":
		entry.From, entry.To = model.ActorTool, model.ActorAgent
		entry.Label = "Result: " + pt.Tool
		meta.ToolOutput = util.TruncateRunes(state.Output, toolOutputMaxRunes)
		meta.Duration = state.duration()
	case "error":
		entry.From, entry.To = model.ActorTool, model.ActorAgent
		entry.Label = "Error: " + pt.Tool
		entry.Category = model.CategoryError
		meta.Error = state.Error
		meta.Duration = state.duration()
	default:
		return nil
	}
	entry.Metadata = meta
	return entry
}

func decodeProps(ev RawEvent, v interface{}) error {
	if len(ev.Properties) == 0 {
		return fmt.Errorf("%s: missing properties", ev.Type)
	}
	if err := sonic.Unmarshal(ev.Properties, v); err != nil {
		return fmt.Errorf("%s: %w", ev.Type, err)
	}
	return nil
}
