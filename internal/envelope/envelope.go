// Package envelope defines the canonical message shape shared by the bus,
// the room broker's write-ahead log, and the session manager.
package envelope

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Direction distinguishes inbound (transport -> gateway) from outbound
// (gateway -> transport) traffic.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// SenderRole identifies who produced the content of an envelope.
type SenderRole string

const (
	SenderUser   SenderRole = "user"
	SenderBot    SenderRole = "bot"
	SenderSystem SenderRole = "system"
)

// Canonical priority defaults. Lower integer means higher priority.
const (
	PrioritySystem = 0
	PriorityBot    = 3
	PriorityUser   = 5
)

// Media is a single attachment referenced by an envelope.
type Media struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Caption     string `json:"caption,omitempty"`
}

// MessageEnvelope is the single wire/queue/bus shape used throughout the
// gateway: transports produce it, the broker queues it, the agent loop
// consumes it, and the bus sends the outbound result back out.
type MessageEnvelope struct {
	Channel    string            `json:"channel"`
	ChatID     string            `json:"chat_id"`
	Content    string            `json:"content"`
	Direction  Direction         `json:"direction"`
	SenderID   string            `json:"sender_id,omitempty"`
	SenderRole SenderRole        `json:"sender_role"`
	BotName    string            `json:"bot_name,omitempty"`
	ReplyTo    string            `json:"reply_to,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Media      []Media           `json:"media,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	RoomID     string            `json:"room_id,omitempty"`
	TraceID    string            `json:"trace_id,omitempty"`
	Priority   int               `json:"priority"`
}

// New builds an envelope applying default priority and trace id rules.
// It never mutates its inputs; callers that need to amend an envelope
// after enqueue must build a new one and carry the old TraceID forward.
func New(channel, chatID, content string, role SenderRole) MessageEnvelope {
	env := MessageEnvelope{
		Channel:    channel,
		ChatID:     chatID,
		Content:    content,
		Direction:  DirectionInbound,
		SenderRole: role,
		Timestamp:  time.Now(),
	}
	env.Priority = defaultPriority(role)
	env.TraceID = uuid.NewString()
	return env
}

func defaultPriority(role SenderRole) int {
	switch role {
	case SenderSystem:
		return PrioritySystem
	case SenderBot:
		return PriorityBot
	default:
		return PriorityUser
	}
}

// WithPriority returns a copy of the envelope with priority overridden,
// falling back to the role-derived default when p is nil.
func (e MessageEnvelope) WithPriority(p *int) MessageEnvelope {
	out := e
	if p != nil {
		out.Priority = *p
	} else if out.Priority == 0 && out.SenderRole != SenderSystem {
		out.Priority = defaultPriority(out.SenderRole)
	}
	return out
}

// EnsureTraceID returns the envelope's trace id, generating one on first
// touch if absent.
func (e *MessageEnvelope) EnsureTraceID() string {
	if e.TraceID == "" {
		e.TraceID = uuid.NewString()
	}
	return e.TraceID
}

// NormalizeRoomID strips a leading "room:" or "#" prefix and trims
// surrounding whitespace, per the session_key derivation rule.
func NormalizeRoomID(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "room:")
	s = strings.TrimPrefix(s, "#")
	return strings.TrimSpace(s)
}

// SessionKey derives the canonical session key for an envelope:
// "room:<normalized_room>" when RoomID is set, else
// "room:<channel>_<chat_id>".
func (e MessageEnvelope) SessionKey() string {
	if e.RoomID != "" {
		return "room:" + NormalizeRoomID(e.RoomID)
	}
	return "room:" + e.Channel + "_" + e.ChatID
}

// Amend creates a new envelope carrying the old TraceID forward, modeling
// the "envelopes are immutable after enqueue; amendments create new
// envelopes referencing the old trace_id" invariant.
func (e MessageEnvelope) Amend(content string) MessageEnvelope {
	out := e
	out.Content = content
	out.Timestamp = time.Now()
	return out
}
