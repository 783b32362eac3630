package chat

import (
	"encoding/json"
	"errors"
)

// Role tags one message. The wire values come from the conversation
// protocol; only the four below are produced by loom itself, but any
// role round-trips.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleTool   Role = "tool"
	RoleSystem Role = "system"
)

// Message is one role-tagged ordered sequence of parts, as stored in
// history or carried by one stream chunk. Part order is significant and
// is never reordered.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// UserMessage builds a single-text user message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Parts: []Part{TextPart(text)}}
}

// SystemMessage builds a single-text system message (error surface).
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Parts: []Part{TextPart(text)}}
}

// ToolMessage wraps function responses in a tool-role message.
func ToolMessage(parts []Part) Message {
	return Message{Role: RoleTool, Parts: parts}
}

// ParseMessage decodes one wire message. A missing role is a parse
// failure: the merge rules cannot place a role-less chunk.
func ParseMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, err
	}
	if msg.Role == "" {
		return Message{}, errors.New("message has no role")
	}
	return msg, nil
}
