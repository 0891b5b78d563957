package domain

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a session's conversation history.
type Message struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	ToolCallID string    `json:"toolCallId,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}

// ChunkType classifies streamed provider output.
type ChunkType string

const (
	ChunkDelta   ChunkType = "delta"
	ChunkToolUse ChunkType = "tool_use"
	ChunkDone    ChunkType = "done"
	// ChunkError terminates a stream that died mid-flight. It carries the
	// provider's failure to the consumer in place of a thrown exception.
	ChunkError ChunkType = "error"
)

// ToolUse is a structured tool invocation emitted by the provider.
type ToolUse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// StreamChunk is one incremental unit of a streamed provider response.
// Chunks are transient: consumed once, in provider order, never persisted.
type StreamChunk struct {
	Type       ChunkType `json:"type"`
	Content    string    `json:"content,omitempty"`
	ToolUse    *ToolUse  `json:"toolUse,omitempty"`
	StopReason string    `json:"stopReason,omitempty"`
	Err        error     `json:"-"`
}
