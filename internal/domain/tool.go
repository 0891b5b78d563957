package domain

// JSONSchema is a loose JSON-schema fragment used for tool parameters.
type JSONSchema map[string]any

// ToolDefinition describes a tool the provider may invoke.
type ToolDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"`
}
