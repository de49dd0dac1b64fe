package codex

import "encoding/json"

// --- Wire protocol types ---

// ChatMessage is one turn in a conversation sent to or received from the
// provider. Role is one of "system", "user", "assistant", "tool".
type ChatMessage struct {
	Role        string          `json:"role"`
	Content     string          `json:"content"`
	Attachments []Attachment    `json:"attachments,omitempty"`
	ToolCalls   []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID  string          `json:"tool_call_id,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// Attachment carries an inline image (or other binary content) sent to a
// multimodal provider alongside a message's text content.
type Attachment struct {
	MimeType string `json:"mime_type"`
	Base64   string `json:"base64"`
}

// ToolCall is a single function call the model asked to perform, in the
// {id, name, arguments} shape the tool-call parser normalizes every wire
// format down to.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// ToolResultMetadata carries the structured facts about how a tool call ran,
// separate from its textual output.
type ToolResultMetadata struct {
	ExitCode     int     `json:"exit_code"`
	DurationSecs float64 `json:"duration_seconds"`
	LoopDetected bool    `json:"loop_detected,omitempty"`
}

// ToolResult is the outcome of dispatching a ToolCall: the text fed back to
// the model as a "tool" message, plus metadata describing how it ran.
// Streaming marks a result whose output is still arriving: when it is set,
// the agent loop replaces an earlier tool message with the same call ID in
// place rather than appending a second message. None of the dispatchers
// in this module set it.
type ToolResult struct {
	Output    string             `json:"output"`
	Metadata  ToolResultMetadata `json:"metadata"`
	Streaming bool               `json:"-"`
}

// ResponseSchema asks the provider to enforce structured JSON output.
type ResponseSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
}

type ChatRequest struct {
	Model            string           `json:"model"`
	Messages         []ChatMessage    `json:"messages"`
	Tools            []ToolDefinition `json:"tools,omitempty"`
	GenerationParams *GenerationParams `json:"generation_params,omitempty"`
	ResponseSchema   *ResponseSchema  `json:"response_schema,omitempty"`
}

// GenerationParams carries per-request sampling overrides. Nil fields fall
// back to the provider's own defaults. TopK is accepted for providers that
// support it; an OpenAI-compatible provider logs and ignores it.
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	TopK        *int
	MaxTokens   *int
}

type ChatResponse struct {
	Content   string     `json:"content"`
	Thinking  string     `json:"thinking,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage      `json:"usage"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ToolDefinition describes a tool the model may call, in JSON-Schema form.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// --- ChatMessage constructors ---

func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: "user", Content: text}
}

func SystemMessage(text string) ChatMessage {
	return ChatMessage{Role: "system", Content: text}
}

func AssistantMessage(text string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: text}
}

// ToolResultMessage wraps a dispatched ToolResult as the "tool" message fed
// back to the model, tagged with the call it answers.
func ToolResultMessage(callID string, result ToolResult) ChatMessage {
	return ChatMessage{Role: "tool", Content: result.Output, ToolCallID: callID}
}
