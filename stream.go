package codex

import "encoding/json"

// StreamEventType identifies the kind of streaming event.
type StreamEventType string

const (
	// EventTextDelta carries an incremental text chunk from the model.
	EventTextDelta StreamEventType = "text-delta"
	// EventThinking carries an incremental reasoning/thinking chunk, for
	// providers that stream a separate thought channel or emit inline
	// <thought>/<think>/<plan> blocks.
	EventThinking StreamEventType = "thinking-delta"
	// EventToolCallDelta carries a partial tool-call argument fragment,
	// indexed by the tool call's position in the response so fragments
	// across multiple SSE chunks can be accumulated before dispatch.
	EventToolCallDelta StreamEventType = "tool-call-delta"
	// EventToolCallStart signals a tool is about to be invoked.
	EventToolCallStart StreamEventType = "tool-call-start"
	// EventToolCallResult carries the result of a completed tool call.
	EventToolCallResult StreamEventType = "tool-call-result"
)

// StreamEvent is a typed event emitted during agent streaming.
// Consumers receive these on the channel passed to Provider.ChatStream.
type StreamEvent struct {
	// Type identifies the event kind.
	Type StreamEventType `json:"type"`
	// Index is the tool call's position within the response, used to
	// accumulate EventToolCallDelta fragments by index before dispatch.
	Index int `json:"index,omitempty"`
	// Name is the tool name (set for tool-call-start/delta, empty otherwise).
	Name string `json:"name,omitempty"`
	// ID is the tool call ID (set once known, usually on the first delta).
	ID string `json:"id,omitempty"`
	// Content carries the text delta (text-delta), thinking delta
	// (thinking-delta), or tool result text (tool-call-result).
	Content string `json:"content,omitempty"`
	// Arguments carries a fragment (tool-call-delta) or the complete
	// argument object (tool-call-start) of a tool call.
	Arguments json.RawMessage `json:"arguments,omitempty"`
}
