package codex

import "context"

// Provider abstracts the LLM backend: any OpenAI-compatible chat-completions
// endpoint.
type Provider interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// ChatStream streams events into ch (text deltas, tool-call deltas,
	// reasoning/thinking blocks), then returns the final response with
	// usage stats. ch is always closed before ChatStream returns.
	ChatStream(ctx context.Context, req ChatRequest, ch chan<- StreamEvent) (ChatResponse, error)
	// Name returns the provider name (e.g. "openai", "openrouter").
	Name() string
}
