package observer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	codex "github.com/samooth/open-codex-sub001"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

type mockProvider struct {
	name     string
	chatResp codex.ChatResponse
	chatErr  error
}

func (m *mockProvider) Name() string { return m.name }
func (m *mockProvider) Chat(_ context.Context, _ codex.ChatRequest) (codex.ChatResponse, error) {
	return m.chatResp, m.chatErr
}
func (m *mockProvider) ChatStream(_ context.Context, _ codex.ChatRequest, ch chan<- codex.StreamEvent) (codex.ChatResponse, error) {
	ch <- codex.StreamEvent{Type: codex.EventTextDelta, Content: "hello"}
	ch <- codex.StreamEvent{Type: codex.EventTextDelta, Content: " world"}
	close(ch)
	return m.chatResp, m.chatErr
}

// mockProviderManyEvents sends count events then closes the channel.
type mockProviderManyEvents struct {
	name     string
	chatResp codex.ChatResponse
	count    int
}

func (m *mockProviderManyEvents) Name() string { return m.name }
func (m *mockProviderManyEvents) Chat(_ context.Context, _ codex.ChatRequest) (codex.ChatResponse, error) {
	return m.chatResp, nil
}
func (m *mockProviderManyEvents) ChatStream(_ context.Context, _ codex.ChatRequest, ch chan<- codex.StreamEvent) (codex.ChatResponse, error) {
	for i := 0; i < m.count; i++ {
		select {
		case ch <- codex.StreamEvent{Type: codex.EventTextDelta, Content: string(rune('a' + i%26))}:
		default:
			// Channel full — stop sending to avoid blocking forever in tests.
		}
	}
	close(ch)
	return m.chatResp, nil
}

type mockTool struct {
	defs   []codex.ToolDefinition
	result codex.ToolResult
	err    error
}

func (m *mockTool) Definitions() []codex.ToolDefinition { return m.defs }
func (m *mockTool) Execute(_ context.Context, _ string, _ json.RawMessage) (codex.ToolResult, error) {
	return m.result, m.err
}

// testInstruments creates a no-op Instruments using the global OTEL providers
// (which are no-ops by default). This is safe for testing delegation behavior
// without any real OTEL backend.
func testInstruments(t *testing.T) *Instruments {
	t.Helper()
	inst, err := newInstruments(nil)
	if err != nil {
		t.Fatalf("newInstruments: %v", err)
	}
	return inst
}

// ---------------------------------------------------------------------------
// ObservedProvider tests
// ---------------------------------------------------------------------------

func TestObservedProviderName(t *testing.T) {
	inner := &mockProvider{name: "test-provider"}
	op := WrapProvider(inner, "test-model", testInstruments(t))

	got := op.Name()
	if got != "test-provider" {
		t.Errorf("Name() = %q, want %q", got, "test-provider")
	}
}

func TestObservedProviderChat(t *testing.T) {
	want := codex.ChatResponse{
		Content: "hello from LLM",
		Usage:   codex.Usage{InputTokens: 10, OutputTokens: 5},
	}
	inner := &mockProvider{name: "p", chatResp: want}
	op := WrapProvider(inner, "m", testInstruments(t))

	got, err := op.Chat(context.Background(), codex.ChatRequest{})
	if err != nil {
		t.Fatalf("Chat returned unexpected error: %v", err)
	}
	if got.Content != want.Content {
		t.Errorf("Content = %q, want %q", got.Content, want.Content)
	}
	if got.Usage != want.Usage {
		t.Errorf("Usage = %+v, want %+v", got.Usage, want.Usage)
	}
}

func TestObservedProviderChatError(t *testing.T) {
	wantErr := errors.New("provider unavailable")
	inner := &mockProvider{name: "p", chatErr: wantErr}
	op := WrapProvider(inner, "m", testInstruments(t))

	_, err := op.Chat(context.Background(), codex.ChatRequest{})
	if !errors.Is(err, wantErr) {
		t.Errorf("Chat error = %v, want %v", err, wantErr)
	}
}

func TestObservedProviderChatWithToolsOnRequest(t *testing.T) {
	want := codex.ChatResponse{
		Content: "tool response",
		ToolCalls: []codex.ToolCall{
			{ID: "call-1", Name: "search", Arguments: json.RawMessage(`{"q":"go"}`)},
		},
		Usage: codex.Usage{InputTokens: 20, OutputTokens: 15},
	}
	inner := &mockProvider{name: "p", chatResp: want}
	op := WrapProvider(inner, "m", testInstruments(t))

	tools := []codex.ToolDefinition{{Name: "search", Description: "search things"}}
	got, err := op.Chat(context.Background(), codex.ChatRequest{Tools: tools})
	if err != nil {
		t.Fatalf("Chat with tools returned unexpected error: %v", err)
	}
	if got.Content != want.Content {
		t.Errorf("Content = %q, want %q", got.Content, want.Content)
	}
	if len(got.ToolCalls) != 1 {
		t.Fatalf("ToolCalls length = %d, want 1", len(got.ToolCalls))
	}
	if got.ToolCalls[0].Name != "search" {
		t.Errorf("ToolCalls[0].Name = %q, want %q", got.ToolCalls[0].Name, "search")
	}
	if got.Usage != want.Usage {
		t.Errorf("Usage = %+v, want %+v", got.Usage, want.Usage)
	}
}

func TestObservedProviderChatStream(t *testing.T) {
	want := codex.ChatResponse{
		Content: "hello world",
		Usage:   codex.Usage{InputTokens: 8, OutputTokens: 2},
	}
	inner := &mockProvider{name: "p", chatResp: want}
	op := WrapProvider(inner, "m", testInstruments(t))

	ch := make(chan codex.StreamEvent, 10)
	got, err := op.ChatStream(context.Background(), codex.ChatRequest{}, ch)
	if err != nil {
		t.Fatalf("ChatStream returned unexpected error: %v", err)
	}

	// The wrapper's goroutine forwards events from the inner wrappedCh to our ch
	// and closes our ch when done. Collect all events.
	var events []codex.StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}

	if len(events) != 2 {
		t.Fatalf("received %d events, want 2", len(events))
	}
	if events[0].Content != "hello" || events[1].Content != " world" {
		t.Errorf("events = %v, want [hello, ' world']", events)
	}
	if got.Content != want.Content {
		t.Errorf("Content = %q, want %q", got.Content, want.Content)
	}
	if got.Usage != want.Usage {
		t.Errorf("Usage = %+v, want %+v", got.Usage, want.Usage)
	}
}

func TestObservedProviderChatStreamUnbuffered(t *testing.T) {
	want := codex.ChatResponse{
		Content: "hello world",
		Usage:   codex.Usage{InputTokens: 8, OutputTokens: 2},
	}
	inner := &mockProvider{name: "p", chatResp: want}
	op := WrapProvider(inner, "m", testInstruments(t))

	// Use an unbuffered channel — previously this would deadlock because the
	// forwarding goroutine blocked on ch <- ev while ChatStream waited on <-done.
	ch := make(chan codex.StreamEvent)

	var events []codex.StreamEvent
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for ev := range ch {
			events = append(events, ev)
		}
	}()

	got, err := op.ChatStream(context.Background(), codex.ChatRequest{}, ch)
	if err != nil {
		t.Fatalf("ChatStream returned unexpected error: %v", err)
	}
	<-readDone

	if len(events) != 2 {
		t.Fatalf("received %d events, want 2", len(events))
	}
	if got.Content != want.Content {
		t.Errorf("Content = %q, want %q", got.Content, want.Content)
	}
}

func TestObservedProviderChatStreamContextCancel(t *testing.T) {
	manyEvents := &mockProviderManyEvents{
		name:     "p",
		chatResp: codex.ChatResponse{Content: "partial"},
		count:    200,
	}
	op := WrapProvider(manyEvents, "m", testInstruments(t))

	ctx, cancel := context.WithCancel(context.Background())

	// Small buffer — goroutine will need to select on full channel above.
	ch := make(chan codex.StreamEvent, 2)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		n := 0
		for range ch {
			n++
			if n == 2 {
				cancel()
			}
		}
	}()

	_, _ = op.ChatStream(ctx, codex.ChatRequest{}, ch)
	<-readDone
}

// ---------------------------------------------------------------------------
// ObservedTool tests
// ---------------------------------------------------------------------------

func TestObservedToolDefinitions(t *testing.T) {
	defs := []codex.ToolDefinition{
		{Name: "search", Description: "web search"},
		{Name: "calc", Description: "calculator"},
	}
	inner := &mockTool{defs: defs}
	ot := WrapTool(inner, testInstruments(t))

	got := ot.Definitions()
	if len(got) != len(defs) {
		t.Fatalf("Definitions length = %d, want %d", len(got), len(defs))
	}
	for i, d := range got {
		if d.Name != defs[i].Name {
			t.Errorf("Definitions[%d].Name = %q, want %q", i, d.Name, defs[i].Name)
		}
		if d.Description != defs[i].Description {
			t.Errorf("Definitions[%d].Description = %q, want %q", i, d.Description, defs[i].Description)
		}
	}
}

func TestObservedToolExecute(t *testing.T) {
	want := codex.ToolResult{Output: "result data"}
	inner := &mockTool{result: want}
	ot := WrapTool(inner, testInstruments(t))

	got, err := ot.Execute(context.Background(), "search", json.RawMessage(`{"q":"test"}`))
	if err != nil {
		t.Fatalf("Execute returned unexpected error: %v", err)
	}
	if got.Output != want.Output {
		t.Errorf("Output = %q, want %q", got.Output, want.Output)
	}
	if got.Metadata.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", got.Metadata.ExitCode)
	}
}

func TestObservedToolExecuteError(t *testing.T) {
	wantErr := errors.New("tool broken")
	inner := &mockTool{err: wantErr}
	ot := WrapTool(inner, testInstruments(t))

	_, err := ot.Execute(context.Background(), "search", json.RawMessage(`{}`))
	if !errors.Is(err, wantErr) {
		t.Errorf("Execute error = %v, want %v", err, wantErr)
	}
}

func TestObservedToolExecuteNonZeroExit(t *testing.T) {
	want := codex.ToolResult{Output: "failed", Metadata: codex.ToolResultMetadata{ExitCode: 1}}
	inner := &mockTool{result: want}
	ot := WrapTool(inner, testInstruments(t))

	got, err := ot.Execute(context.Background(), "shell", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute returned unexpected error: %v", err)
	}
	if got.Metadata.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", got.Metadata.ExitCode)
	}
}

// ---------------------------------------------------------------------------
// NewTracer tests
// ---------------------------------------------------------------------------

func TestNewTracerReturnsTracer(t *testing.T) {
	tracer := NewTracer()
	if tracer == nil {
		t.Fatal("NewTracer() returned nil")
	}

	ctx, span := tracer.Start(context.Background(), "test.span",
		codex.StringAttr("key", "value"),
		codex.IntAttr("count", 42))
	if ctx == nil {
		t.Fatal("Start() returned nil context")
	}
	if span == nil {
		t.Fatal("Start() returned nil span")
	}

	span.SetAttr(codex.BoolAttr("ok", true))
	span.Event("test.event", codex.Float64Attr("score", 0.95))
	span.End()
}

func TestNewTracerErrorSpan(t *testing.T) {
	tracer := NewTracer()
	_, span := tracer.Start(context.Background(), "test.error")

	span.Error(errors.New("test error"))
	span.End()
}
