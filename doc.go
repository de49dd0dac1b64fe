// Package codex implements the core of a terminal-based agentic coding
// assistant: a conversation loop that mediates between a user, an
// OpenAI-compatible chat-completions endpoint, and a local repository.
//
// The root package defines the data model (ChatMessage, ToolCall,
// ToolResult, Session), the pluggable contracts (Provider, Tool, Sandbox,
// RolloutWriter), the tool-call parser (free-text recovery included), the
// patch-aware function-call dispatcher, the agent loop state machine, and
// the approval gate. Concrete implementations live in subpackages:
//
//   - provider/openaicompat — wire client + SSE stream decoder for any
//     OpenAI-compatible chat-completions API
//   - patch — the textual patch format parser and applier
//   - sandbox — process spawning behind a pluggable sandbox abstraction
//   - tools/* — stat_file (fileops), search_codebase, persistent_memory
//   - store/sqlite — rollout/session persistence
//   - observer — optional OpenTelemetry tracing and metrics
//
// # Quick start
//
//	asst := codex.New(
//		codex.WithProvider(openaicompat.NewProvider(apiKey, model, baseURL)),
//		codex.WithWorkspace(workspaceDir),
//		codex.WithApprovalPolicy(codex.ApprovalSuggest),
//	)
//	asst.AddTool(search.New(workspaceDir, sandbox.None{}))
//	result, err := asst.Run(ctx, codex.AgentTask{Input: "fix the failing test"})
package codex
