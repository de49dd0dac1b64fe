package codex

import (
	"context"
	"log/slog"

	"github.com/samooth/open-codex-sub001/sandbox"
)

// AgentTask is a single user turn submitted to an Assistant: the prompt
// text plus any images attached to it.
type AgentTask struct {
	Input  string
	Images []Attachment
}

// Assistant is the top-level façade: it owns the tool registry, the
// workspace-scoped built-in dispatcher, and the underlying Agent loop,
// assembled from functional options.
type Assistant struct {
	workspace string
	provider  Provider
	model     string
	policy    ApprovalPolicy
	handler   ApprovalHandler
	rollout   RolloutWriter
	tracer    Tracer
	logger    *slog.Logger
	sandbox   sandbox.Sandbox
	system    string
	maxRunes  int
	sessionID string

	registry   *ToolRegistry
	processors *ProcessorChain

	agent *Agent
}

// Option configures an Assistant. Options are applied in the order given
// to New.
type Option func(*Assistant)

// WithProvider sets the chat-completions backend. Required.
func WithProvider(p Provider) Option {
	return func(a *Assistant) { a.provider = p }
}

// WithModel overrides the model name sent with every request. Providers
// that were constructed with a fixed model may ignore this.
func WithModel(model string) Option {
	return func(a *Assistant) { a.model = model }
}

// WithWorkspace sets the repository root every file/shell tool call is
// confined to. Required.
func WithWorkspace(dir string) Option {
	return func(a *Assistant) { a.workspace = dir }
}

// WithApprovalPolicy sets the policy the approval gate enforces.
func WithApprovalPolicy(p ApprovalPolicy) Option {
	return func(a *Assistant) { a.policy = p }
}

// WithApprovalHandler sets the handler consulted when the policy requires
// asking. Without one, any call the policy doesn't auto-approve is denied.
func WithApprovalHandler(h ApprovalHandler) Option {
	return func(a *Assistant) { a.handler = h }
}

// WithSandbox sets the exec backend used for shell calls. Defaults to
// sandbox.None{}.
func WithSandbox(s sandbox.Sandbox) Option {
	return func(a *Assistant) { a.sandbox = s }
}

// WithRollout sets the session/rollout persistence collaborator. Defaults
// to NopRolloutWriter{}.
func WithRollout(w RolloutWriter) Option {
	return func(a *Assistant) { a.rollout = w }
}

// WithTracer sets the tracing collaborator, passed on as AgentConfig.Tracer.
// The agent loop does not start spans from it.
func WithTracer(t Tracer) Option {
	return func(a *Assistant) { a.tracer = t }
}

// WithLogger sets the structured logger. Defaults to a discarding logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assistant) { a.logger = l }
}

// WithSystemPrompt sets the system message seeded at the start of the
// conversation.
func WithSystemPrompt(prompt string) Option {
	return func(a *Assistant) { a.system = prompt }
}

// WithMaxContextRunes overrides the rune budget that triggers context
// eviction. Defaults to defaultMaxContextRunes.
func WithMaxContextRunes(n int) Option {
	return func(a *Assistant) { a.maxRunes = n }
}

// WithSessionID overrides the generated session identifier, e.g. to
// resume a persisted rollout.
func WithSessionID(id string) Option {
	return func(a *Assistant) { a.sessionID = id }
}

// WithProcessor registers a Pre/Post/PostTool processor hook.
func WithProcessor(p any) Option {
	return func(a *Assistant) { a.processors.Add(p) }
}

// New assembles an Assistant from options. WithProvider and WithWorkspace
// are required; every other collaborator has a working default.
func New(opts ...Option) *Assistant {
	a := &Assistant{
		policy:     ApprovalSuggest,
		rollout:    NopRolloutWriter{},
		sandbox:    sandbox.None{},
		sessionID:  NewID(),
		registry:   NewToolRegistry(),
		processors: NewProcessorChain(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AddTool registers a Tool whose functions are dispatched by name whenever
// they're not one of the built-ins (shell, apply_patch, file ops).
func (a *Assistant) AddTool(t Tool) {
	a.registry.Add(t)
}

// Tools returns every tool definition the model may call: the fixed
// built-in set plus every registered Tool's definitions.
func (a *Assistant) Tools() []ToolDefinition {
	defs := append([]ToolDefinition{}, builtinToolDefinitions...)
	defs = append(defs, a.registry.AllDefinitions()...)
	return defs
}

// Agent lazily builds the underlying Agent loop on first use, wiring the
// built-in dispatcher (shell/apply_patch/file ops, scoped to the
// workspace) in front of the tool registry.
func (a *Assistant) Agent() *Agent {
	if a.agent != nil {
		return a.agent
	}

	dispatcher := &BuiltinDispatcher{
		WorkspaceRoot: a.workspace,
		Sandbox:       a.sandbox,
		Registry:      a.registry,
	}

	a.agent = NewAgent(AgentConfig{
		Provider:        a.provider,
		Tools:           a.Tools(),
		Dispatch:        dispatcher.Dispatch,
		Approval:        NewApprovalGate(a.policy, a.handler),
		Rollout:         a.rollout,
		Processors:      a.processors,
		Tracer:          a.tracer,
		Logger:          a.logger,
		SystemPrompt:    a.system,
		MaxContextRunes: a.maxRunes,
		SessionID:       a.sessionID,
		Model:           a.model,
	})
	return a.agent
}

// Run submits one user turn and blocks until the agent produces a final
// assistant message with no further tool calls.
func (a *Assistant) Run(ctx context.Context, task AgentTask) (ChatMessage, error) {
	msg := ChatMessage{Role: "user", Content: task.Input, Attachments: task.Images}
	return a.Agent().Run(ctx, []ChatMessage{msg})
}

// Cancel aborts the in-flight turn, if any.
func (a *Assistant) Cancel() {
	if a.agent != nil {
		a.agent.Cancel()
	}
}

// SessionID returns the identifier used for rollout persistence.
func (a *Assistant) SessionID() string { return a.sessionID }
