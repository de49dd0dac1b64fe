package codex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/samooth/open-codex-sub001/patch"
)

// LoopState is one of the agent loop's states (§4.6).
type LoopState int

const (
	StateIdle LoopState = iota
	StateRequesting
	StateStreaming
	StateDispatching
	StateCancelled
	StateTerminated
)

func (s LoopState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateDispatching:
		return "dispatching"
	case StateCancelled:
		return "cancelled"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// loopWindow bounds how many recent tool-call signatures are retained for
// loop detection.
const loopWindow = 8

// maxEvictionPasses bounds how many oldest user+assistant pairs are
// dropped in one context-compaction pass before giving up.
const maxEvictionPasses = 1000

// defaultMaxContextRunes is the rune budget above which the oldest
// non-system message pairs are evicted before the next request.
const defaultMaxContextRunes = 400_000

// AgentConfig wires an Agent's collaborators. Provider and Dispatch are
// required; everything else has a working zero value.
type AgentConfig struct {
	Provider       Provider
	Tools          []ToolDefinition
	Dispatch       DispatchFunc
	Approval       *ApprovalGate
	Rollout        RolloutWriter
	Processors     *ProcessorChain
	Tracer         Tracer
	Logger         *slog.Logger
	SystemPrompt   string
	MaxContextRunes int
	SessionID      string
	Model          string
}

// Agent owns the conversation vector and drives the state machine
// described in §4.6. It exclusively owns its current conversation and a
// cancellation token for the in-flight turn.
type Agent struct {
	cfg AgentConfig

	mu         sync.Mutex
	state      LoopState
	messages   []ChatMessage
	queue      []queuedTurn
	cancelFunc context.CancelFunc
	history    []callSignature
	nextSynth  int
	draining   bool
}

type queuedTurn struct {
	inputs []ChatMessage
	done   chan turnOutcome
}

type turnOutcome struct {
	msg ChatMessage
	err error
}

type callSignature struct {
	sig      string
	nonZero  bool
}

// NewAgent creates an Agent in the Idle state, seeded with a system
// prompt message if cfg.SystemPrompt is non-empty.
func NewAgent(cfg AgentConfig) *Agent {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(nopWriter{}, nil))
	}
	if cfg.Processors == nil {
		cfg.Processors = NewProcessorChain()
	}
	if cfg.MaxContextRunes <= 0 {
		cfg.MaxContextRunes = defaultMaxContextRunes
	}
	a := &Agent{cfg: cfg}
	if cfg.SystemPrompt != "" {
		a.messages = append(a.messages, SystemMessage(cfg.SystemPrompt))
	}
	return a
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// State returns the agent's current state.
func (a *Agent) State() LoopState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Messages returns a snapshot of the current conversation.
func (a *Agent) Messages() []ChatMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ChatMessage, len(a.messages))
	copy(out, a.messages)
	return out
}

// Cancel aborts the in-flight turn, if any: the outstanding request and
// any in-flight tool execution are abandoned, the partial assistant
// message is discarded, and the agent returns to Idle.
func (a *Agent) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
}

// Terminate moves the agent to Terminated; no further Run calls succeed.
func (a *Agent) Terminate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StateTerminated
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
}

// Run appends inputs to the conversation and drives turns until the model
// produces a final assistant message with no tool calls. While the agent
// is not Idle, Run enqueues its input FIFO and blocks until it is
// processed in turn; the caller that finds the agent Idle becomes the
// one that drains the queue.
func (a *Agent) Run(ctx context.Context, inputs []ChatMessage) (ChatMessage, error) {
	a.mu.Lock()
	if a.state == StateTerminated {
		a.mu.Unlock()
		return ChatMessage{}, fmt.Errorf("codex: agent terminated")
	}
	qt := queuedTurn{inputs: inputs, done: make(chan turnOutcome, 1)}
	a.queue = append(a.queue, qt)
	isDrainer := !a.draining
	a.draining = true
	a.mu.Unlock()

	if isDrainer {
		a.drain(ctx)
	}

	out := <-qt.done
	return out.msg, out.err
}

// drain processes queued turns one at a time until the queue is empty,
// then returns to Idle.
func (a *Agent) drain(ctx context.Context) {
	for {
		a.mu.Lock()
		if len(a.queue) == 0 {
			a.state = StateIdle
			a.draining = false
			a.mu.Unlock()
			return
		}
		qt := a.queue[0]
		a.queue = a.queue[1:]
		a.mu.Unlock()

		msg, err := a.runTurn(ctx, qt.inputs)
		qt.done <- turnOutcome{msg: msg, err: err}
	}
}

func (a *Agent) setState(s LoopState) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

func (a *Agent) appendMessage(ctx context.Context, msg ChatMessage) {
	a.mu.Lock()
	a.messages = append(a.messages, msg)
	a.mu.Unlock()
	if a.cfg.Rollout != nil {
		_ = a.cfg.Rollout.AppendMessage(ctx, a.cfg.SessionID, msg)
	}
}

// replaceOrAppendToolMessage implements the streaming-tool-result
// exception to append-only: if a prior tool message with the same
// tool_call_id exists, it is replaced in place; otherwise the new message
// is appended.
func (a *Agent) replaceOrAppendToolMessage(ctx context.Context, msg ChatMessage) {
	a.mu.Lock()
	for i := len(a.messages) - 1; i >= 0; i-- {
		if a.messages[i].Role == "tool" && a.messages[i].ToolCallID == msg.ToolCallID {
			a.messages[i] = msg
			a.mu.Unlock()
			return
		}
	}
	a.messages = append(a.messages, msg)
	a.mu.Unlock()
	if a.cfg.Rollout != nil {
		_ = a.cfg.Rollout.AppendMessage(ctx, a.cfg.SessionID, msg)
	}
}

func (a *Agent) nextSyntheticID() string {
	a.mu.Lock()
	a.nextSynth++
	n := a.nextSynth
	a.mu.Unlock()
	return fmt.Sprintf("synth-%s-%d", NewID(), n)
}

// runTurn runs the Requesting→Streaming→Dispatching cycle until the
// assistant produces a final message with no tool calls, a loop is
// detected, or ctx is cancelled.
func (a *Agent) runTurn(ctx context.Context, inputs []ChatMessage) (ChatMessage, error) {
	turnCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancelFunc = cancel
	a.mu.Unlock()
	defer cancel()

	halted := func(err error) (ChatMessage, error) {
		var h *ErrHalt
		if errors.As(err, &h) {
			return AssistantMessage(h.Response), nil
		}
		return ChatMessage{}, err
	}

	for _, in := range inputs {
		a.appendMessage(turnCtx, in)
	}

	for {
		if turnCtx.Err() != nil {
			a.setState(StateCancelled)
			return ChatMessage{}, turnCtx.Err()
		}

		a.evictIfNeeded()

		a.setState(StateRequesting)
		req := ChatRequest{Model: a.cfg.Model, Messages: a.Messages(), Tools: a.cfg.Tools}
		if err := a.cfg.Processors.RunPreLLM(turnCtx, &req); err != nil {
			return halted(err)
		}

		a.setState(StateStreaming)
		ch := make(chan StreamEvent, 32)
		drained := make(chan struct{})
		go func() {
			for range ch {
				// No external subscriber is wired in this exercise; a UI
				// front-end would forward these instead of draining them.
			}
			close(drained)
		}()
		resp, err := a.cfg.Provider.ChatStream(turnCtx, req, ch)
		<-drained
		if err != nil {
			if turnCtx.Err() != nil {
				a.setState(StateCancelled)
				return ChatMessage{}, turnCtx.Err()
			}
			return ChatMessage{}, err
		}
		if err := a.cfg.Processors.RunPostLLM(turnCtx, &resp); err != nil {
			return halted(err)
		}

		a.setState(StateDispatching)
		assistant := ChatMessage{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls}
		if len(assistant.ToolCalls) == 0 {
			assistant.ToolCalls = ExtractFreeText(resp.Content, a.nextSyntheticID)
		}
		a.appendMessage(turnCtx, assistant)

		if len(assistant.ToolCalls) == 0 {
			a.setState(StateIdle)
			return assistant, nil
		}

		synthetic, err := a.dispatchToolCalls(turnCtx, assistant.ToolCalls)
		if err != nil {
			return ChatMessage{}, err
		}
		if synthetic != nil {
			a.appendMessage(turnCtx, *synthetic)
			a.setState(StateIdle)
			return *synthetic, nil
		}
		// Otherwise re-enter Requesting with the new history.
	}
}

// dispatchToolCalls executes each tool call in order (a deliberate
// divergence from the teacher's parallel dispatch — see the REDESIGN FLAG
// entry in DESIGN.md), approving each through the gate, running it, and
// appending a tool-result message. It returns a non-nil synthetic
// assistant message if loop detection fires, at which point dispatch of
// any remaining calls in this batch stops.
func (a *Agent) dispatchToolCalls(ctx context.Context, calls []ToolCall) (*ChatMessage, error) {
	for _, tc := range calls {
		flattened, err := FlattenToolCall(tc)
		if err != nil {
			flattened = []ToolCall{tc}
		}
		for _, ftc := range flattened {
			normalized, _, err := NormalizeArguments(ftc.Arguments)
			if err == nil {
				ftc.Arguments = normalized
			}

			argv := shellArgv(ftc)
			summary := ftc.Name
			if len(argv) > 0 {
				summary = strings.Join(argv, " ")
			}
			approval, err := a.approvalGate().Decide(ctx, ApprovalRequest{
				ToolName:  ftc.Name,
				Arguments: ftc.Arguments,
				Summary:   summary,
			}, argv)
			if err != nil {
				return nil, err
			}

			var result ToolResult
			if approval.Decision == DecisionNo || approval.Decision == DecisionNoWithMessage {
				result = ToolResult{Output: DenyMessage(approval)}
			} else {
				result = a.cfg.Dispatch(ctx, ftc)
			}

			sig := ftc.Name + "|" + patch.Canonicalize(string(ftc.Arguments))
			if a.recordSignatureAndCheckLoop(sig, result.Metadata.ExitCode != 0) {
				result.Metadata.LoopDetected = true
				result.Output = fmt.Sprintf("Loop detected: %s has failed 3 times in a row. Stopping.", sig)
			}

			a.appendToolResult(ctx, ftc.ID, result)

			if result.Metadata.LoopDetected {
				return &ChatMessage{
					Role:    "assistant",
					Content: fmt.Sprintf("I detected a repeated failure running %q and stopped to avoid looping.", ftc.Name),
				}, nil
			}
		}
	}
	return nil, nil
}

func (a *Agent) appendToolResult(ctx context.Context, callID string, result ToolResult) {
	if result.Streaming {
		a.replaceOrAppendToolMessage(ctx, ToolResultMessage(callID, result))
		return
	}
	a.appendMessage(ctx, ToolResultMessage(callID, result))
}

func (a *Agent) approvalGate() *ApprovalGate {
	if a.cfg.Approval != nil {
		return a.cfg.Approval
	}
	return NewApprovalGate(ApprovalSuggest, nil)
}

// recordSignatureAndCheckLoop appends sig to the sliding window and
// reports whether this is the third consecutive occurrence of sig with a
// non-zero exit code.
func (a *Agent) recordSignatureAndCheckLoop(sig string, nonZero bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	detected := false
	if nonZero && len(a.history) >= 2 {
		prev1 := a.history[len(a.history)-1]
		prev2 := a.history[len(a.history)-2]
		if prev1.sig == sig && prev1.nonZero && prev2.sig == sig && prev2.nonZero {
			detected = true
		}
	}

	a.history = append(a.history, callSignature{sig: sig, nonZero: nonZero})
	if len(a.history) > loopWindow {
		a.history = a.history[len(a.history)-loopWindow:]
	}
	return detected
}

// shellArgv extracts the tokenized argv from a shell/apply_patch call's
// arguments, for approval-safelist matching. Non-shell calls return nil.
func shellArgv(tc ToolCall) []string {
	if tc.Name != "shell" {
		return nil
	}
	var args struct {
		Cmd []string `json:"cmd"`
	}
	if err := decodeArgs(tc.Arguments, &args); err != nil {
		return nil
	}
	return args.Cmd
}

// evictIfNeeded drops the oldest user+assistant message pairs (retaining
// a system prompt at position 0) until the conversation's estimated rune
// count fits within MaxContextRunes. Each pass drops the oldest message
// together with the non-user messages that follow it, so tool results go
// with the assistant message that called them; the newest user message
// and what follows it are never dropped.
func (a *Agent) evictIfNeeded() {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := 0
	for _, m := range a.messages {
		total += utf8.RuneCountInString(m.Content)
	}
	if total <= a.cfg.MaxContextRunes {
		return
	}

	systemOffset := 0
	if len(a.messages) > 0 && a.messages[0].Role == "system" {
		systemOffset = 1
	}

	for pass := 0; pass < maxEvictionPasses && total > a.cfg.MaxContextRunes; pass++ {
		end := systemOffset + 1
		for end < len(a.messages) && a.messages[end].Role != "user" {
			end++
		}
		if end >= len(a.messages) {
			break
		}
		dropped := append([]ChatMessage(nil), a.messages[systemOffset:end]...)
		a.messages = append(a.messages[:systemOffset], a.messages[end:]...)
		for _, m := range dropped {
			total -= utf8.RuneCountInString(m.Content)
		}
	}
}
