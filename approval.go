package codex

import (
	"context"
	"strings"
)

// ApprovalPolicy controls how much a tool call is auto-approved before
// asking the user.
type ApprovalPolicy int

const (
	// ApprovalSuggest always asks before running anything.
	ApprovalSuggest ApprovalPolicy = iota
	// ApprovalAutoEdit auto-approves patch/file-write calls; shell still asks.
	ApprovalAutoEdit
	// ApprovalFullAuto auto-approves everything the safelist permits.
	ApprovalFullAuto
)

// Decision is the outcome of asking the user whether to run a pending
// command.
type Decision int

const (
	DecisionYes Decision = iota
	DecisionYesAlways
	DecisionNo
	DecisionNoWithMessage
)

// ApprovalRequest describes a pending tool call awaiting a decision.
type ApprovalRequest struct {
	ToolName  string
	Arguments []byte
	Summary   string // a human-readable description, e.g. the shell command line
}

// ApprovalResponse is the user's answer to an ApprovalRequest.
type ApprovalResponse struct {
	Decision          Decision
	CustomDenyMessage string
}

// DefaultDenyMessage is used when a NoWithMessage response carries no
// custom text.
const DefaultDenyMessage = "Command denied by user."

// ApprovalHandler solicits a decision for a pending tool call. It is
// awaited synchronously by the agent loop, so implementations that need
// to block on a terminal prompt or a UI round-trip should do so here.
type ApprovalHandler interface {
	RequestApproval(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error)
}

// readOnlySafelist are commands auto-approved under any policy, since they
// cannot modify the workspace.
var readOnlySafelist = []string{
	"ls", "cat", "pwd", "echo", "rg", "grep", "find",
	"git status", "git diff", "git log", "git show", "git branch",
	"head", "tail", "wc", "file", "which",
}

// IsSafelisted reports whether a command's argv begins with a read-only
// command the safelist auto-approves, regardless of ApprovalPolicy.
func IsSafelisted(argv []string) bool {
	if len(argv) == 0 {
		return false
	}
	joined := strings.Join(argv, " ")
	for _, safe := range readOnlySafelist {
		if argv[0] == safe || strings.HasPrefix(joined, safe+" ") {
			return true
		}
	}
	return false
}

// ApprovalGate decides, given a policy and a pending call, whether to ask
// the handler, and if so interprets its answer.
type ApprovalGate struct {
	Policy  ApprovalPolicy
	Handler ApprovalHandler

	alwaysApproved map[string]bool
}

// NewApprovalGate creates a gate for the given policy. Handler may be nil
// only if Policy never needs to ask (e.g. a test harness driving
// ApprovalFullAuto against only safelisted commands).
func NewApprovalGate(policy ApprovalPolicy, handler ApprovalHandler) *ApprovalGate {
	return &ApprovalGate{Policy: policy, Handler: handler, alwaysApproved: map[string]bool{}}
}

// isEdit reports whether toolName is a patch/file-write call, which
// ApprovalAutoEdit auto-approves without asking.
func isEdit(toolName string, argv []string) bool {
	switch toolName {
	case "write_file", "delete_file", "apply_patch":
		return true
	case "shell":
		return len(argv) > 0 && argv[0] == "apply_patch"
	default:
		return false
	}
}

// Decide runs the approval gate for a single pending call. argv is the
// tokenized command line when toolName == "shell" (or its apply_patch
// variant); it is ignored otherwise.
func (g *ApprovalGate) Decide(ctx context.Context, req ApprovalRequest, argv []string) (ApprovalResponse, error) {
	if IsSafelisted(argv) {
		return ApprovalResponse{Decision: DecisionYes}, nil
	}
	if g.alwaysApproved[req.ToolName] {
		return ApprovalResponse{Decision: DecisionYes}, nil
	}

	switch g.Policy {
	case ApprovalAutoEdit:
		if isEdit(req.ToolName, argv) {
			return ApprovalResponse{Decision: DecisionYes}, nil
		}
	case ApprovalFullAuto:
		return ApprovalResponse{Decision: DecisionYes}, nil
	}

	if g.Handler == nil {
		return ApprovalResponse{Decision: DecisionNo, CustomDenyMessage: DefaultDenyMessage}, nil
	}

	resp, err := g.Handler.RequestApproval(ctx, req)
	if err != nil {
		return ApprovalResponse{}, err
	}
	if resp.Decision == DecisionYesAlways {
		g.alwaysApproved[req.ToolName] = true
	}
	return resp, nil
}

// DenyMessage returns the tool-result output for a denied call.
func DenyMessage(resp ApprovalResponse) string {
	if resp.Decision == DecisionNoWithMessage && resp.CustomDenyMessage != "" {
		return resp.CustomDenyMessage
	}
	return DefaultDenyMessage
}
