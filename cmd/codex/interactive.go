package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	codex "github.com/samooth/open-codex-sub001"
)

// terminalApprovalHandler solicits yes/no decisions from the person running
// the CLI, printing the pending tool call and reading a line of response
// from stdin. Under --dry-run every request that reaches this handler is
// denied with an explanatory message instead of prompting. Calls that the
// approval policy or the read-only safelist approves never reach the
// handler, so they still run under --dry-run.
type terminalApprovalHandler struct {
	in     *bufio.Reader
	out    io.Writer
	dryRun bool
}

func (h *terminalApprovalHandler) RequestApproval(ctx context.Context, req codex.ApprovalRequest) (codex.ApprovalResponse, error) {
	if h.dryRun {
		fmt.Fprintf(h.out, "\n[dry-run] would run %s: %s\n", req.ToolName, req.Summary)
		return codex.ApprovalResponse{
			Decision:          codex.DecisionNoWithMessage,
			CustomDenyMessage: "Dry run: command not executed.",
		}, nil
	}

	fmt.Fprintf(h.out, "\n%s wants to run:\n  %s\n", req.ToolName, req.Summary)
	fmt.Fprint(h.out, "Allow? [y/N/a(lways)/m(essage)] ")

	line, err := h.in.ReadString('\n')
	if err != nil && line == "" {
		return codex.ApprovalResponse{Decision: codex.DecisionNo}, nil
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return codex.ApprovalResponse{Decision: codex.DecisionYes}, nil
	case "a", "always":
		return codex.ApprovalResponse{Decision: codex.DecisionYesAlways}, nil
	case "m", "message":
		fmt.Fprint(h.out, "Reason: ")
		reason, _ := h.in.ReadString('\n')
		return codex.ApprovalResponse{
			Decision:          codex.DecisionNoWithMessage,
			CustomDenyMessage: strings.TrimSpace(reason),
		}, nil
	default:
		return codex.ApprovalResponse{Decision: codex.DecisionNo}, nil
	}
}

// outputPrinter renders an assistant's reply to the terminal, truncating
// long tool output previews unless --full-stdout was passed.
type outputPrinter struct {
	w    io.Writer
	full bool
}

const previewLimit = 2000

func (p *outputPrinter) PrintAssistant(msg codex.ChatMessage) {
	content := msg.Content
	if !p.full && len(content) > previewLimit {
		content = content[:previewLimit] + fmt.Sprintf("\n... (%d more characters, use --full-stdout to see all)", len(content)-previewLimit)
	}
	fmt.Fprintln(p.w, content)
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
