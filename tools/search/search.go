// Package search implements the search_codebase tool (§4.4): a ripgrep
// wrapper run through the exec layer (codex/sandbox), so its process
// lifecycle, timeout, and output capture follow the same path a shell
// call does.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	codex "github.com/samooth/open-codex-sub001"
	"github.com/samooth/open-codex-sub001/sandbox"
)

const defaultSearchTimeout = 10 * time.Second

// Tool runs ripgrep scoped to a workspace root via a Sandbox.
type Tool struct {
	WorkspaceRoot string
	Sandbox       sandbox.Sandbox
}

// New creates a Tool confined to workspaceRoot, executing through sb.
func New(workspaceRoot string, sb sandbox.Sandbox) *Tool {
	return &Tool{WorkspaceRoot: workspaceRoot, Sandbox: sb}
}

func (t *Tool) Definitions() []codex.ToolDefinition {
	return []codex.ToolDefinition{{
		Name:        "search_codebase",
		Description: "Search the workspace's files for a regex pattern using ripgrep. include narrows the search to a glob.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"pattern": {"type": "string"},
				"include": {"type": "string"}
			},
			"required": ["pattern"]
		}`),
	}}
}

func (t *Tool) Execute(ctx context.Context, name string, args json.RawMessage) (codex.ToolResult, error) {
	if name != "search_codebase" {
		return codex.ToolResult{}, fmt.Errorf("search: unknown tool %q", name)
	}

	var params struct {
		Pattern string `json:"pattern"`
		Include string `json:"include"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return codex.ToolResult{Output: "error: invalid args: " + err.Error()}, nil
	}
	if params.Pattern == "" {
		return codex.ToolResult{Output: "error: pattern is required"}, nil
	}

	argv := []string{"rg", "--line-number", "--no-heading", "--color=never"}
	if params.Include != "" {
		argv = append(argv, "--glob", params.Include)
	}
	argv = append(argv, params.Pattern, ".")

	res, err := t.Sandbox.Run(ctx, sandbox.ExecInput{
		Command: argv,
		Workdir: filepath.Clean(t.WorkspaceRoot),
		Timeout: defaultSearchTimeout,
	})
	if err != nil {
		return codex.ToolResult{
			Output:   "error: " + err.Error(),
			Metadata: codex.ToolResultMetadata{ExitCode: 1},
		}, nil
	}

	msg := codex.SearchExitMessage(res.ExitCode, strings.TrimSpace(res.Stderr))
	output := res.Stdout
	if msg != "" {
		if output != "" {
			output += "\n"
		}
		output += msg
	}

	return codex.ToolResult{
		Output: output,
		Metadata: codex.ToolResultMetadata{
			ExitCode:     res.ExitCode,
			DurationSecs: res.DurationSecs,
		},
	}, nil
}
