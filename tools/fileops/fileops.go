// Package fileops supplements the built-in read/write/delete/list file
// handlers (codex's dispatch_builtin.go) with operations the fixed §4.4
// schema doesn't name but a coding assistant still needs: file metadata.
package fileops

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	codex "github.com/samooth/open-codex-sub001"
)

// Tool provides stat_file, registered alongside the built-in file
// handlers rather than duplicating them.
type Tool struct {
	workspaceRoot string
}

// New creates a Tool confined to workspaceRoot.
func New(workspaceRoot string) *Tool {
	return &Tool{workspaceRoot: workspaceRoot}
}

func (t *Tool) Definitions() []codex.ToolDefinition {
	return []codex.ToolDefinition{
		{
			Name:        "stat_file",
			Description: "Get metadata (size, type, modification time) for a file or directory in the workspace.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
		},
	}
}

func (t *Tool) Execute(ctx context.Context, name string, args json.RawMessage) (codex.ToolResult, error) {
	if name != "stat_file" {
		return codex.ToolResult{}, fmt.Errorf("fileops: unknown tool %q", name)
	}

	var params struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return codex.ToolResult{Output: "error: invalid args: " + err.Error()}, nil
	}

	resolved, err := t.resolvePath(params.Path)
	if err != nil {
		return codex.ToolResult{Output: "error: " + err.Error()}, nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return codex.ToolResult{Output: "error: stat: " + err.Error()}, nil
	}
	kind := "file"
	if info.IsDir() {
		kind = "directory"
	}
	out, _ := json.Marshal(map[string]any{
		"name":     info.Name(),
		"size":     info.Size(),
		"type":     kind,
		"modified": info.ModTime().UTC().Format("2006-01-02T15:04:05Z"),
	})
	return codex.ToolResult{Output: string(out)}, nil
}

func (t *Tool) resolvePath(path string) (string, error) {
	cleaned := filepath.Clean("/" + path)
	abs := filepath.Join(t.workspaceRoot, cleaned)
	root := filepath.Clean(t.workspaceRoot)
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace: %s", path)
	}
	return abs, nil
}
