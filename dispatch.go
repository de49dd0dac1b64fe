package codex

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DispatchFunc executes a single already-approved tool call and returns its
// result. Agent supplies the one built from its ToolRegistry plus the
// built-in shell/apply_patch routing; tests can supply a stub.
type DispatchFunc func(ctx context.Context, tc ToolCall) ToolResult

// builtinNames are handled directly by BuiltinDispatcher rather than
// routed through the ToolRegistry, since they need the workspace/
// sandbox/patch collaborators rather than a generic Tool implementation.
// search_codebase and persistent_memory are part of the same §4.4 union
// but are implemented as registered Tools (codex/tools/search,
// codex/tools/memory) and fall through to the registry instead.
var builtinNames = map[string]bool{
	"shell": true, "apply_patch": true,
	"read_file": true, "read_file_lines": true,
	"write_file": true, "delete_file": true,
	"list_directory": true, "list_files_recursive": true,
}

// IsBuiltin reports whether name is dispatched by the built-in handler
// rather than a registered Tool.
func IsBuiltin(name string) bool { return builtinNames[name] }

func rawSchema(js string) json.RawMessage { return json.RawMessage(js) }

// builtinToolDefinitions describes every built-in tool's JSON-Schema
// parameters, in §4.1's argument-union shape, for the model's tool
// declarations.
var builtinToolDefinitions = []ToolDefinition{
	{
		Name:        "shell",
		Description: "Run a shell command in the workspace. cmd may be a single command-line string or an argv array. apply_patch is invoked as cmd=[\"apply_patch\", <patch body>].",
		Parameters: rawSchema(`{
			"type": "object",
			"properties": {
				"cmd": {"oneOf": [{"type": "string"}, {"type": "array", "items": {"type": "string"}}]},
				"workdir": {"type": "string"},
				"timeout": {"type": "integer"}
			},
			"required": ["cmd"]
		}`),
	},
	{
		Name:        "apply_patch",
		Description: "Apply a textual patch (Begin Patch/Update File/Add File/Delete File/End Patch format) to the workspace.",
		Parameters: rawSchema(`{
			"type": "object",
			"properties": {"patch": {"type": "string"}},
			"required": ["patch"]
		}`),
	},
	{
		Name:        "read_file",
		Description: "Read a file's full contents.",
		Parameters: rawSchema(`{
			"type": "object",
			"properties": {"path": {"type": "string"}},
			"required": ["path"]
		}`),
	},
	{
		Name:        "read_file_lines",
		Description: "Read an inclusive 1-based line range from a file.",
		Parameters: rawSchema(`{
			"type": "object",
			"properties": {
				"path": {"type": "string"},
				"start_line": {"type": "integer"},
				"end_line": {"type": "integer"}
			},
			"required": ["path"]
		}`),
	},
	{
		Name:        "write_file",
		Description: "Write (creating or overwriting) a file's full contents.",
		Parameters: rawSchema(`{
			"type": "object",
			"properties": {
				"path": {"type": "string"},
				"content": {"type": "string"}
			},
			"required": ["path", "content"]
		}`),
	},
	{
		Name:        "delete_file",
		Description: "Delete a file.",
		Parameters: rawSchema(`{
			"type": "object",
			"properties": {"path": {"type": "string"}},
			"required": ["path"]
		}`),
	},
	{
		Name:        "list_directory",
		Description: "List the immediate entries of a directory; directories are suffixed with /.",
		Parameters: rawSchema(`{
			"type": "object",
			"properties": {"path": {"type": "string"}},
			"required": ["path"]
		}`),
	},
	{
		Name:        "list_files_recursive",
		Description: "List every file and directory under path, up to depth levels deep.",
		Parameters: rawSchema(`{
			"type": "object",
			"properties": {
				"path": {"type": "string"},
				"depth": {"type": "integer"}
			},
			"required": ["path"]
		}`),
	},
}

// dispatchWithTiming wraps a DispatchFunc so every call gets its
// duration_seconds recorded in the result metadata even if the inner
// handler didn't set it, and never panics out to the agent loop.
func dispatchWithTiming(ctx context.Context, tc ToolCall, fn func(ctx context.Context, tc ToolCall) ToolResult) (result ToolResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			result = ToolResult{Output: fmt.Sprintf("error: tool %q panicked: %v", tc.Name, p)}
		}
		if result.Metadata.DurationSecs == 0 {
			result.Metadata.DurationSecs = time.Since(start).Seconds()
		}
	}()
	return fn(ctx, tc)
}

// SearchExitMessage maps a search_codebase invocation's exit code to the
// output text the model sees, per the ripgrep-style exit-code convention.
func SearchExitMessage(exitCode int, stderr string) string {
	switch exitCode {
	case 0:
		return ""
	case 1:
		return "No matches found."
	case 127:
		return fmt.Sprintf("Error: search_codebase failed with exit code 127: %s", stderr)
	default:
		return fmt.Sprintf("Error: search_codebase failed with exit code %d: %s", exitCode, stderr)
	}
}

// decodeArgs unmarshals a tool call's raw arguments into dst, wrapping
// failures as a structured tool-result error rather than propagating.
func decodeArgs(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("no arguments provided")
	}
	return json.Unmarshal(raw, dst)
}

// errorResult builds a ToolResult carrying a failure message, matching the
// plain "error: ..." convention tool results use throughout the loop.
func errorResult(format string, args ...any) ToolResult {
	return ToolResult{Output: "error: " + fmt.Sprintf(format, args...), Metadata: ToolResultMetadata{ExitCode: 1}}
}
