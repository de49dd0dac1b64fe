package codex

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/samooth/open-codex-sub001/patch"
	"github.com/samooth/open-codex-sub001/sandbox"
)

// defaultExecTimeout is used when a shell call's arguments omit timeout.
const defaultExecTimeout = 10 * time.Second

// BuiltinDispatcher implements the handlers §4.4 names directly: shell
// (and its apply_patch variant), file read/write/delete, and directory
// listing, all scoped to a single workspace root.
type BuiltinDispatcher struct {
	WorkspaceRoot string
	Sandbox       sandbox.Sandbox
	Registry      *ToolRegistry // handles search_codebase, persistent_memory, and any extra tools
}

// Dispatch executes a single tool call and returns its wrapped result.
// It never returns an error from OS/spawn failures — those are converted
// to a non-zero exit_code with the message in Output, per §4.3.
func (d *BuiltinDispatcher) Dispatch(ctx context.Context, tc ToolCall) ToolResult {
	return dispatchWithTiming(ctx, tc, d.dispatch)
}

func (d *BuiltinDispatcher) dispatch(ctx context.Context, tc ToolCall) ToolResult {
	switch tc.Name {
	case "shell":
		return d.dispatchShell(ctx, tc.Arguments)
	case "apply_patch":
		var args struct {
			Patch string `json:"patch"`
		}
		if err := decodeArgs(tc.Arguments, &args); err != nil {
			return errorResult("invalid apply_patch arguments: %v", err)
		}
		return d.dispatchApplyPatch(args.Patch)
	case "read_file":
		return d.dispatchReadFile(tc.Arguments)
	case "read_file_lines":
		return d.dispatchReadFileLines(tc.Arguments)
	case "write_file":
		return d.dispatchWriteFile(tc.Arguments)
	case "delete_file":
		return d.dispatchDeleteFile(tc.Arguments)
	case "list_directory":
		return d.dispatchListDirectory(tc.Arguments)
	case "list_files_recursive":
		return d.dispatchListFilesRecursive(tc.Arguments)
	default:
		if d.Registry != nil {
			result, err := d.Registry.Execute(ctx, tc.Name, tc.Arguments)
			if err != nil {
				return errorResult("%v", err)
			}
			return result
		}
		return errorResult("unknown tool: %s", tc.Name)
	}
}

// resolvePath confines path to WorkspaceRoot: path is cleaned as if it
// were rooted at "/", so ".." segments cannot climb above WorkspaceRoot.
func (d *BuiltinDispatcher) resolvePath(path string) (string, error) {
	cleaned := filepath.Clean("/" + path)
	abs := filepath.Join(d.WorkspaceRoot, cleaned)
	if !strings.HasPrefix(abs, filepath.Clean(d.WorkspaceRoot)+string(filepath.Separator)) && abs != filepath.Clean(d.WorkspaceRoot) {
		return "", fmt.Errorf("path escapes workspace: %s", path)
	}
	return abs, nil
}

func (d *BuiltinDispatcher) dispatchShell(ctx context.Context, raw json.RawMessage) ToolResult {
	var args struct {
		Cmd     json.RawMessage `json:"cmd"`
		Workdir string          `json:"workdir"`
		Timeout int             `json:"timeout"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("invalid shell arguments: %v", err)
	}

	var argv []string
	if err := json.Unmarshal(args.Cmd, &argv); err != nil {
		var single string
		if err2 := json.Unmarshal(args.Cmd, &single); err2 != nil {
			return errorResult("invalid cmd: %v", err)
		}
		argv = sandbox.Tokenize(single)
	}
	if len(argv) == 0 {
		return errorResult("cmd is required")
	}

	if argv[0] == "apply_patch" {
		if len(argv) < 2 {
			return errorResult("apply_patch requires a patch body argument")
		}
		return d.dispatchApplyPatch(argv[1])
	}

	timeout := defaultExecTimeout
	if args.Timeout > 0 {
		timeout = time.Duration(args.Timeout) * time.Millisecond
	}
	workdir := d.WorkspaceRoot
	if args.Workdir != "" {
		if resolved, err := d.resolvePath(args.Workdir); err == nil {
			workdir = resolved
		}
	}

	res, err := d.Sandbox.Run(ctx, sandbox.ExecInput{
		Command: argv,
		Workdir: workdir,
		Timeout: timeout,
	})
	if err != nil {
		return ToolResult{
			Output:   "error: " + err.Error(),
			Metadata: ToolResultMetadata{ExitCode: 1},
		}
	}

	output := res.Stdout
	if res.Stderr != "" {
		if output != "" {
			output += "\n"
		}
		output += res.Stderr
	}
	exitCode := res.ExitCode
	if res.TimedOut {
		exitCode = -1
		output += fmt.Sprintf("\n(command timed out after %s)", timeout)
	}

	return ToolResult{
		Output: output,
		Metadata: ToolResultMetadata{
			ExitCode:     exitCode,
			DurationSecs: res.DurationSecs,
		},
	}
}

type workspaceFS struct{ root string }

func (w workspaceFS) resolve(path string) string {
	cleaned := filepath.Clean("/" + path)
	return filepath.Join(w.root, cleaned)
}

func (w workspaceFS) ReadFile(path string) (string, bool, error) {
	data, err := os.ReadFile(w.resolve(path))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

func (w workspaceFS) WriteFile(path string, content string) error {
	abs := w.resolve(path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	return os.WriteFile(abs, []byte(content), 0o644)
}

func (w workspaceFS) Remove(path string) error {
	return os.Remove(w.resolve(path))
}

func (d *BuiltinDispatcher) dispatchApplyPatch(body string) ToolResult {
	start := time.Now()
	_, err := patch.Apply(body, workspaceFS{root: d.WorkspaceRoot})
	dur := time.Since(start).Seconds()
	if err != nil {
		return ToolResult{
			Output:   "error: " + err.Error(),
			Metadata: ToolResultMetadata{ExitCode: 1, DurationSecs: dur},
		}
	}
	return ToolResult{
		Output:   "Patch applied successfully.",
		Metadata: ToolResultMetadata{ExitCode: 0, DurationSecs: dur},
	}
}

func (d *BuiltinDispatcher) dispatchReadFile(raw json.RawMessage) ToolResult {
	var args struct {
		Path string `json:"path"`
	}
	if err := decodeArgs(raw, &args); err != nil || args.Path == "" {
		return errorResult("path is required")
	}
	abs, err := d.resolvePath(args.Path)
	if err != nil {
		return errorResult("%v", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return errorResult("reading %s: %v", args.Path, err)
	}
	return ToolResult{Output: string(data)}
}

func (d *BuiltinDispatcher) dispatchReadFileLines(raw json.RawMessage) ToolResult {
	var args struct {
		Path      string `json:"path"`
		StartLine int    `json:"start_line"`
		EndLine   int    `json:"end_line"`
	}
	if err := decodeArgs(raw, &args); err != nil || args.Path == "" {
		return errorResult("path is required")
	}
	abs, err := d.resolvePath(args.Path)
	if err != nil {
		return errorResult("%v", err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return errorResult("reading %s: %v", args.Path, err)
	}
	lines := strings.Split(string(data), "\n")

	start := args.StartLine
	if start < 1 {
		start = 1
	}
	end := args.EndLine
	if end < start || end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) {
		return ToolResult{Output: ""}
	}
	return ToolResult{Output: strings.Join(lines[start-1:end], "\n")}
}

func (d *BuiltinDispatcher) dispatchWriteFile(raw json.RawMessage) ToolResult {
	var args struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := decodeArgs(raw, &args); err != nil || args.Path == "" {
		return errorResult("path is required")
	}
	abs, err := d.resolvePath(args.Path)
	if err != nil {
		return errorResult("%v", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return errorResult("creating parent directories for %s: %v", args.Path, err)
	}
	if err := os.WriteFile(abs, []byte(args.Content), 0o644); err != nil {
		return errorResult("writing %s: %v", args.Path, err)
	}
	return ToolResult{Output: fmt.Sprintf("Wrote %d bytes to %s", len(args.Content), args.Path)}
}

func (d *BuiltinDispatcher) dispatchDeleteFile(raw json.RawMessage) ToolResult {
	var args struct {
		Path string `json:"path"`
	}
	if err := decodeArgs(raw, &args); err != nil || args.Path == "" {
		return errorResult("path is required")
	}
	abs, err := d.resolvePath(args.Path)
	if err != nil {
		return errorResult("%v", err)
	}
	if err := os.Remove(abs); err != nil {
		return errorResult("deleting %s: %v", args.Path, err)
	}
	return ToolResult{Output: fmt.Sprintf("Deleted %s", args.Path)}
}

func (d *BuiltinDispatcher) dispatchListDirectory(raw json.RawMessage) ToolResult {
	var args struct {
		Path string `json:"path"`
	}
	_ = decodeArgs(raw, &args)
	abs, err := d.resolvePath(args.Path)
	if err != nil {
		return errorResult("%v", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return errorResult("listing %s: %v", args.Path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return ToolResult{Output: strings.Join(names, "\n")}
}

func (d *BuiltinDispatcher) dispatchListFilesRecursive(raw json.RawMessage) ToolResult {
	var args struct {
		Path  string `json:"path"`
		Depth int    `json:"depth"`
	}
	_ = decodeArgs(raw, &args)
	abs, err := d.resolvePath(args.Path)
	if err != nil {
		return errorResult("%v", err)
	}
	maxDepth := args.Depth
	if maxDepth <= 0 {
		maxDepth = 1 << 20
	}

	var out []string
	baseDepth := strings.Count(filepath.Clean(abs), string(filepath.Separator))
	err = filepath.Walk(abs, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == abs {
			return nil
		}
		depth := strings.Count(filepath.Clean(p), string(filepath.Separator)) - baseDepth
		if depth > maxDepth {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(abs, p)
		if relErr != nil {
			return relErr
		}
		if info.IsDir() {
			rel += "/"
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return errorResult("listing %s: %v", args.Path, err)
	}
	sort.Strings(out)
	return ToolResult{Output: strings.Join(out, "\n")}
}
