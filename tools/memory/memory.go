// Package memory implements the persistent_memory tool (§4.9): a
// line-oriented ./.codex/memory.md notes file the model can append to,
// query, and mark items done in, generalized from the teacher's
// semantic-embedding MemoryStore/tools/remember down to the plain notes
// file the spec documents (the embedding indexer itself is an external
// collaborator, out of scope per §1).
package memory

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	codex "github.com/samooth/open-codex-sub001"
	"github.com/yuin/goldmark"
)

const notePrefix = "- [ ] "
const doneNotePrefix = "- [x] "

// Tool reads and writes a single workspace's ./.codex/memory.md file.
type Tool struct {
	path string
}

// New creates a Tool backed by <workspaceRoot>/.codex/memory.md.
func New(workspaceRoot string) *Tool {
	return &Tool{path: filepath.Join(workspaceRoot, ".codex", "memory.md")}
}

func (t *Tool) Definitions() []codex.ToolDefinition {
	return []codex.ToolDefinition{{
		Name: "persistent_memory",
		Description: "Append, list, or mark done a note in the user's persistent memory " +
			"(./.codex/memory.md). Use to remember facts or follow-ups across sessions.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"action": {"type": "string", "enum": ["append", "list", "query", "done"]},
				"text": {"type": "string"},
				"index": {"type": "integer"}
			},
			"required": ["action"]
		}`),
	}}
}

func (t *Tool) Execute(ctx context.Context, name string, args json.RawMessage) (codex.ToolResult, error) {
	if name != "persistent_memory" {
		return codex.ToolResult{}, fmt.Errorf("memory: unknown tool %q", name)
	}

	var params struct {
		Action string `json:"action"`
		Text   string `json:"text"`
		Index  int    `json:"index"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return codex.ToolResult{Output: "error: invalid args: " + err.Error()}, nil
	}

	switch params.Action {
	case "append":
		return t.append(params.Text)
	case "list", "query":
		return t.query(params.Text)
	case "done":
		return t.markDone(params.Index)
	default:
		return codex.ToolResult{Output: "error: unknown action: " + params.Action}, nil
	}
}

func (t *Tool) append(text string) (codex.ToolResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return codex.ToolResult{Output: "error: text is required"}, nil
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return codex.ToolResult{Output: "error: " + err.Error()}, nil
	}
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return codex.ToolResult{Output: "error: " + err.Error()}, nil
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%s%s\n", notePrefix, text); err != nil {
		return codex.ToolResult{Output: "error: " + err.Error()}, nil
	}
	return codex.ToolResult{Output: "Saved note."}, nil
}

// query returns every note line, optionally filtered to those containing
// filter as a case-insensitive substring.
func (t *Tool) query(filter string) (codex.ToolResult, error) {
	lines, err := t.readLines()
	if err != nil {
		return codex.ToolResult{Output: "error: " + err.Error()}, nil
	}
	var out strings.Builder
	n := 0
	needle := strings.ToLower(filter)
	for i, l := range lines {
		if filter != "" && !strings.Contains(strings.ToLower(l), needle) {
			continue
		}
		n++
		fmt.Fprintf(&out, "%d: %s\n", i+1, l)
	}
	if n == 0 {
		return codex.ToolResult{Output: "No notes found."}, nil
	}
	return codex.ToolResult{Output: strings.TrimRight(out.String(), "\n")}, nil
}

// markDone flips note index (1-based, in file order) from "- [ ]" to
// "- [x]".
func (t *Tool) markDone(index int) (codex.ToolResult, error) {
	if index < 1 {
		return codex.ToolResult{Output: "error: index must be >= 1"}, nil
	}
	lines, err := t.readLines()
	if err != nil {
		return codex.ToolResult{Output: "error: " + err.Error()}, nil
	}
	if index > len(lines) {
		return codex.ToolResult{Output: "error: no note at index " + strconv.Itoa(index)}, nil
	}
	line := lines[index-1]
	if strings.HasPrefix(line, notePrefix) {
		lines[index-1] = doneNotePrefix + strings.TrimPrefix(line, notePrefix)
	}
	if err := os.WriteFile(t.path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return codex.ToolResult{Output: "error: " + err.Error()}, nil
	}
	return codex.ToolResult{Output: fmt.Sprintf("Marked note %d done.", index)}, nil
}

func (t *Tool) readLines() ([]string, error) {
	f, err := os.Open(t.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

// RenderHTML renders the notes file to HTML, for a CLI export/display
// path outside the tool-call surface.
func (t *Tool) RenderHTML() (string, error) {
	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := goldmark.Convert(data, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
