package codex

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```(json|bash|shell|sh)\\s*\\n(.*?)```")

var patchEnvelope = regexp.MustCompile(`(?s)\*\*\* Begin Patch.*?\*\*\* End Patch`)

// schemaKeys are the argument-schema keys free-text JSON recovery looks
// for when deciding whether a bare `{...}` object is a tool call.
var schemaKeys = []string{"cmd", "command", "patch", "path", "start_line", "end_line", "pattern", "include", "depth"}

// ExtractFreeText recovers tool calls a model emitted as assistant message
// text instead of through the structured tool-call channel, in precedence
// order: (a) fenced json/bash/shell/sh code blocks, (b) a top-level
// balanced JSON object containing a recognized schema key, (c) a raw
// `*** Begin Patch ... *** End Patch` block. If (a) yields any call, (b)
// is skipped.
func ExtractFreeText(text string, nextID func() string) []ToolCall {
	var calls []ToolCall

	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		lang, body := m[1], strings.TrimSpace(m[2])
		switch lang {
		case "json":
			if args, ok := extractJSONObject(body); ok {
				calls = append(calls, ToolCall{ID: nextID(), Name: "shell", Arguments: args})
			}
		case "bash", "shell", "sh":
			args, _ := json.Marshal(map[string][]string{"cmd": ShellTokenize(body)})
			calls = append(calls, ToolCall{ID: nextID(), Name: "shell", Arguments: args})
		}
	}
	if len(calls) > 0 {
		return calls
	}

	for _, obj := range findBalancedObjects(text) {
		if args, ok := extractJSONObject(string(obj)); ok {
			calls = append(calls, ToolCall{ID: nextID(), Name: freeTextToolName(args), Arguments: args})
		}
	}
	if len(calls) > 0 {
		return calls
	}

	if m := patchEnvelope.FindString(text); m != "" {
		args, _ := json.Marshal(map[string][]string{"cmd": {"apply_patch", m}})
		calls = append(calls, ToolCall{ID: nextID(), Name: "shell", Arguments: args})
	}

	return calls
}

// freeTextToolName infers which tool a recovered bare JSON object targets,
// since free-text recovery has no explicit tool name to go on. It checks
// the fields in this order and picks the first present: cmd, patch,
// pattern, depth, path with start_line or end_line, then path alone.
func freeTextToolName(args json.RawMessage) string {
	var probe struct {
		Cmd       json.RawMessage `json:"cmd"`
		Patch     *string         `json:"patch"`
		Path      *string         `json:"path"`
		StartLine *int            `json:"start_line"`
		EndLine   *int            `json:"end_line"`
		Pattern   *string         `json:"pattern"`
		Depth     *int            `json:"depth"`
	}
	if err := json.Unmarshal(args, &probe); err != nil {
		return "shell"
	}
	switch {
	case len(probe.Cmd) > 0:
		return "shell"
	case probe.Patch != nil:
		return "apply_patch"
	case probe.Pattern != nil:
		return "search_codebase"
	case probe.Depth != nil:
		return "list_files_recursive"
	case probe.Path != nil && (probe.StartLine != nil || probe.EndLine != nil):
		return "read_file_lines"
	case probe.Path != nil:
		return "read_file"
	default:
		return "shell"
	}
}

// extractJSONObject parses body as a JSON object and returns it
// re-encoded (with command normalized to cmd) if it contains at least one
// recognized schema key.
func extractJSONObject(body string) (json.RawMessage, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &probe); err != nil {
		return nil, false
	}
	found := false
	for _, k := range schemaKeys {
		if _, ok := probe[k]; ok {
			found = true
			break
		}
	}
	if !found {
		return nil, false
	}
	normalized, hasKey, err := NormalizeArguments(json.RawMessage(body))
	if err != nil || !hasKey {
		return nil, false
	}
	return normalized, true
}

// findBalancedObjects scans text for top-level balanced `{...}` spans,
// respecting quoted strings and escapes, without requiring the input to
// otherwise be valid JSON.
func findBalancedObjects(text string) [][]byte {
	var spans [][]byte
	depth := 0
	start := -1
	inString := false
	escaped := false

	b := []byte(text)
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			if depth == 0 {
				start = i
			}
			depth++
		case c == '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					spans = append(spans, b[start:i+1])
					start = -1
				}
			}
		}
	}
	return spans
}
