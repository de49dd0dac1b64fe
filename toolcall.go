package codex

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/samooth/open-codex-sub001/sandbox"
)

// ShellTokenize performs POSIX-ish shell word-splitting, shared with the
// exec layer's shell-requirement predicate.
func ShellTokenize(line string) []string {
	return sandbox.Tokenize(line)
}

// rawArgs is the union of recognized argument-schema keys (§4.1). At least
// one disjunctive field must be present for a call to be considered
// well-formed; NormalizeArguments does not itself enforce that — callers
// decide whether an empty result is a schema violation.
type rawArgs struct {
	Cmd     json.RawMessage `json:"cmd,omitempty"`
	Command json.RawMessage `json:"command,omitempty"`
	Patch   *string         `json:"patch,omitempty"`
	Path    *string         `json:"path,omitempty"`

	StartLine *int `json:"start_line,omitempty"`
	EndLine   *int `json:"end_line,omitempty"`

	Pattern *string `json:"pattern,omitempty"`
	Include *string `json:"include,omitempty"`
	Depth   *int    `json:"depth,omitempty"`

	Workdir *string `json:"workdir,omitempty"`
	Timeout *int    `json:"timeout,omitempty"`
}

// NormalizeArguments renames a "command" key to "cmd", tokenizes a
// single-string cmd (or a one-element array whose sole element needs
// splitting) using POSIX shell word-splitting, and returns the arguments
// re-encoded as JSON along with whether any recognized schema key was
// present.
func NormalizeArguments(raw json.RawMessage) (json.RawMessage, bool, error) {
	var args rawArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, false, fmt.Errorf("codex: invalid tool-call arguments: %w", err)
	}

	if args.Cmd == nil && args.Command != nil {
		args.Cmd = args.Command
	}
	args.Command = nil

	if args.Cmd != nil {
		normalized, err := normalizeCmdField(args.Cmd)
		if err != nil {
			return nil, false, err
		}
		args.Cmd = normalized
	}

	hasRecognizedKey := args.Cmd != nil || args.Patch != nil || args.Path != nil ||
		args.StartLine != nil || args.EndLine != nil || args.Pattern != nil ||
		args.Include != nil || args.Depth != nil

	out, err := json.Marshal(args)
	if err != nil {
		return nil, false, fmt.Errorf("codex: re-encoding tool-call arguments: %w", err)
	}
	return out, hasRecognizedKey, nil
}

// normalizeCmdField accepts cmd as either a JSON string or a JSON array of
// strings and returns it re-encoded as a JSON array, tokenizing a single
// string (or a one-element array whose sole string has un-quoted
// whitespace) via POSIX shell word-splitting.
func normalizeCmdField(cmd json.RawMessage) (json.RawMessage, error) {
	var asString string
	if err := json.Unmarshal(cmd, &asString); err == nil {
		return json.Marshal(ShellTokenize(asString))
	}

	var asArray []string
	if err := json.Unmarshal(cmd, &asArray); err != nil {
		return nil, fmt.Errorf("codex: cmd must be a string or array of strings: %w", err)
	}
	if len(asArray) == 1 && needsTokenizing(asArray[0]) {
		return json.Marshal(ShellTokenize(asArray[0]))
	}
	return json.Marshal(asArray)
}

func needsTokenizing(s string) bool {
	inQuote := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			}
		case c == '\'' || c == '"':
			inQuote = c
		case c == ' ' || c == '\t':
			return true
		}
	}
	return false
}

// FlattenToolCall splits a tool call whose Arguments is a concatenation of
// multiple top-level JSON objects into one call per object, each
// inheriting the parent's Name and with its inner "command" key
// normalized to "cmd". A call with a single well-formed JSON object is
// returned unchanged (as a slice of one).
func FlattenToolCall(tc ToolCall) ([]ToolCall, error) {
	objects, err := splitConcatenatedJSON(tc.Arguments)
	if err != nil || len(objects) <= 1 {
		return []ToolCall{tc}, nil
	}

	out := make([]ToolCall, 0, len(objects))
	for i, obj := range objects {
		normalized, _, err := NormalizeArguments(obj)
		if err != nil {
			return nil, err
		}
		id := tc.ID
		if i > 0 {
			id = fmt.Sprintf("%s-%d", tc.ID, i)
		}
		out = append(out, ToolCall{ID: id, Name: tc.Name, Arguments: normalized, Metadata: tc.Metadata})
	}
	return out, nil
}

// splitConcatenatedJSON scans raw for back-to-back top-level JSON objects
// (e.g. `{"a":1}{"b":2}`) using brace-depth tracking that respects quoted
// strings and escapes.
func splitConcatenatedJSON(raw json.RawMessage) ([]json.RawMessage, error) {
	var objects []json.RawMessage
	depth := 0
	start := -1
	inString := false
	escaped := false

	trimmed := bytes.TrimSpace(raw)
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string, only quote/escape handling above applies
		case c == '{':
			if depth == 0 {
				start = i
			}
			depth++
		case c == '}':
			depth--
			if depth == 0 && start >= 0 {
				objects = append(objects, json.RawMessage(trimmed[start:i+1]))
				start = -1
			}
			if depth < 0 {
				return nil, fmt.Errorf("codex: unbalanced braces in tool-call arguments")
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("codex: unbalanced braces in tool-call arguments")
	}
	return objects, nil
}
