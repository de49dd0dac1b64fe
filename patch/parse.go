package patch

import "strings"

// FileReader resolves a path's current content so Parse can capture
// original lines for Update actions and detect add-over-existing /
// delete-of-absent conditions.
type FileReader interface {
	ReadFile(path string) (string, bool, error)
}

const (
	beginMarker  = "*** Begin Patch"
	endMarker    = "*** End Patch"
	updatePrefix = "*** Update File: "
	addPrefix    = "*** Add File: "
	deletePrefix = "*** Delete File: "
	movePrefix   = "*** Move to: "
	eofMarker    = "*** End Of File"
	hunkPrefix   = "@@"
)

// Parse normalizes and parses a patch body, reading original file content
// through fr for each Update/Delete action.
func Parse(body string, fr FileReader) (*Patch, error) {
	body = Normalize(body)
	lines := strings.Split(body, "\n")

	if len(lines) < 3 {
		return nil, &DiffError{Kind: PatchTooShort, Body: body}
	}
	if strings.TrimSpace(lines[0]) != beginMarker {
		return nil, &DiffError{Kind: MissingMarkers, Body: body}
	}

	endIdx := -1
	for i, l := range lines {
		if strings.TrimSpace(l) == endMarker {
			endIdx = i
			break
		}
	}
	if endIdx == -1 {
		return nil, &DiffError{Kind: MissingEndPatch, Body: body}
	}

	p := &Patch{Actions: make(map[string]PatchAction)}
	i := 1
	for i < endIdx {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, updatePrefix):
			path := strings.TrimSpace(strings.TrimPrefix(line, updatePrefix))
			if _, exists := p.Actions[path]; exists {
				return nil, &DiffError{Kind: DuplicatePath, Path: path}
			}
			content, ok, err := fr.ReadFile(path)
			if err != nil {
				return nil, err
			}
			// A path absent from the workspace is treated as a brand-new
			// file with empty original text, not an error: Update File is
			// the mechanism create-on-patch uses for a file that doesn't
			// exist yet (its hunk lines default to '+' via isNewFileHunk).
			var origLines []string
			if ok {
				origLines = strings.Split(content, "\n")
			}
			action := PatchAction{Kind: ActionUpdate, origLines: origLines}
			i++
			if i < endIdx && strings.HasPrefix(lines[i], movePrefix) {
				action.MovePath = strings.TrimSpace(strings.TrimPrefix(lines[i], movePrefix))
				i++
			}
			chunks, fuzz, consumed, err := parseHunks(lines[i:endIdx], action.origLines)
			if err != nil {
				if de, ok := err.(*DiffError); ok {
					de.Path = path
				}
				return nil, err
			}
			action.Chunks = chunks
			p.Fuzz += fuzz
			i += consumed
			p.Actions[path] = action
			p.Order = append(p.Order, path)

		case strings.HasPrefix(line, addPrefix):
			path := strings.TrimSpace(strings.TrimPrefix(line, addPrefix))
			if _, exists := p.Actions[path]; exists {
				return nil, &DiffError{Kind: DuplicatePath, Path: path}
			}
			if _, ok, err := fr.ReadFile(path); err != nil {
				return nil, err
			} else if ok {
				return nil, &DiffError{Kind: FileExists, Path: path}
			}
			i++
			var added []string
			for i < endIdx && strings.HasPrefix(lines[i], "+") {
				added = append(added, strings.TrimPrefix(lines[i], "+"))
				i++
			}
			p.Actions[path] = PatchAction{Kind: ActionAdd, NewFileText: strings.Join(added, "\n")}
			p.Order = append(p.Order, path)

		case strings.HasPrefix(line, deletePrefix):
			path := strings.TrimSpace(strings.TrimPrefix(line, deletePrefix))
			if _, exists := p.Actions[path]; exists {
				return nil, &DiffError{Kind: DuplicatePath, Path: path}
			}
			if _, ok, err := fr.ReadFile(path); err != nil {
				return nil, err
			} else if !ok {
				return nil, &DiffError{Kind: MissingFile, Path: path}
			}
			p.Actions[path] = PatchAction{Kind: ActionDelete}
			p.Order = append(p.Order, path)
			i++

		case strings.TrimSpace(line) == "":
			i++

		default:
			return nil, &DiffError{Kind: UnknownLine, Body: line}
		}
	}

	return p, nil
}

// rawHunk is one @@-delimited section of an Update action, before context
// resolution has located it within the original file.
type rawHunk struct {
	anchor  string
	lines   []hunkLine
	isEOF   bool
}

type hunkLine struct {
	op   byte // '+', '-', or ' '
	text string
}

// parseHunks consumes hunk bodies until it hits the next file-action
// header or the patch end, resolving each against origLines in sequence
// (each hunk's search starts just past the previous hunk's match).
func parseHunks(lines []string, origLines []string) ([]Chunk, int, int, error) {
	var chunks []Chunk
	totalFuzz := 0
	cursor := 0
	consumed := 0

	i := 0
	for i < len(lines) {
		line := lines[i]
		if strings.HasPrefix(line, updatePrefix) || strings.HasPrefix(line, addPrefix) ||
			strings.HasPrefix(line, deletePrefix) || strings.TrimSpace(line) == "" {
			break
		}

		anchor := ""
		if strings.HasPrefix(line, hunkPrefix) {
			anchor = strings.TrimSpace(strings.TrimPrefix(line, hunkPrefix))
			i++
		}

		h := rawHunk{anchor: anchor}
		for i < len(lines) {
			l := lines[i]
			if strings.HasPrefix(l, hunkPrefix) || strings.HasPrefix(l, updatePrefix) ||
				strings.HasPrefix(l, addPrefix) || strings.HasPrefix(l, deletePrefix) {
				break
			}
			if strings.TrimSpace(l) == eofMarker {
				h.isEOF = true
				i++
				break
			}
			op, text := classifyHunkLine(l, isNewFileHunk(origLines))
			h.lines = append(h.lines, hunkLine{op: op, text: text})
			i++
		}
		if len(h.lines) == 0 {
			continue
		}

		hunkChunks, newCursor, fuzz, err := resolveChunk(h, origLines, cursor)
		if err != nil {
			return nil, 0, 0, err
		}
		chunks = append(chunks, hunkChunks...)
		cursor = newCursor
		totalFuzz += fuzz
	}
	consumed = i
	return chunks, totalFuzz, consumed, nil
}

func isNewFileHunk(origLines []string) bool {
	return len(origLines) == 0 || (len(origLines) == 1 && origLines[0] == "")
}

// classifyHunkLine returns the operation and text for a hunk line,
// tolerating a missing leading +/- marker: new-file hunks default to '+',
// everything else defaults to ' ' (context/keep).
func classifyHunkLine(line string, defaultInsert bool) (byte, string) {
	if line == "" {
		return ' ', ""
	}
	switch line[0] {
	case '+', '-', ' ':
		return line[0], line[1:]
	default:
		if defaultInsert {
			return '+', line
		}
		return ' ', line
	}
}
