package patch

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Filesystem is the facade the patch engine applies changes through. It is
// the only side-effecting dependency of this package.
type Filesystem interface {
	FileReader
	WriteFile(path string, content string) error
	Remove(path string) error
}

// Apply parses body against fs's current state and applies every action.
// Every action is resolved before the first write, so a parse or context
// error leaves fs untouched. A filesystem error during the writes stops
// at that action; writes already made for earlier actions are not rolled
// back.
func Apply(body string, fs Filesystem) (*Patch, error) {
	p, err := Parse(body, fs)
	if err != nil {
		return nil, err
	}
	if err := ApplyParsed(p, fs); err != nil {
		return nil, err
	}
	return p, nil
}

// ApplyParsed performs the filesystem side effects for an already-parsed
// Patch, in the order its paths were encountered.
func ApplyParsed(p *Patch, fs Filesystem) error {
	for _, path := range p.Order {
		action := p.Actions[path]
		switch action.Kind {
		case ActionAdd:
			if err := writeCreatingDirs(fs, path, action.NewFileText); err != nil {
				return err
			}
		case ActionDelete:
			if err := fs.Remove(path); err != nil {
				return err
			}
		case ActionUpdate:
			newContent := rebuild(action.origLines, action.Chunks)
			target := path
			if action.MovePath != "" {
				target = action.MovePath
			}
			if err := writeCreatingDirs(fs, target, newContent); err != nil {
				return err
			}
			if action.MovePath != "" && action.MovePath != path {
				if err := fs.Remove(path); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func writeCreatingDirs(fs Filesystem, path string, content string) error {
	_ = filepath.Dir(path) // parent-directory creation is the facade's responsibility
	return fs.WriteFile(path, content)
}

// rebuild reconstructs a file's new content by copying untouched original
// lines, splicing in each chunk's inserted lines in place of its deleted
// lines, in chunk order.
func rebuild(origLines []string, chunks []Chunk) string {
	var out []string
	cursor := 0
	for _, c := range chunks {
		out = append(out, origLines[cursor:c.OrigIndex]...)
		out = append(out, c.InsLines...)
		cursor = c.OrigIndex + len(c.DelLines)
	}
	out = append(out, origLines[cursor:]...)
	return strings.Join(out, "\n")
}

// resolveChunk locates hunk h within origLines starting the search at
// cursor, then splits it into one or more Chunks separated by matched
// context lines. It returns the resolved chunks merged into a single
// Chunk sequence (only one Chunk is produced per contiguous edit run),
// the new cursor position (just past the hunk's matched region), and the
// fuzz level consumed to find it.
func resolveChunk(h rawHunk, origLines []string, cursor int) ([]Chunk, int, int, error) {
	anchorSeq := contextSequence(h)

	start, fuzz, err := locateContext(origLines, anchorSeq, cursor, h.isEOF)
	if err != nil {
		return nil, 0, 0, err
	}

	chunks, newCursor := splitHunk(h, start)
	return chunks, newCursor, fuzz, nil
}

// contextSequence extracts the lines that must already exist in the
// original file for this hunk: context (' ') and deleted ('-') lines, in
// order. Inserted ('+') lines are not part of the original file and are
// skipped.
func contextSequence(h rawHunk) []string {
	var seq []string
	if h.anchor != "" {
		seq = append(seq, h.anchor)
	}
	for _, l := range h.lines {
		if l.op == ' ' || l.op == '-' {
			seq = append(seq, l.text)
		}
	}
	return seq
}

// locateContext finds where seq occurs contiguously within origLines,
// trying progressively fuzzier comparisons. EOF hunks first try the
// file's tail before falling back to a forward search.
func locateContext(origLines []string, seq []string, cursor int, isEOF bool) (int, int, error) {
	if len(seq) == 0 {
		return cursor, 0, nil
	}

	if isEOF {
		tailStart := len(origLines) - len(seq)
		if tailStart >= cursor && matches(origLines[tailStart:tailStart+len(seq)], seq, exact) {
			return tailStart, 0, nil
		}
	}

	tries := []struct {
		fuzz int
		cmp  func(a, b string) bool
	}{
		{0, exact},
		{1, rightTrimmedEqual},
		{100, trimmedEqual},
	}

	for _, try := range tries {
		if idx, ok := search(origLines, seq, cursor, try.cmp); ok {
			return idx, try.fuzz, nil
		}
	}

	if isEOF {
		if idx, ok := search(origLines, seq, cursor, trimmedEqual); ok {
			return idx, 10100, nil
		}
	}

	return 0, 0, &DiffError{Kind: InvalidContext, Body: strings.Join(seq, "\n")}
}

func search(origLines []string, seq []string, from int, eq func(a, b string) bool) (int, bool) {
	for i := from; i+len(seq) <= len(origLines); i++ {
		if matches(origLines[i:i+len(seq)], seq, eq) {
			return i, true
		}
	}
	return 0, false
}

func matches(a []string, b []string, eq func(a, b string) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !eq(a[i], b[i]) {
			return false
		}
	}
	return true
}

func exact(a, b string) bool             { return a == b }
func rightTrimmedEqual(a, b string) bool { return strings.TrimRight(a, " \t") == strings.TrimRight(b, " \t") }
func trimmedEqual(a, b string) bool      { return strings.TrimSpace(a) == strings.TrimSpace(b) }

// Canonicalize applies NFKC normalization. The agent loop uses it to build
// tool-call signatures for loop detection; the context matching in this
// file compares lines exactly or after trimming whitespace and does not
// call it.
func Canonicalize(s string) string {
	return norm.NFKC.String(s)
}

// splitHunk walks h's lines starting at origStart, bucketing consecutive
// deletions/insertions into a Chunk. A context line closes whatever edit
// run is currently open, so a single @@ hunk that contains more than one
// context-separated edit run yields one Chunk per run, each with its own
// OrigIndex — matching the one-orig_index-per-contiguous-deletion-run
// Chunk model.
func splitHunk(h rawHunk, origStart int) ([]Chunk, int) {
	pos := origStart
	var chunks []Chunk
	var cur Chunk
	open := false

	closeRun := func() {
		if open {
			chunks = append(chunks, cur)
			cur = Chunk{}
			open = false
		}
	}

	for _, l := range h.lines {
		switch l.op {
		case ' ':
			closeRun()
			pos++
		case '-':
			if !open {
				cur.OrigIndex = pos
				open = true
			}
			cur.DelLines = append(cur.DelLines, l.text)
			pos++
		case '+':
			if !open {
				cur.OrigIndex = pos
				open = true
			}
			cur.InsLines = append(cur.InsLines, l.text)
		}
	}
	closeRun()
	return chunks, pos
}
