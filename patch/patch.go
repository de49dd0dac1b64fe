// Package patch parses and applies the textual patch format used by the
// apply_patch tool call: a plain-ASCII, hunk-based format similar to a
// unified diff but tolerant of a model's small formatting mistakes. The
// package is a pure function of input text plus a filesystem facade — it
// owns no state of its own.
package patch

// Patch is a parsed patch body: one PatchAction per file path, plus the
// total fuzz accumulated while resolving hunk context.
type Patch struct {
	Actions map[string]PatchAction
	// Order preserves the sequence paths appeared in, since Actions is a
	// map and application order matters for user-visible diffs.
	Order []string
	Fuzz  int
}

// ActionKind discriminates the three shapes a PatchAction can take.
type ActionKind int

const (
	ActionAdd ActionKind = iota
	ActionDelete
	ActionUpdate
)

// PatchAction is one file's worth of change within a Patch.
type PatchAction struct {
	Kind ActionKind

	// Add
	NewFileText string

	// Update
	Chunks   []Chunk
	MovePath string // non-empty when the update also renames the file

	origLines []string // the file's content at parse time, for Update
}

// Chunk is a single contiguous edit within an Update action.
//
// OrigIndex is the 0-based line offset in the original file at which
// DelLines begin; InsLines replace them in place.
type Chunk struct {
	OrigIndex int
	DelLines  []string
	InsLines  []string
}
