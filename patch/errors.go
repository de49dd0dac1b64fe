package patch

import "fmt"

// DiffErrorKind enumerates the ways a patch body can fail to parse or
// apply. These errors are all raised while parsing, before any write, so
// a patch that fails with one leaves the workspace unchanged.
type DiffErrorKind int

const (
	MissingEndPatch DiffErrorKind = iota
	DuplicatePath
	MissingFile
	FileExists
	UnknownLine
	InvalidContext
	InvalidEOFContext
	PatchTooShort
	MissingMarkers
)

func (k DiffErrorKind) String() string {
	switch k {
	case MissingEndPatch:
		return "missing *** End Patch"
	case DuplicatePath:
		return "duplicate path"
	case MissingFile:
		return "missing file"
	case FileExists:
		return "file exists"
	case UnknownLine:
		return "unknown line"
	case InvalidContext:
		return "invalid context"
	case InvalidEOFContext:
		return "invalid EOF context"
	case PatchTooShort:
		return "patch too short"
	case MissingMarkers:
		return "missing markers"
	default:
		return "unknown"
	}
}

// DiffError reports a patch parse or apply failure, along with the path
// and offending body text where available.
type DiffError struct {
	Kind DiffErrorKind
	Path string
	Body string
}

func (e *DiffError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("patch: %s", e.Kind)
	}
	if e.Body == "" {
		return fmt.Sprintf("patch: %s: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("patch: %s: %s:\n%s", e.Kind, e.Path, e.Body)
}
