package patch

import (
	"regexp"
	"strings"
)

var htmlEntities = map[string]string{
	"&lt;":   "<",
	"&gt;":   ">",
	"&amp;":  "&",
	"&quot;": "\"",
	"&#39;":  "'",
	"\\u003c": "<",
	"\\u003e": ">",
}

var fileActionHeader = regexp.MustCompile(`(?m)^\*\*\* (Update|Add|Delete) File:`)

// Normalize runs the pre-parse cleanup pass described for the patch format:
// HTML-entity decoding, markdown-fence stripping, escaped-newline
// conversion, "--- a/"/"+++ b/" header rewriting, @@ left-trimming, and
// envelope wrapping when the Begin/End Patch markers are missing.
func Normalize(body string) string {
	for from, to := range htmlEntities {
		body = strings.ReplaceAll(body, from, to)
	}

	body = strings.ReplaceAll(body, `\n`, "\n")

	body = stripMarkdownFences(body)

	body = rewriteUnifiedDiffHeaders(body)

	body = leftTrimAtLines(body)

	if !strings.Contains(body, "*** Begin Patch") && fileActionHeader.MatchString(body) {
		body = "*** Begin Patch\n" + strings.TrimRight(body, "\n") + "\n*** End Patch\n"
	}

	return body
}

func stripMarkdownFences(body string) string {
	lines := strings.Split(body, "\n")
	var out []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

var unifiedDiffOld = regexp.MustCompile(`(?m)^--- a/(.+)$`)
var unifiedDiffNew = regexp.MustCompile(`(?m)^\+\+\+ b/(.+)$`)

// rewriteUnifiedDiffHeaders turns a leading "--- a/<p>" / "+++ b/<p>" pair
// (as models sometimes emit instead of the native header) into the
// patch format's own "*** Update File: <p>" header.
func rewriteUnifiedDiffHeaders(body string) string {
	lines := strings.Split(body, "\n")
	var out []string
	for i := 0; i < len(lines); i++ {
		oldMatch := unifiedDiffOld.FindStringSubmatch(lines[i])
		if oldMatch != nil && i+1 < len(lines) {
			if newMatch := unifiedDiffNew.FindStringSubmatch(lines[i+1]); newMatch != nil {
				out = append(out, "*** Update File: "+newMatch[1])
				i++
				continue
			}
		}
		out = append(out, lines[i])
	}
	return strings.Join(out, "\n")
}

// leftTrimAtLines removes leading whitespace from any line whose trimmed
// form begins with "@@", so an indented hunk anchor still parses.
func leftTrimAtLines(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "@@") {
			lines[i] = trimmed
		}
	}
	return strings.Join(lines, "\n")
}
