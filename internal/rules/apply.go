package rules

import (
	"os"
	"path/filepath"
	"strings"
)

// ApplyOptions control write behavior for a single rule application.
type ApplyOptions struct {
	// DryRun computes the change and reports the target without writing.
	DryRun bool

	// Backup writes the original bytes to a .bak sibling before the
	// target is overwritten.
	Backup bool
}

// DryRunMarker is appended to the reported path when no write occurred.
const DryRunMarker = " [dry-run]"

// Apply executes one rule against its target under baseDir and returns
// the path it changed (or would change, in dry-run mode).
//
// The target's line endings are normalized to LF before the transform and
// the result is written back in that convention. A failed transform never
// touches the file: the backup is only taken once the new content exists.
func Apply(rule Rule, baseDir string, opts ApplyOptions) (string, error) {
	target := filepath.Clean(filepath.Join(baseDir, rule.File))

	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		return "", &ApplyError{
			Path:     target,
			NotFound: true,
			msg:      "target file does not exist: " + target,
		}
	}

	raw, err := os.ReadFile(target)
	if err != nil {
		return "", applyf(target, "reading %s: %v", target, err)
	}

	normalized := normalizeNewlines(string(raw))
	lines := strings.Split(normalized, "\n")

	start, end, err := resolveRange(rule.Range, len(lines))
	if err != nil {
		return "", err
	}

	segment := strings.Join(lines[start-1:end], "\n")

	var replaced string
	if rule.Mode == ModeRegex {
		replaced, err = transformRegex(segment, rule)
	} else {
		replaced, err = transformAnchor(segment, rule)
	}
	if err != nil {
		if ae, ok := err.(*ApplyError); ok {
			ae.Path = target
		}
		return "", err
	}

	spliced := make([]string, 0, len(lines))
	spliced = append(spliced, lines[:start-1]...)
	spliced = append(spliced, strings.Split(replaced, "\n")...)
	spliced = append(spliced, lines[end:]...)
	out := strings.Join(spliced, "\n")

	if opts.DryRun {
		return target + DryRunMarker, nil
	}

	if opts.Backup {
		if err := os.WriteFile(target+".bak", raw, 0o644); err != nil {
			return "", applyf(target, "writing backup for %s: %v", target, err)
		}
	}

	if err := os.WriteFile(target, []byte(out), 0o644); err != nil {
		return "", applyf(target, "writing %s: %v", target, err)
	}

	return target, nil
}

// normalizeNewlines folds CRLF and lone CR line endings into LF.
func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// resolveRange maps an optional line range onto a file of total lines.
// The default is the whole file. An out-of-bounds or inverted range is a
// validation error raised here because the file length is unknown at
// parse time.
func resolveRange(lr *LineRange, total int) (int, int, error) {
	if lr == nil {
		return 1, total, nil
	}
	if lr.Start < 1 || lr.End < lr.Start || lr.End > total {
		return 0, 0, validationf("line_range [%d, %d] is out of bounds for a %d-line file", lr.Start, lr.End, total)
	}
	return lr.Start, lr.End, nil
}

// transformAnchor replaces the span located by the from/to markers. The
// first occurrence of From is found, then the first occurrence of To
// strictly after From's end. Inclusive replaces both markers along with
// the interior; exclusive keeps the markers and replaces only the text
// between them.
func transformAnchor(segment string, rule Rule) (string, error) {
	fromIdx := strings.Index(segment, rule.From)
	if fromIdx < 0 {
		return "", applyf("", "from text not found: %q", preview(rule.From))
	}

	searchStart := fromIdx + len(rule.From)
	toOffset := strings.Index(segment[searchStart:], rule.To)
	if toOffset < 0 {
		return "", applyf("", "to text not found after from: %q", preview(rule.To))
	}
	toIdx := searchStart + toOffset

	var left, right string
	if rule.Inclusive {
		left = segment[:fromIdx]
		right = segment[toIdx+len(rule.To):]
	} else {
		left = segment[:searchStart]
		right = segment[toIdx:]
	}

	return left + rule.New + right, nil
}

// transformRegex substitutes matches of the rule pattern in the segment.
// A pattern that matches nothing is an error: a rule never silently
// no-ops.
func transformRegex(segment string, rule Rule) (string, error) {
	if rule.Pattern == "" {
		return "", validationf("regex rule requires a pattern")
	}

	re, err := CompilePattern(rule.Pattern, rule.Flags)
	if err != nil {
		return "", err
	}

	replaced, n := replaceAll(re, segment, rule.Replacement, rule.MaxCount)
	if n == 0 {
		return "", applyf("", "pattern matched nothing: /%s/", preview(rule.Pattern))
	}

	return replaced, nil
}

// preview shortens rule text for error messages and logs.
func preview(text string) string {
	const limit = 72
	s := strings.ReplaceAll(text, "\n", `\n`)
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
