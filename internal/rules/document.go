package rules

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ParseDocument validates raw JSON bytes into a Document. No file I/O is
// performed; a returned error is always a *ValidationError and means
// nothing from data may be persisted.
func ParseDocument(data []byte) (*Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, validationf("task document is not a valid JSON object: %v", err)
	}

	doc := &Document{extra: make(map[string]json.RawMessage)}
	for k, v := range top {
		if k != "edits" {
			doc.extra[k] = v
		}
	}

	rawEdits, ok := top["edits"]
	if !ok || isJSONNull(rawEdits) {
		return doc, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(rawEdits, &entries); err != nil {
		return nil, validationf("the edits field must be an array")
	}

	for i, entry := range entries {
		rule, err := parseRule(i+1, entry)
		if err != nil {
			return nil, err
		}
		doc.Edits = append(doc.Edits, rule)
	}

	return doc, nil
}

// parseRule validates a single edits entry. idx is 1-based for messages.
func parseRule(idx int, raw json.RawMessage) (Rule, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Rule{}, validationf("rule %d must be an object", idx)
	}

	file := strings.TrimSpace(fieldString(fields["file"]))
	if file == "" {
		return Rule{}, validationf("rule %d is missing file", idx)
	}

	mode, err := resolveMode(fields, true)
	if err != nil {
		return Rule{}, validationf("rule %d: %v", idx, err)
	}

	lr, err := parseLineRange(fields["line_range"])
	if err != nil {
		return Rule{}, validationf("rule %d: %v", idx, err)
	}

	if mode == ModeRegex {
		pattern := fieldString(fields["pattern"])
		if pattern == "" {
			return Rule{}, validationf("rule %d: regex rule is missing pattern", idx)
		}

		flags := fieldString(fields["regex_flags"])
		if _, err := CompilePattern(pattern, flags); err != nil {
			return Rule{}, validationf("rule %d: %v", idx, err)
		}

		count, err := fieldInt(fields["regex_count"], 0)
		if err != nil {
			return Rule{}, validationf("rule %d: regex_count must be an integer", idx)
		}
		if count < 0 {
			return Rule{}, validationf("rule %d: regex_count must not be negative", idx)
		}

		replacement, ok := fields["replacement"]
		if !ok {
			replacement = fields["new_text"]
		}

		return Rule{
			File:        file,
			Mode:        ModeRegex,
			Range:       lr,
			Pattern:     pattern,
			Replacement: fieldString(replacement),
			Flags:       flags,
			MaxCount:    count,
		}, nil
	}

	// Anchor rules require the three text fields to be present; an empty
	// string is a legal value for any of them, absence is not.
	from, hasFrom := fields["from"]
	to, hasTo := fields["to"]
	newText, hasNew := fields["new_text"]
	if !hasFrom || !hasTo || !hasNew {
		return Rule{}, validationf("rule %d: anchor rule is missing from/to/new_text", idx)
	}

	return Rule{
		File:      file,
		Mode:      ModeAnchor,
		Range:     lr,
		From:      fieldString(from),
		To:        fieldString(to),
		New:       fieldString(newText),
		Inclusive: fieldBool(fields["inclusive"], true),
	}, nil
}

// resolveMode applies the mode-resolution chain: explicit mode, the legacy
// use_regex flag, and the re/regexp aliases. When strict is false an
// unrecognized mode silently falls back to anchor; the grouped editor view
// relies on that leniency while document parsing rejects.
func resolveMode(fields map[string]json.RawMessage, strict bool) (string, error) {
	mode := strings.ToLower(strings.TrimSpace(fieldString(fields["mode"])))
	if mode == "" {
		mode = ModeAnchor
	}
	if fieldBool(fields["use_regex"], false) {
		mode = ModeRegex
	}
	if mode == "re" || mode == "regexp" {
		mode = ModeRegex
	}
	if mode != ModeAnchor && mode != ModeRegex {
		if strict {
			return "", validationf("invalid mode %q", mode)
		}
		mode = ModeAnchor
	}
	return mode, nil
}

// parseLineRange reads an optional 2-element [start, end] bound. Bounds
// against the file length are checked at apply time.
func parseLineRange(raw json.RawMessage) (*LineRange, error) {
	if raw == nil || isJSONNull(raw) {
		return nil, nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil || len(parts) != 2 {
		return nil, validationf("line_range must be an array of two numbers")
	}

	start, err := fieldInt(parts[0], 0)
	if err != nil {
		return nil, validationf("line_range must contain numbers")
	}
	end, err := fieldInt(parts[1], 0)
	if err != nil {
		return nil, validationf("line_range must contain numbers")
	}

	return &LineRange{Start: start, End: end}, nil
}

// Marshal renders the document in its persisted form: the ordered edits
// array plus any preserved unknown top-level keys, indented, with a
// trailing newline.
func (d *Document) Marshal() ([]byte, error) {
	top := make(map[string]any, len(d.extra)+1)
	for k, v := range d.extra {
		top[k] = v
	}
	edits := d.Edits
	if edits == nil {
		edits = []Rule{}
	}
	top["edits"] = edits

	data, err := json.MarshalIndent(top, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// SaveDocument writes the document to path all-or-nothing: the bytes are
// staged in a sibling temp file and renamed over the target, so a failed
// save leaves any previous document untouched.
func SaveDocument(path string, d *Document) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// DefaultDocumentJSON is the rendering of an empty task document, served
// when no tasks file exists yet.
func DefaultDocumentJSON() []byte {
	return []byte("{\n    \"edits\": []\n}\n")
}

// writeFileAtomic stages data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// isJSONNull reports whether raw is the JSON null literal.
func isJSONNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// fieldString coerces a JSON scalar to a string. Strings are returned
// as-is, numbers and booleans in their literal form, anything else empty.
func fieldString(raw json.RawMessage) string {
	if raw == nil || isJSONNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return ""
}

// fieldBool reads a lenient boolean: real booleans, non-zero numbers, and
// the usual string spellings. Unrecognized values keep the default.
func fieldBool(raw json.RawMessage, def bool) bool {
	if raw == nil || isJSONNull(raw) {
		return def
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f != 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseBoolString(s, def)
	}
	return def
}

// ParseBoolString maps the accepted textual boolean spellings, keeping
// def for anything unrecognized.
func ParseBoolString(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

// fieldInt reads an integer from a JSON number or numeric string.
func fieldInt(raw json.RawMessage, def int) (int, error) {
	if raw == nil || isJSONNull(raw) {
		return def, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return def, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, err
		}
		return n, nil
	}
	return 0, validationf("expected a number")
}
