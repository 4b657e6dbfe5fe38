package rules

import (
	"encoding/json"
	"strconv"
	"strings"
)

// VisualEdit is a single row in the grouped editor. Every field except
// Inclusive travels as a string so the form can round-trip partial input.
type VisualEdit struct {
	Mode      string `json:"mode"`
	LineStart string `json:"line_start"`
	LineEnd   string `json:"line_end"`
	From      string `json:"from"`
	To        string `json:"to"`
	Action    string `json:"action"`
	Inclusive bool   `json:"inclusive"`
	Pattern   string `json:"pattern"`
	Flags     string `json:"regex_flags"`
	Count     string `json:"regex_count"`
}

// Task is one file group in the grouped editor: a target file and the
// ordered edits that apply to it.
type Task struct {
	File  string       `json:"file"`
	Edits []VisualEdit `json:"edits"`
}

func emptyVisualEdit() VisualEdit {
	return VisualEdit{Mode: ModeAnchor, Inclusive: true}
}

// GroupTasks converts raw document bytes into the grouped editor view.
// This path is deliberately lenient where document parsing is strict:
// non-object entries are skipped, unknown modes fall back to anchor, and
// malformed scalars become empty strings, so a hand-edited document still
// opens in the editor. Files keep first-appearance order; an empty
// document yields one blank task as an editing seed.
func GroupTasks(data []byte) ([]Task, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, validationf("task document is not a valid JSON object: %v", err)
	}

	var entries []json.RawMessage
	if raw, ok := top["edits"]; ok && !isJSONNull(raw) {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, validationf("the edits field must be an array")
		}
	}

	var order []string
	grouped := make(map[string][]VisualEdit)

	for _, entry := range entries {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(entry, &fields); err != nil {
			continue
		}

		file := strings.TrimSpace(fieldString(fields["file"]))
		if _, seen := grouped[file]; !seen {
			order = append(order, file)
			grouped[file] = nil
		}

		grouped[file] = append(grouped[file], visualEditFromFields(fields))
	}

	var tasks []Task
	for _, file := range order {
		edits := grouped[file]
		if len(edits) == 0 {
			edits = []VisualEdit{emptyVisualEdit()}
		}
		tasks = append(tasks, Task{File: file, Edits: edits})
	}

	if len(tasks) == 0 {
		tasks = []Task{{Edits: []VisualEdit{emptyVisualEdit()}}}
	}
	return tasks, nil
}

// visualEditFromFields lowers one stored rule into its editor row.
func visualEditFromFields(fields map[string]json.RawMessage) VisualEdit {
	mode, _ := resolveMode(fields, false)

	edit := VisualEdit{Mode: mode, Inclusive: true}

	if lr, err := parseLineRange(fields["line_range"]); err == nil && lr != nil {
		edit.LineStart = strconv.Itoa(lr.Start)
		edit.LineEnd = strconv.Itoa(lr.End)
	}

	if mode == ModeRegex {
		edit.Pattern = fieldString(fields["pattern"])
		edit.Flags = fieldString(fields["regex_flags"])
		if count, err := fieldInt(fields["regex_count"], 0); err == nil && count != 0 {
			edit.Count = strconv.Itoa(count)
		}
		action, ok := fields["replacement"]
		if !ok {
			action = fields["new_text"]
		}
		edit.Action = fieldString(action)
		return edit
	}

	edit.From = fieldString(fields["from"])
	edit.To = fieldString(fields["to"])
	edit.Action = fieldString(fields["new_text"])
	edit.Inclusive = fieldBool(fields["inclusive"], true)
	return edit
}

// ParseVisualPayload validates a grouped editor submission of the form
// {"tasks": [...]} and flattens it into a Document. Unlike GroupTasks
// this path is strict: every task needs a file and at least one edit,
// anchor rows need non-empty from and to markers, and regex rows need a
// pattern that compiles. Nothing is persisted here; callers save the
// returned document only when the whole payload validated.
func ParseVisualPayload(payload []byte) (int, *Document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(payload, &top); err != nil {
		return 0, nil, validationf("editor payload is not a valid JSON object: %v", err)
	}

	var rawTasks []json.RawMessage
	if raw, ok := top["tasks"]; ok && !isJSONNull(raw) {
		if err := json.Unmarshal(raw, &rawTasks); err != nil {
			return 0, nil, validationf("the tasks field must be an array")
		}
	}

	doc := &Document{}
	for ti, rawTask := range rawTasks {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(rawTask, &fields); err != nil {
			return 0, nil, validationf("task %d must be an object", ti+1)
		}

		file := strings.TrimSpace(fieldString(fields["file"]))
		if file == "" {
			return 0, nil, validationf("task %d is missing its target file", ti+1)
		}

		var rawEdits []json.RawMessage
		if raw, ok := fields["edits"]; ok && !isJSONNull(raw) {
			if err := json.Unmarshal(raw, &rawEdits); err != nil {
				return 0, nil, validationf("task %d: edits must be an array", ti+1)
			}
		}
		if len(rawEdits) == 0 {
			return 0, nil, validationf("task %d (%s) has no edits", ti+1, file)
		}

		for ei, rawEdit := range rawEdits {
			rule, err := parseVisualEdit(ti+1, ei+1, file, rawEdit)
			if err != nil {
				return 0, nil, err
			}
			doc.Edits = append(doc.Edits, rule)
		}
	}

	if len(doc.Edits) == 0 {
		return 0, nil, validationf("at least one edit is required")
	}
	return len(rawTasks), doc, nil
}

// parseVisualEdit validates one editor row into a Rule. ti and ei are
// 1-based for messages.
func parseVisualEdit(ti, ei int, file string, raw json.RawMessage) (Rule, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Rule{}, validationf("task %d edit %d must be an object", ti, ei)
	}

	mode := strings.ToLower(strings.TrimSpace(fieldString(fields["mode"])))
	switch mode {
	case "":
		mode = ModeAnchor
	case "re", "regexp":
		mode = ModeRegex
	case ModeAnchor, ModeRegex:
	default:
		return Rule{}, validationf("task %d edit %d: invalid mode %q", ti, ei, mode)
	}

	lr, err := visualLineRange(fields)
	if err != nil {
		return Rule{}, validationf("task %d edit %d: %v", ti, ei, err)
	}

	if mode == ModeRegex {
		pattern := strings.TrimSpace(fieldString(fields["pattern"]))
		if pattern == "" {
			return Rule{}, validationf("task %d edit %d: regex edit is missing its pattern", ti, ei)
		}

		flags := strings.TrimSpace(fieldString(fields["regex_flags"]))
		if _, err := CompilePattern(pattern, flags); err != nil {
			return Rule{}, validationf("task %d edit %d: %v", ti, ei, err)
		}

		count := 0
		if s := strings.TrimSpace(fieldString(fields["regex_count"])); s != "" {
			count, err = strconv.Atoi(s)
			if err != nil {
				return Rule{}, validationf("task %d edit %d: regex_count must be an integer", ti, ei)
			}
		}
		if count < 0 {
			return Rule{}, validationf("task %d edit %d: regex_count must not be negative", ti, ei)
		}

		return Rule{
			File:        file,
			Mode:        ModeRegex,
			Range:       lr,
			Pattern:     pattern,
			Replacement: fieldString(fields["action"]),
			Flags:       flags,
			MaxCount:    count,
		}, nil
	}

	from := fieldString(fields["from"])
	to := fieldString(fields["to"])
	if from == "" || to == "" {
		return Rule{}, validationf("task %d edit %d: anchor edit needs both from and to markers", ti, ei)
	}

	return Rule{
		File:      file,
		Mode:      ModeAnchor,
		Range:     lr,
		From:      from,
		To:        to,
		New:       fieldString(fields["action"]),
		Inclusive: fieldBool(fields["inclusive"], true),
	}, nil
}

// visualLineRange reads the paired line_start/line_end form fields. Both
// must be set or both empty.
func visualLineRange(fields map[string]json.RawMessage) (*LineRange, error) {
	startText := strings.TrimSpace(fieldString(fields["line_start"]))
	endText := strings.TrimSpace(fieldString(fields["line_end"]))

	if startText == "" && endText == "" {
		return nil, nil
	}
	if startText == "" || endText == "" {
		return nil, validationf("line_start and line_end must be set together")
	}

	start, err := strconv.Atoi(startText)
	if err != nil {
		return nil, validationf("line_start must be an integer")
	}
	end, err := strconv.Atoi(endText)
	if err != nil {
		return nil, validationf("line_end must be an integer")
	}
	return &LineRange{Start: start, End: end}, nil
}
