// Package rules implements the batch text-edit engine: an ordered task
// document of anchor and regex rules applied to files under a base
// directory, with template variables, dry-run, and backup semantics.
package rules

import "encoding/json"

// Rule modes.
const (
	ModeAnchor = "anchor"
	ModeRegex  = "regex"
)

// LineRange restricts a rule to a 1-based inclusive span of lines.
type LineRange struct {
	Start int
	End   int
}

// Rule is one addressable mutation against one target file. Exactly one
// mode is in effect; the other mode's fields are zero and ignored.
type Rule struct {
	File  string
	Mode  string
	Range *LineRange

	// Anchor mode.
	From      string
	To        string
	New       string
	Inclusive bool

	// Regex mode.
	Pattern     string
	Replacement string
	Flags       string
	MaxCount    int
}

// Document is the persisted ordered rule list. Unknown top-level keys of
// the source JSON are preserved across a save.
type Document struct {
	Edits []Rule

	extra map[string]json.RawMessage
}

// anchorJSON and regexJSON are the canonical on-disk rule shapes.
type anchorJSON struct {
	File      string `json:"file"`
	Mode      string `json:"mode"`
	LineRange []int  `json:"line_range,omitempty"`
	From      string `json:"from"`
	To        string `json:"to"`
	New       string `json:"new_text"`
	Inclusive bool   `json:"inclusive"`
}

type regexJSON struct {
	File        string `json:"file"`
	Mode        string `json:"mode"`
	LineRange   []int  `json:"line_range,omitempty"`
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Flags       string `json:"regex_flags"`
	MaxCount    int    `json:"regex_count"`
}

// MarshalJSON writes the rule in its canonical persisted form.
func (r Rule) MarshalJSON() ([]byte, error) {
	var lr []int
	if r.Range != nil {
		lr = []int{r.Range.Start, r.Range.End}
	}

	if r.Mode == ModeRegex {
		return json.Marshal(regexJSON{
			File:        r.File,
			Mode:        ModeRegex,
			LineRange:   lr,
			Pattern:     r.Pattern,
			Replacement: r.Replacement,
			Flags:       r.Flags,
			MaxCount:    r.MaxCount,
		})
	}

	return json.Marshal(anchorJSON{
		File:      r.File,
		Mode:      ModeAnchor,
		LineRange: lr,
		From:      r.From,
		To:        r.To,
		New:       r.New,
		Inclusive: r.Inclusive,
	})
}
