package rules

import (
	"regexp"
	"strings"
)

// CompilePattern compiles a rule pattern under its flag letters.
//
// Flags map onto the engine as i (case-insensitive), m (multiline
// anchors), and s (dot matches newline) inline flags; x (verbose) is
// handled by stripping unescaped whitespace and comments from the pattern
// before compiling, since the engine has no free-spacing mode of its own.
// Separator characters (space, tab, comma, pipe) between flag letters are
// ignored; any other letter is rejected.
func CompilePattern(pattern, flagLetters string) (*regexp.Regexp, error) {
	var prefix strings.Builder
	verbose := false

	for _, c := range strings.ToLower(flagLetters) {
		switch c {
		case ' ', '\t', ',', '|':
			continue
		case 'i':
			prefix.WriteString("(?i)")
		case 'm':
			prefix.WriteString("(?m)")
		case 's':
			prefix.WriteString("(?s)")
		case 'x':
			verbose = true
		default:
			return nil, validationf("unsupported regex flag %q", string(c))
		}
	}

	if verbose {
		pattern = stripVerbose(pattern)
	}

	re, err := regexp.Compile(prefix.String() + pattern)
	if err != nil {
		return nil, validationf("invalid regex pattern: %v", err)
	}
	return re, nil
}

// stripVerbose removes insignificant whitespace and # comments from a
// free-spacing pattern. Whitespace inside character classes and escaped
// whitespace are kept.
func stripVerbose(pattern string) string {
	var b strings.Builder
	inClass := false
	escaped := false
	comment := false

	for _, c := range pattern {
		if comment {
			if c == '\n' {
				comment = false
			}
			continue
		}

		if escaped {
			b.WriteRune(c)
			escaped = false
			continue
		}

		switch {
		case c == '\\':
			b.WriteRune(c)
			escaped = true
		case c == '[' && !inClass:
			inClass = true
			b.WriteRune(c)
		case c == ']' && inClass:
			inClass = false
			b.WriteRune(c)
		case !inClass && c == '#':
			comment = true
		case !inClass && (c == ' ' || c == '\t' || c == '\n' || c == '\r'):
			// dropped
		default:
			b.WriteRune(c)
		}
	}

	return b.String()
}

// replaceAll substitutes up to max non-overlapping matches of re in text
// with the expanded replacement template (0 means unlimited). It returns
// the result and the number of substitutions performed.
func replaceAll(re *regexp.Regexp, text, replacement string, max int) (string, int) {
	limit := max
	if limit <= 0 {
		limit = -1
	}

	matches := re.FindAllStringSubmatchIndex(text, limit)
	if len(matches) == 0 {
		return text, 0
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m[0]])
		b.Write(re.ExpandString(nil, replacement, text, m))
		last = m[1]
	}
	b.WriteString(text[last:])

	return b.String(), len(matches)
}
