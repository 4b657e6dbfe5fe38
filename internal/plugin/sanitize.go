package plugin

import (
	"strings"
	"unicode"
)

// FallbackID is assigned when neither the script nor its directory name
// yields any usable identifier characters.
const FallbackID = "plugin"

// SanitizeID normalizes a raw plugin identifier into its canonical form:
// trimmed, lowercased, with whitespace runs and disallowed characters
// folded to single hyphens. Letters, digits, underscore, hyphen, and CJK
// ideographs survive. An identifier with nothing else left collapses to
// the empty string; callers fall back to the directory name and finally
// to FallbackID.
func SanitizeID(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))

	var b strings.Builder
	lastHyphen := false
	for _, r := range s {
		ok := r == '_' || r == '-' ||
			(r >= '0' && r <= '9') ||
			(r >= 'a' && r <= 'z') ||
			(r >= 0x4e00 && r <= 0x9fff)

		if unicode.IsSpace(r) || !ok {
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
			continue
		}
		if r == '-' {
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
			continue
		}
		b.WriteRune(r)
		lastHyphen = false
	}

	return strings.Trim(b.String(), "-")
}
