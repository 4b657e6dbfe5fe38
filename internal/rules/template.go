package rules

import "regexp"

// templateToken matches {{ identifier }} placeholders in rule text.
var templateToken = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Template variable names resolved against the live enabled resolution.
const (
	VarEnabledWidth   = "enabled_width"
	VarEnabledHeight  = "enabled_height"
	VarEnabledRefresh = "enabled_refresh"
)

// ExpandTemplate substitutes whitelisted {{name}} tokens in text using
// vars. Tokens naming an unknown variable are left verbatim.
func ExpandTemplate(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}

	return templateToken.ReplaceAllStringFunc(text, func(token string) string {
		name := templateToken.FindStringSubmatch(token)[1]
		if value, ok := vars[name]; ok {
			return value
		}
		return token
	})
}

// ExpandRule returns a copy of rule with its string fields template
// resolved. Structural fields (mode, range, flags, counts) never carry
// templates.
func ExpandRule(rule Rule, vars map[string]string) Rule {
	if len(vars) == 0 {
		return rule
	}

	out := rule
	out.File = ExpandTemplate(rule.File, vars)
	out.From = ExpandTemplate(rule.From, vars)
	out.To = ExpandTemplate(rule.To, vars)
	out.New = ExpandTemplate(rule.New, vars)
	out.Pattern = ExpandTemplate(rule.Pattern, vars)
	out.Replacement = ExpandTemplate(rule.Replacement, vars)
	return out
}
