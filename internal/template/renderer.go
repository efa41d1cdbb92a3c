// Package template substitutes {{name}} placeholders in stored notification
// content. The placeholder grammar is deliberately flat: tenant-authored
// content must not be able to reach pipeline syntax, so text/template is not
// used here.
package template

import "strings"

// Render replaces every {{key}} occurrence in content with vars[key].
// Placeholders without a matching variable are left verbatim so a missing
// variable is visible in the delivered message instead of silently vanishing.
func Render(content string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(content, "{{") {
		return content
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(content)
}
