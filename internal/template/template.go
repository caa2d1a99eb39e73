// Package template expands {{variable}} placeholders in the output formats
// accepted by the nope CLI.
package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/colebrumley/nope/internal/sanitize"
)

var templateVar = regexp.MustCompile(`\{\{(\w+)\}\}`)

// DefaultFormat prints only the cleaned URL.
const DefaultFormat = "{{cleaned_url}}"

// Expand replaces {{variable}} placeholders with values from data. Unknown
// placeholders are left as written.
func Expand(tmpl string, data map[string]any) string {
	return templateVar.ReplaceAllStringFunc(tmpl, func(match string) string {
		varName := match[2 : len(match)-2]

		if val, ok := data[varName]; ok {
			return fmt.Sprintf("%v", val)
		}
		return match
	})
}

// ResultVars returns the variables available to a -format template.
func ResultVars(r sanitize.Result) map[string]any {
	return map[string]any{
		"cleaned_url":   r.CleanedURL,
		"original_url":  r.OriginalURL,
		"removed_count": len(r.Removed),
		"removed_keys":  strings.Join(r.RemovedKeys(), ","),
		"changed":       r.Changed(),
	}
}

var escapes = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\\`, `\`)

// Format expands tmpl for r, interpreting \n and \t escapes so formats can be
// passed on a shell command line. An empty tmpl uses DefaultFormat.
func Format(tmpl string, r sanitize.Result) string {
	if tmpl == "" {
		tmpl = DefaultFormat
	}
	return Expand(escapes.Replace(tmpl), ResultVars(r))
}
