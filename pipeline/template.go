package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/workflowai/gateway/adapter"
)

// placeholderPattern matches Jinja-style `{{ name }}` placeholders. Only bare
// variable references are supported (no filters/expressions): the prompt
// templates this gateway renders are simple variable substitutions, not a
// general templating language (§4.2).
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Render expands every `{{var}}` placeholder in tmpl using vars, and reports
// which variable names were actually used. An undefined variable is a hard
// error: *adapter.Error{Kind: KindInvalidTemplate} with line/col pointing at
// the unresolved placeholder.
func Render(tmpl string, vars map[string]interface{}) (string, map[string]bool, *adapter.Error) {
	used := map[string]bool{}
	var renderErr *adapter.Error

	out := placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		if renderErr != nil {
			return match
		}
		sub := placeholderPattern.FindStringSubmatch(match)
		name := sub[1]
		val, ok := vars[name]
		if !ok {
			line, col := lineCol(tmpl, strings.Index(tmpl, match))
			renderErr = &adapter.Error{
				Kind:    adapter.KindInvalidTemplate,
				Message: fmt.Sprintf("undefined variable %q", name),
				Details: map[string]interface{}{"line": line, "column": col, "variable": name},
			}
			return match
		}
		used[name] = true
		return stringify(val)
	})

	if renderErr != nil {
		return "", nil, renderErr
	}
	return out, used, nil
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// lineCol converts a byte offset into 1-indexed line/column for error
// reporting, matching the "line/column info" the spec requires on
// invalid_template failures.
func lineCol(s string, offset int) (line, col int) {
	if offset < 0 {
		return 1, 1
	}
	line = 1
	lastNewline := -1
	for i := 0; i < offset && i < len(s); i++ {
		if s[i] == '\n' {
			line++
			lastNewline = i
		}
	}
	col = offset - lastNewline
	return line, col
}

// HasPlaceholders reports whether tmpl contains any `{{var}}` reference.
func HasPlaceholders(tmpl string) bool {
	return placeholderPattern.MatchString(tmpl)
}
