package model

import "strings"

// Template is a message body with optional {placeholder} substitutions.
// Rendering is pure; the template itself is never mutated.
type Template string

// Render substitutes {name} and {phone} from the target and any remaining
// {key} placeholders from vars.
func (t Template) Render(target Target, vars map[string]string) string {
	out := string(t)
	out = strings.ReplaceAll(out, "{name}", target.Name)
	out = strings.ReplaceAll(out, "{phone}", target.Phone)
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
