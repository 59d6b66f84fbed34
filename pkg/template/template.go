// Package template renders node text against the variables collected during a run.
package template

import (
	"fmt"
	"strings"
	"text/template"
)

const noValue = "<no value>"

var funcs = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"title": func(s string) string {
		if s == "" {
			return s
		}

		return strings.ToUpper(s[:1]) + s[1:]
	},
	"default": func(fallback string, value any) any {
		if value == nil || value == "" {
			return fallback
		}

		return value
	},
}

// NeedsTemplating reports whether input contains template actions.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{")
}

// Validate parses input without executing it.
func Validate(input string) error {
	if !NeedsTemplating(input) {
		return nil
	}

	if _, err := parse(input); err != nil {
		return fmt.Errorf("failed to parse template '%s': %w", input, err)
	}

	return nil
}

// Render executes input with variables as its dot. Missing variables render as empty text.
func Render(input string, variables map[string]any) (string, error) {
	if !NeedsTemplating(input) {
		return input, nil
	}

	tmpl, err := parse(input)
	if err != nil {
		return input, fmt.Errorf("failed to parse template '%s': %w", input, err)
	}

	var buf strings.Builder

	if variables == nil {
		variables = map[string]any{}
	}

	if err := tmpl.Execute(&buf, variables); err != nil {
		return input, fmt.Errorf("failed to execute template '%s': %w", input, err)
	}

	return strings.ReplaceAll(buf.String(), noValue, ""), nil
}

func parse(input string) (*template.Template, error) {
	return template.New("node").Option("missingkey=zero").Funcs(funcs).Parse(input)
}
