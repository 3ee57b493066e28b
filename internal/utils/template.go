package utils

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

var funcMap = template.FuncMap{
	"json":  ToJSON,
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	"trim":  strings.TrimSpace,
	"join":  joinAny,
}

// ParseTemplate parses an inline template with the shared helper functions.
// Missing map keys render as empty strings.
func ParseTemplate(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(funcMap).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	return tmpl, nil
}

// RenderTemplate executes tmpl and trims surrounding whitespace. A nil
// template renders as "".
func RenderTemplate(tmpl *template.Template, data any) (string, error) {
	if tmpl == nil {
		return "", nil
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("template %s execution error: %w", tmpl.Name(), err)
	}

	return strings.TrimSpace(strings.ReplaceAll(sb.String(), "<no value>", "")), nil
}

// ToJSON converts a value to a JSON string
func ToJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}

func joinAny(sep string, v any) string {
	items, ok := v.([]any)
	if !ok {
		return fmt.Sprint(v)
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprint(item))
	}
	return strings.Join(parts, sep)
}
