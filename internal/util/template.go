package util

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

// templateFuncs are available to every instruction template. Dates are
// YYYY-MM-DD strings as kept in the session state.
var templateFuncs = template.FuncMap{
	"default": func(fallback, v any) any {
		if v == nil || v == "" {
			return fallback
		}

		return v
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"addDays": func(date string, days int) string {
		d, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return date
		}

		return d.AddDate(0, 0, days).Format(time.DateOnly)
	},
	"weekday": func(date string) string {
		d, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return ""
		}

		return d.Weekday().String()
	},
}

// RenderTemplate executes text as a text/template against state. Text
// without actions is returned unchanged.
func RenderTemplate(text string, state map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := template.New("instruction").Funcs(templateFuncs).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse instruction template: %w", err)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, state); err != nil {
		return "", fmt.Errorf("render instruction template: %w", err)
	}

	return sb.String(), nil
}
