package agents

import (
	"strings"
	"text/template"
	"time"
	"unicode/utf8"
)

// templateFuncs are the helpers available inside prompt templates.
//
//	{{truncate .Text 300}}  {{first 5 .Items}}  {{join ", " .Items}}  {{orDefault "不明" .Address}}
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"truncate": truncate,
		"first":    first,
		"join": func(sep string, items []string) string {
			return strings.Join(items, sep)
		},
		// orDefault substitutes def for a blank string.
		"orDefault": func(def, s string) string {
			if strings.TrimSpace(s) == "" {
				return def
			}
			return s
		},
	}
}

// truncate keeps the first n runes and marks the cut with "...".
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// first returns at most n leading items.
func first(n int, items []string) []string {
	if n < 0 {
		n = 0
	}
	if len(items) <= n {
		return items
	}
	return items[:n]
}

// jaDate formats t the way Japanese locale dates read, e.g. 2026/1/5.
func jaDate(t time.Time) string {
	return t.Format("2006/1/2")
}

// addressArea returns the second whitespace-separated token of a formatted
// address, which for Japanese addresses is usually the ward or city.
func addressArea(addr string) string {
	fields := strings.Fields(addr)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}
