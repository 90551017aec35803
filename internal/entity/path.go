// Package entity manipulates decoded entry data addressed by dot paths such as "blocks.0.title".
package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// Format tells a provider how a field's text is marked up.
type Format string

const (
	FormatPlain    Format = "plain"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// Field is one translatable value inside an entry.
type Field struct {
	Path   string
	Format Format
}

func SplitPath(path string) []string {
	trimmed := strings.Trim(strings.TrimSpace(path), ".")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, ".")
}

func JoinPath(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			nonEmpty = append(nonEmpty, part)
		}
	}
	return strings.Join(nonEmpty, ".")
}

// Get resolves path against nested maps and slices.
func Get(data map[string]any, path string) (any, bool) {
	parts := SplitPath(path)
	if len(parts) == 0 {
		return nil, false
	}
	var current any = data
	for _, part := range parts {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			index, err := strconv.Atoi(part)
			if err != nil || index < 0 || index >= len(node) {
				return nil, false
			}
			current = node[index]
		default:
			return nil, false
		}
	}
	return current, true
}

// GetString returns the string at path, false for missing or non-string values.
func GetString(data map[string]any, path string) (string, bool) {
	value, ok := Get(data, path)
	if !ok {
		return "", false
	}
	text, ok := value.(string)
	return text, ok
}

// Set replaces the value at an existing path. Intermediate nodes are never created.
func Set(data map[string]any, path string, value any) error {
	parts := SplitPath(path)
	if len(parts) == 0 {
		return fmt.Errorf("empty path")
	}
	parent, ok := Get(data, strings.Join(parts[:len(parts)-1], "."))
	if len(parts) == 1 {
		parent, ok = data, true
	}
	if !ok {
		return fmt.Errorf("path %q: parent not found", path)
	}

	last := parts[len(parts)-1]
	switch node := parent.(type) {
	case map[string]any:
		node[last] = value
		return nil
	case []any:
		index, err := strconv.Atoi(last)
		if err != nil || index < 0 || index >= len(node) {
			return fmt.Errorf("path %q: index %q out of range", path, last)
		}
		node[index] = value
		return nil
	default:
		return fmt.Errorf("path %q: parent is %T", path, parent)
	}
}

// Clone deep-copies maps and slices; other values are shared.
func Clone(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	return cloneValue(data).(map[string]any)
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return value
	}
}

// AsInt64 converts decoded JSON ids (float64, json.Number, ints, numeric strings).
func AsInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case int:
		return int64(typed), true
	case int64:
		return typed, true
	case float64:
		if typed != float64(int64(typed)) {
			return 0, false
		}
		return int64(typed), true
	case interface{ Int64() (int64, error) }:
		id, err := typed.Int64()
		return id, err == nil
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		return id, err == nil
	case map[string]any:
		return AsInt64(typed["id"])
	default:
		return 0, false
	}
}
