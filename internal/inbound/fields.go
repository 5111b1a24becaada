package inbound

import (
	"encoding/json"
	"strings"
)

// fields is a permissive view over a decoded JSON object. Every accessor
// degrades to a zero value when the key is absent or has the wrong type.
type fields map[string]any

func asFields(v any) fields {
	m, _ := v.(map[string]any)
	return fields(m)
}

func (f fields) has(key string) bool {
	if f == nil {
		return false
	}
	_, ok := f[key]
	return ok
}

func (f fields) obj(key string) fields {
	if f == nil {
		return nil
	}
	return asFields(f[key])
}

func (f fields) list(key string) []any {
	if f == nil {
		return nil
	}
	l, _ := f[key].([]any)
	return l
}

// str returns the first key holding a non-blank scalar, rendered as text.
// Numbers are accepted because some providers send phone numbers unquoted.
func (f fields) str(keys ...string) string {
	if f == nil {
		return ""
	}
	for _, key := range keys {
		if s := scalarString(f[key]); s != "" {
			return s
		}
	}
	return ""
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return formatFloat(t)
	default:
		return ""
	}
}
