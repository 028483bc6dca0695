// Package redact masks sensitive fields in arbitrary JSON-shaped values
// before they are persisted to activity records or audit events.
package redact

import (
	"strings"

	platformstrings "sentra/pkg/platform/strings"
)

// Mask replaces values of sensitive keys.
const Mask = "***MASKED***"

// TooDeep replaces substructures nested beyond MaxDepth. Bounding the
// recursion keeps pathological or cyclic input from causing unbounded work.
const TooDeep = "***TOO_DEEP***"

// MaxDepth is the maximum nesting level the redactor descends into.
const MaxDepth = 10

// DefaultKeys is the sensitive keyset, matched case-insensitively against
// map keys at any depth.
var DefaultKeys = map[string]struct{}{
	"password":      {},
	"token":         {},
	"secret":        {},
	"api_key":       {},
	"apikey":        {},
	"credential":    {},
	"credentials":   {},
	"authorization": {},
	"access_token":  {},
	"refresh_token": {},
	"session_token": {},
	"private_key":   {},
}

// Keyset builds a lookup set from key names, normalizing case and
// whitespace so configured keys match the way DefaultKeys entries do.
func Keyset(names ...string) map[string]struct{} {
	normalized := platformstrings.DedupeAndTrimLower(names)
	keys := make(map[string]struct{}, len(normalized))
	for _, n := range normalized {
		keys[n] = struct{}{}
	}
	return keys
}

// Value masks sensitive fields using the default keyset.
func Value(v any) any {
	return ValueWithKeys(v, DefaultKeys)
}

// ValueWithKeys masks every map value whose lowercased key is in keys,
// recursing into nested maps and lists up to MaxDepth. The input is never
// mutated: the caller may still hold the original for the business handler,
// so the output is a structurally new value.
func ValueWithKeys(v any, keys map[string]struct{}) any {
	return redact(v, keys, 0)
}

func redact(v any, keys map[string]struct{}, depth int) any {
	if depth >= MaxDepth {
		switch v.(type) {
		case map[string]any, []any:
			return TooDeep
		}
		return v
	}

	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if _, sensitive := keys[strings.ToLower(k)]; sensitive {
				out[k] = Mask
				continue
			}
			out[k] = redact(inner, keys, depth+1)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = redact(inner, keys, depth+1)
		}
		return out
	default:
		return v
	}
}
