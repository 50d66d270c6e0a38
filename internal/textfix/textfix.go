// Package textfix repairs chat-export text that was written as UTF-8 bytes
// but decoded as Latin-1, the usual state of Facebook and Instagram exports
// ("Ä\u0091i" instead of "đi").
package textfix

import (
	"regexp"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// mojibake matches a UTF-8 lead byte followed by continuation bytes, each
// seen as a single Latin-1 rune.
var mojibake = regexp.MustCompile(`[\x{C2}-\x{F4}][\x{80}-\x{BF}]+`)

// Repair re-decodes every mis-encoded span of s as UTF-8. Spans that do not
// form valid UTF-8 are left unchanged.
func Repair(s string) string {
	if s == "" {
		return s
	}
	return mojibake.ReplaceAllStringFunc(s, repairSpan)
}

func repairSpan(span string) string {
	raw, err := charmap.ISO8859_1.NewEncoder().String(span)
	if err != nil || !utf8.ValidString(raw) {
		return span
	}
	return raw
}

// RepairValue walks a decoded JSON value and repairs every string in it.
// Map keys are kept as they are.
func RepairValue(v any) any {
	switch t := v.(type) {
	case string:
		return Repair(t)
	case []any:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = RepairValue(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, elem := range t {
			out[k] = RepairValue(elem)
		}
		return out
	default:
		return v
	}
}
