package usecase

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	codeBlockRe   = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	firstObjectRe = regexp.MustCompile(`(?s)\{.*?\}`)
)

// jsonStrategy tries to recover a JSON object from model text
type jsonStrategy struct {
	name  string
	apply func(text string) (map[string]any, bool)
}

// Tried in order; the first success wins.
var jsonStrategies = []jsonStrategy{
	{"whole", parseWhole},
	{"code_block", parseCodeBlock},
	{"balanced_object", parseBalancedObject},
	{"first_object", parseFirstObject},
}

// ExtractJSON recovers a JSON object from free-form model output.
// It returns nil when no strategy succeeds; callers fall back to defaults.
func ExtractJSON(text string) map[string]any {
	obj, _ := extractJSONWithStrategy(text)
	return obj
}

func extractJSONWithStrategy(text string) (map[string]any, string) {
	for _, s := range jsonStrategies {
		if obj, ok := s.apply(text); ok {
			return obj, s.name
		}
	}
	return nil, ""
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func parseWhole(text string) (map[string]any, bool) {
	return decodeObject(strings.TrimSpace(text))
}

func parseCodeBlock(text string) (map[string]any, bool) {
	m := codeBlockRe.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return decodeObject(strings.TrimSpace(m[1]))
}

// parseBalancedObject takes the first top-level {...} span, honoring nesting and strings
func parseBalancedObject(text string) (map[string]any, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return decodeObject(text[start : i+1])
			}
		}
	}
	return nil, false
}

// parseFirstObject tries each flat {...} span in turn
func parseFirstObject(text string) (map[string]any, bool) {
	for _, m := range firstObjectRe.FindAllString(text, -1) {
		if obj, ok := decodeObject(m); ok {
			return obj, true
		}
	}
	return nil, false
}

// jsonString reads a string field, "" when absent or not a string
func jsonString(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

// jsonIndex reads a non-negative integral number
func jsonIndex(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f < 0 || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}
