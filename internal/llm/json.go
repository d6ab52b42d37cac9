package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedJSONBlock = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// controlCharClass matches U+0000-U+001F and U+007F-U+009F. Built from rune literals rather
// than string escapes to keep the byte ranges unambiguous.
func controlCharClass() string {
	return "[" + string(rune(0x00)) + "-" + string(rune(0x1F)) + string(rune(0x7F)) + "-" + string(rune(0x9F)) + "]"
}

var controlCharStripper = regexp.MustCompile(controlCharClass())

// extractJSONSpan pulls the model's JSON object out of raw text: a fenced
// ```json block wins if present, otherwise the first balanced {...} span
// is used; control characters are stripped either way.
func extractJSONSpan(raw string) (string, bool) {
	if m := fencedJSONBlock.FindStringSubmatch(raw); m != nil {
		return controlCharStripper.ReplaceAllString(m[1], ""), true
	}

	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return controlCharStripper.ReplaceAllString(raw[start:i+1], ""), true
			}
		}
	}
	return "", false
}

func parseJSONObject(span string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(span), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// validateAgainstSchema is a pragmatic JSON-Schema subset validator: it
// checks the declared "required" top-level keys are present and, when
// "properties" declares a "type", that the value's JSON-decoded Go type
// matches (object/array/string/number/boolean). It is intentionally not a
// full schema engine: the call contract only needs
// enough validation to decide "call failure" vs "success".
func validateAgainstSchema(obj map[string]any, schema map[string]any) bool {
	if schema == nil {
		return true
	}
	if required, ok := schema["required"].([]string); ok {
		for _, key := range required {
			if _, present := obj[key]; !present {
				return false
			}
		}
	} else if requiredAny, ok := schema["required"].([]any); ok {
		for _, keyAny := range requiredAny {
			key, ok := keyAny.(string)
			if !ok {
				continue
			}
			if _, present := obj[key]; !present {
				return false
			}
		}
	}

	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		return true
	}
	for key, propAny := range properties {
		prop, ok := propAny.(map[string]any)
		if !ok {
			continue
		}
		wantType, ok := prop["type"].(string)
		if !ok {
			continue
		}
		value, present := obj[key]
		if !present {
			continue
		}
		if !jsonTypeMatches(value, wantType) {
			return false
		}
	}
	return true
}

func jsonTypeMatches(value any, wantType string) bool {
	switch wantType {
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "string":
		_, ok := value.(string)
		return ok
	case "number", "integer":
		_, ok := value.(float64)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	default:
		return true
	}
}
