package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"autobot/internal/logging"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n\\s*```")

// ExtractJSON leniently pulls a JSON object out of model output. It first
// looks for a fenced code block, then tries to parse the whole content.
// Returns nil when no object can be recovered; callers proceed with a
// degraded default rather than aborting.
func ExtractJSON(content string) map[string]interface{} {
	if m := fencedJSON.FindStringSubmatch(content); m != nil {
		var result map[string]interface{}
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &result); err == nil {
			return result
		}
	}

	var result map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &result); err == nil {
		return result
	}

	logging.Get(logging.CategoryLLM).Warn("Failed to extract JSON from content: %s", truncate(content, 100))
	return nil
}

// JSONString reads a string field from an extracted object. Missing or
// non-string values return the fallback.
func JSONString(obj map[string]interface{}, key, fallback string) string {
	if obj == nil {
		return fallback
	}
	if v, ok := obj[key].(string); ok {
		return v
	}
	return fallback
}

// JSONBool reads a bool field from an extracted object.
func JSONBool(obj map[string]interface{}, key string, fallback bool) bool {
	if obj == nil {
		return fallback
	}
	if v, ok := obj[key].(bool); ok {
		return v
	}
	return fallback
}

// JSONStringSlice reads a list of strings from an extracted object. Non-string
// elements are skipped.
func JSONStringSlice(obj map[string]interface{}, key string) []string {
	if obj == nil {
		return nil
	}
	raw, ok := obj[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// JSONStringMap reads a map of string values from an extracted object.
// Non-string values are rendered with their JSON encoding.
func JSONStringMap(obj map[string]interface{}, key string) map[string]string {
	if obj == nil {
		return nil
	}
	raw, ok := obj[key].(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		if data, err := json.Marshal(v); err == nil {
			out[k] = string(data)
		}
	}
	return out
}
