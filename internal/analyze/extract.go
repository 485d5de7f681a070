package analyze

import (
	"encoding/json"
	"strings"
)

// ExtractSensor normalizes the serialized sensor_types field down to a single
// category label. The field is usually a JSON array of strings (often a
// singleton); only the first element is semantically meaningful. Decode
// failures fall back to a heuristic bracket/quote strip rather than an error:
// a row that cannot be salvaged reports ok=false and is skipped by the caller.
func ExtractSensor(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = stripQuotes(s)
	if s == "" {
		return "", false
	}

	var list []any
	if err := json.Unmarshal([]byte(s), &list); err == nil {
		for _, item := range list {
			if label, ok := item.(string); ok {
				if label = strings.TrimSpace(stripQuotes(label)); label != "" {
					return label, true
				}
			}
		}
		// Decoded to an empty list, or to non-string elements.
		return "", false
	}

	// A bare JSON scalar ("EDR" or 42) is treated as the label itself.
	var scalar any
	if err := json.Unmarshal([]byte(s), &scalar); err == nil {
		if label, ok := scalar.(string); ok {
			if label = strings.TrimSpace(label); label != "" {
				return label, true
			}
			return "", false
		}
	}

	// Not valid JSON. If it is bracket-delimited, split it by hand and take
	// the first non-empty item.
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		for _, item := range strings.Split(s[1:len(s)-1], ",") {
			item = strings.Trim(strings.TrimSpace(item), `"'`)
			if item != "" {
				return item, true
			}
		}
		return "", false
	}

	return s, true
}

// CleanField trims whitespace and one layer of surrounding double quotes from
// a plain categorical field. Empty values report ok=false.
func CleanField(raw string) (string, bool) {
	s := stripQuotes(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}
	return s, true
}

func stripQuotes(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}
