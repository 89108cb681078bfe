package core

import "strings"

const RedactedValue = "[REDACTED]"

// credentialMarkers are masked whatever the value type.
var credentialMarkers = []string{"password", "secret", "token", "authorization", "api_key", "signature"}

// contactMarkers are masked only when the value could carry the detail
// itself, so flags such as email_verified stay readable.
var contactMarkers = []string{"phone", "email", "address"}

// traceKeys tie a log line back to a call and are never masked.
var traceKeys = map[string]struct{}{
	"call_id":       {},
	"room_name":     {},
	"step":          {},
	"function_name": {},
	"target_kind":   {},
	"contact_id":    {},
	"row_number":    {},
	"delivery_id":   {},
	"request_id":    {},
}

// RedactParameters masks credentials and contact PII before parameters reach
// a log line. The input is never modified.
func RedactParameters(params map[string]any) map[string]any {
	if len(params) == 0 {
		return map[string]any{}
	}
	return redactMap(params)
}

func redactMap(source map[string]any) map[string]any {
	out := make(map[string]any, len(source))
	for key, value := range source {
		if masked(key, value) {
			out[key] = RedactedValue
		} else {
			out[key] = redactNested(value)
		}
	}
	return out
}

func redactNested(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return redactMap(v)
	case StepParameters:
		return redactMap(v)
	case []any:
		items := make([]any, 0, len(v))
		for _, item := range v {
			items = append(items, redactNested(item))
		}
		return items
	}
	return value
}

func masked(key string, value any) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	if _, ok := traceKeys[key]; ok {
		return false
	}
	if containsAny(key, credentialMarkers) {
		return true
	}
	if !containsAny(key, contactMarkers) {
		return false
	}
	switch value.(type) {
	case bool, int, int64, float64, nil:
		return false
	}
	return true
}

func containsAny(key string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}
