package googlesheets

import (
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeHeader lowercases value and turns whitespace runs into "_".
func NormalizeHeader(value string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "_")
}

// FindColumnIndex returns the zero-based column for key, or -1. An exact
// normalized match wins; otherwise the first header that contains key or is
// contained in it. Empty headers never match.
func FindColumnIndex(headers []string, key string) int {
	normalizedKey := NormalizeHeader(key)
	if normalizedKey == "" {
		return -1
	}
	normalized := make([]string, len(headers))
	for i, header := range headers {
		normalized[i] = NormalizeHeader(header)
		if normalized[i] == normalizedKey {
			return i
		}
	}
	for i, header := range normalized {
		if header == "" {
			continue
		}
		if strings.Contains(header, normalizedKey) || strings.Contains(normalizedKey, header) {
			return i
		}
	}
	return -1
}

// ColumnLetter converts a zero-based index to its A1 column name (0 is A,
// 26 is AA). Negative indexes yield "".
func ColumnLetter(index int) string {
	if index < 0 {
		return ""
	}
	var out []byte
	for index >= 0 {
		out = append([]byte{byte('A' + index%26)}, out...)
		index = index/26 - 1
	}
	return string(out)
}

// sheetRef quotes a sheet name for A1 notation when it is not a bare word.
func sheetRef(name string) string {
	for _, r := range name {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return "'" + strings.ReplaceAll(name, "'", "''") + "'"
		}
	}
	return name
}
