package config

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-callverify/core"
	goerrors "github.com/goliatone/go-errors"
)

type valueKind int

const (
	kindString valueKind = iota
	kindDuration
	kindBool
)

// knownKeys lists every dotted config path with its value kind.
var knownKeys = map[string]valueKind{
	"service_name":                kindString,
	"webhook.secret":              kindString,
	"webhook.signature_header":    kindString,
	"webhook.delivery_header":     kindString,
	"webhook.dedupe_ttl":          kindDuration,
	"session.eviction_grace":      kindDuration,
	"hubspot.access_token":        kindString,
	"hubspot.base_url":            kindString,
	"sheets.spreadsheet_id":       kindString,
	"sheets.sheet_name":           kindString,
	"sheets.service_account_json": kindString,
	"sheets.base_url":             kindString,
	"sheets.token_url":            kindString,
	"sheets.header_cache_ttl":     kindDuration,
	"livekit.url":                 kindString,
	"livekit.api_key":             kindString,
	"livekit.api_secret":          kindString,
	"livekit.token_ttl":           kindDuration,
	"http.addr":                   kindString,
	"http.read_timeout":           kindDuration,
	"http.write_timeout":          kindDuration,
	"database.driver":             kindString,
	"database.dsn":                kindString,
	"database.debug":              kindBool,
}

// ParseDuration accepts Go duration strings ("90s", "5m") and bare integers,
// which are read as seconds.
func ParseDuration(value any) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, nil
		}
		if seconds, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return time.Duration(seconds) * time.Second, nil
		}
		return time.ParseDuration(trimmed)
	default:
		return 0, fmt.Errorf("unsupported duration value %T", value)
	}
}

// setPath writes value at a dotted path, converting it to the kind the key
// expects.
func setPath(raw map[string]any, path string, value any, source string) error {
	kind, known := knownKeys[path]
	if known {
		converted, err := convert(kind, value)
		if err != nil {
			return configValueError(path, source, err)
		}
		value = converted
	}
	parts := strings.Split(path, ".")
	node := raw
	for _, part := range parts[:len(parts)-1] {
		next, ok := node[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[part] = next
		}
		node = next
	}
	node[parts[len(parts)-1]] = value
	return nil
}

func convert(kind valueKind, value any) (any, error) {
	switch kind {
	case kindDuration:
		return ParseDuration(value)
	case kindBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(strings.TrimSpace(v))
		default:
			return nil, fmt.Errorf("unsupported bool value %T", value)
		}
	default:
		if s, ok := value.(string); ok {
			return strings.TrimSpace(s), nil
		}
		return fmt.Sprint(value), nil
	}
}

// normalize walks a decoded document and converts the known keys in place.
func normalize(raw map[string]any, prefix string, source string) error {
	for key, value := range raw {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			if path == "hubspot.properties" {
				continue
			}
			if err := normalize(nested, path, source); err != nil {
				return err
			}
			continue
		}
		kind, known := knownKeys[path]
		if !known {
			continue
		}
		converted, err := convert(kind, value)
		if err != nil {
			return configValueError(path, source, err)
		}
		raw[key] = converted
	}
	return nil
}

func configValueError(key string, source string, cause error) error {
	err := goerrors.Wrap(cause, goerrors.CategoryValidation, fmt.Sprintf("config: invalid value for %s", key)).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput).
		WithMetadata(map[string]any{"key": key, "source": source})
	err.Category = goerrors.CategoryValidation
	return err
}
