package config

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/goliatone/go-callverify/core"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

const (
	DefaultEnvPrefix = "CALLVERIFY_"
	propertyPrefix   = "HUBSPOT_PROPERTY_"
)

// legacyEnv maps the variable names used by existing deployments. Prefixed
// names win when both are set.
var legacyEnv = map[string]string{
	"WEBHOOK_SECRET":         "webhook.secret",
	"HUBSPOT_ACCESS_TOKEN":   "hubspot.access_token",
	"GOOGLE_SHEET_ID":        "sheets.spreadsheet_id",
	"GOOGLE_SHEET_NAME":      "sheets.sheet_name",
	"GOOGLE_SERVICE_ACCOUNT": "sheets.service_account_json",
	"LIVEKIT_URL":            "livekit.url",
	"LIVEKIT_API_KEY":        "livekit.api_key",
	"LIVEKIT_API_SECRET":     "livekit.api_secret",
	"DATABASE_URL":           "database.dsn",
}

// EnvLoader reads the process environment, falling back to values from
// Files. Process variables win over .env values, matching godotenv.Load.
//
// Every known key is addressable as CALLVERIFY_<SECTION>_<KEY>, for example
// CALLVERIFY_WEBHOOK_DEDUPE_TTL. CALLVERIFY_HUBSPOT_PROPERTY_<FIELD> sets one
// entry of hubspot.properties.
type EnvLoader struct {
	Prefix string
	Files  []string
	// Lookup defaults to os.LookupEnv.
	Lookup func(key string) (string, bool)
}

func NewEnvLoader(files ...string) EnvLoader {
	return EnvLoader{Prefix: DefaultEnvPrefix, Files: files}
}

func (l EnvLoader) LoadRaw(context.Context) (map[string]any, error) {
	fileValues, err := l.readFiles()
	if err != nil {
		return nil, err
	}
	lookup := l.lookup(fileValues)
	prefix := l.Prefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	raw := map[string]any{}
	legacyNames := make([]string, 0, len(legacyEnv))
	for name := range legacyEnv {
		legacyNames = append(legacyNames, name)
	}
	sort.Strings(legacyNames)
	for _, name := range legacyNames {
		if value, ok := lookup(name); ok && strings.TrimSpace(value) != "" {
			if err := setPath(raw, legacyEnv[name], value, name); err != nil {
				return nil, err
			}
		}
	}
	if port, ok := lookup("PORT"); ok && strings.TrimSpace(port) != "" {
		port = strings.TrimSpace(port)
		if !strings.Contains(port, ":") {
			port = ":" + port
		}
		if err := setPath(raw, "http.addr", port, "PORT"); err != nil {
			return nil, err
		}
	}

	paths := make([]string, 0, len(knownKeys))
	for path := range knownKeys {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		name := EnvName(prefix, path)
		if value, ok := lookup(name); ok {
			if err := setPath(raw, path, value, name); err != nil {
				return nil, err
			}
		}
	}

	for name, value := range l.environ(fileValues) {
		if !strings.HasPrefix(name, prefix+propertyPrefix) {
			continue
		}
		field := strings.ToLower(strings.TrimPrefix(name, prefix+propertyPrefix))
		if field == "" || strings.TrimSpace(value) == "" {
			continue
		}
		if err := setPath(raw, "hubspot.properties."+field, strings.TrimSpace(value), name); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

// EnvName returns the variable name for a dotted config path.
func EnvName(prefix string, path string) string {
	return prefix + strings.ToUpper(strings.ReplaceAll(path, ".", "_"))
}

func (l EnvLoader) readFiles() (map[string]string, error) {
	values := map[string]string{}
	for _, file := range l.Files {
		file = strings.TrimSpace(file)
		if file == "" {
			continue
		}
		parsed, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			rich := goerrors.Wrap(err, goerrors.CategoryValidation, "config: failed to read env file").
				WithCode(http.StatusBadRequest).
				WithTextCode(core.ErrorBadInput).
				WithMetadata(map[string]any{"path": file})
			rich.Category = goerrors.CategoryValidation
			return nil, rich
		}
		// Earlier files win, like godotenv.Load with several paths.
		for key, value := range parsed {
			if _, exists := values[key]; !exists {
				values[key] = value
			}
		}
	}
	return values, nil
}

func (l EnvLoader) lookup(fileValues map[string]string) func(string) (string, bool) {
	base := l.Lookup
	if base == nil {
		base = os.LookupEnv
	}
	return func(key string) (string, bool) {
		if value, ok := base(key); ok {
			return value, true
		}
		value, ok := fileValues[key]
		return value, ok
	}
}

// environ lists candidate variable names for prefix scans. With a custom
// Lookup only the .env files can be enumerated.
func (l EnvLoader) environ(fileValues map[string]string) map[string]string {
	lookup := l.lookup(fileValues)
	out := map[string]string{}
	for key := range fileValues {
		if value, ok := lookup(key); ok {
			out[key] = value
		}
	}
	if l.Lookup == nil {
		for _, entry := range os.Environ() {
			key, value, found := strings.Cut(entry, "=")
			if found {
				out[key] = value
			}
		}
	}
	return out
}

var _ core.RawConfigLoader = EnvLoader{}
