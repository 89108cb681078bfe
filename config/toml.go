package config

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goliatone/go-callverify/core"
	goerrors "github.com/goliatone/go-errors"
)

// TOMLFileLoader reads a TOML document shaped like core.Config:
//
//	service_name = "callverify"
//	[webhook]
//	secret = "..."
//	dedupe_ttl = "10m"
type TOMLFileLoader struct {
	Path string
	// Optional makes a missing file load as an empty layer.
	Optional bool
}

func NewTOMLFileLoader(path string) TOMLFileLoader {
	return TOMLFileLoader{Path: path}
}

func (l TOMLFileLoader) LoadRaw(context.Context) (map[string]any, error) {
	path := strings.TrimSpace(l.Path)
	if path == "" {
		return map[string]any{}, nil
	}
	raw := map[string]any{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		if l.Optional && errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		rich := goerrors.Wrap(err, goerrors.CategoryValidation, "config: failed to read toml file").
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorBadInput).
			WithMetadata(map[string]any{"path": path})
		rich.Category = goerrors.CategoryValidation
		return nil, rich
	}
	if err := normalize(raw, "", path); err != nil {
		return nil, err
	}
	return raw, nil
}

var _ core.RawConfigLoader = TOMLFileLoader{}
