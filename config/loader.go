package config

import (
	"strings"

	"github.com/goliatone/go-callverify/core"
)

// NewLoader layers the TOML file under the environment. An empty configPath
// skips the file layer.
func NewLoader(configPath string, envFiles ...string) core.RawConfigLoader {
	loaders := core.MergedConfigLoader{}
	if strings.TrimSpace(configPath) != "" {
		loaders = append(loaders, NewTOMLFileLoader(configPath))
	}
	return append(loaders, NewEnvLoader(envFiles...))
}
