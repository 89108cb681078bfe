// Package config provides the raw loaders feeding core.CfgxConfigProvider: a
// TOML file and the process environment plus optional .env files.
package config
