package core

import (
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	DefaultSignatureHeader = "X-Livekit-Signature"
	DefaultDeliveryHeader  = "X-Delivery-Id"
	DefaultHubSpotBaseURL  = "https://api.hubapi.com"
	DefaultSheetsBaseURL   = "https://sheets.googleapis.com"
	DefaultGoogleTokenURL  = "https://oauth2.googleapis.com/token"
	DefaultSheetName       = "Contacts"
)

type WebhookConfig struct {
	Secret          string        `koanf:"secret" mapstructure:"secret"`
	SignatureHeader string        `koanf:"signature_header" mapstructure:"signature_header"`
	DeliveryHeader  string        `koanf:"delivery_header" mapstructure:"delivery_header"`
	DedupeTTL       time.Duration `koanf:"dedupe_ttl" mapstructure:"dedupe_ttl"`
}

type SessionConfig struct {
	EvictionGrace time.Duration `koanf:"eviction_grace" mapstructure:"eviction_grace"`
}

type HubSpotConfig struct {
	AccessToken string            `koanf:"access_token" mapstructure:"access_token"`
	BaseURL     string            `koanf:"base_url" mapstructure:"base_url"`
	Properties  map[string]string `koanf:"properties" mapstructure:"properties"`
}

func (c HubSpotConfig) Enabled() bool {
	return strings.TrimSpace(c.AccessToken) != ""
}

type SheetsConfig struct {
	SpreadsheetID      string        `koanf:"spreadsheet_id" mapstructure:"spreadsheet_id"`
	SheetName          string        `koanf:"sheet_name" mapstructure:"sheet_name"`
	ServiceAccountJSON string        `koanf:"service_account_json" mapstructure:"service_account_json"`
	BaseURL            string        `koanf:"base_url" mapstructure:"base_url"`
	TokenURL           string        `koanf:"token_url" mapstructure:"token_url"`
	HeaderCacheTTL     time.Duration `koanf:"header_cache_ttl" mapstructure:"header_cache_ttl"`
}

func (c SheetsConfig) Enabled() bool {
	return strings.TrimSpace(c.SpreadsheetID) != ""
}

type LiveKitConfig struct {
	URL       string        `koanf:"url" mapstructure:"url"`
	APIKey    string        `koanf:"api_key" mapstructure:"api_key"`
	APISecret string        `koanf:"api_secret" mapstructure:"api_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl" mapstructure:"token_ttl"`
}

func (c LiveKitConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != "" &&
		strings.TrimSpace(c.APIKey) != "" &&
		strings.TrimSpace(c.APISecret) != ""
}

type HTTPConfig struct {
	Addr         string        `koanf:"addr" mapstructure:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout" mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
}

func (c DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(c.Driver) != ""
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Webhook     WebhookConfig  `koanf:"webhook" mapstructure:"webhook"`
	Session     SessionConfig  `koanf:"session" mapstructure:"session"`
	HubSpot     HubSpotConfig  `koanf:"hubspot" mapstructure:"hubspot"`
	Sheets      SheetsConfig   `koanf:"sheets" mapstructure:"sheets"`
	LiveKit     LiveKitConfig  `koanf:"livekit" mapstructure:"livekit"`
	HTTP        HTTPConfig     `koanf:"http" mapstructure:"http"`
	Database    DatabaseConfig `koanf:"database" mapstructure:"database"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "callverify",
		Webhook: WebhookConfig{
			SignatureHeader: DefaultSignatureHeader,
			DeliveryHeader:  DefaultDeliveryHeader,
			DedupeTTL:       10 * time.Minute,
		},
		Session: SessionConfig{EvictionGrace: DefaultEvictionGrace},
		HubSpot: HubSpotConfig{BaseURL: DefaultHubSpotBaseURL},
		Sheets: SheetsConfig{
			SheetName:      DefaultSheetName,
			BaseURL:        DefaultSheetsBaseURL,
			TokenURL:       DefaultGoogleTokenURL,
			HeaderCacheTTL: 5 * time.Minute,
		},
		LiveKit: LiveKitConfig{TokenTTL: 10 * time.Minute},
		HTTP: HTTPConfig{
			Addr:         ":3000",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return configError("core: service_name is required", "service_name")
	}
	durations := map[string]time.Duration{
		"webhook.dedupe_ttl":      c.Webhook.DedupeTTL,
		"session.eviction_grace":  c.Session.EvictionGrace,
		"sheets.header_cache_ttl": c.Sheets.HeaderCacheTTL,
		"livekit.token_ttl":       c.LiveKit.TokenTTL,
		"http.read_timeout":       c.HTTP.ReadTimeout,
		"http.write_timeout":      c.HTTP.WriteTimeout,
	}
	for key, value := range durations {
		if value < 0 {
			return configError(fmt.Sprintf("core: %s must not be negative", key), key)
		}
	}
	if c.Database.Enabled() {
		switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
		case "sqlite3", "sqlite", "postgres":
		default:
			return configError(fmt.Sprintf("core: unsupported database driver %q", c.Database.Driver), "database.driver")
		}
		if strings.TrimSpace(c.Database.DSN) == "" {
			return configError("core: database.dsn is required when a driver is set", "database.dsn")
		}
	}
	if c.LiveKit.URL != "" && !c.LiveKit.Enabled() {
		return configError("core: livekit.api_key and livekit.api_secret are required with livekit.url", "livekit")
	}
	return nil
}

func configError(message string, key string) error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithTextCode(ErrorBadInput).
		WithMetadata(map[string]any{"key": key})
}
