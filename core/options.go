package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type orchestratorBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	connectors      ConnectorSet
	rooms           RoomReleaser
	archive         CallArchive
	scheduler       Scheduler
	locker          CallLocker
	clock           func() time.Time
}

type Option func(*orchestratorBuilder)

func WithLogger(logger Logger) Option {
	return func(b *orchestratorBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *orchestratorBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *orchestratorBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *orchestratorBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *orchestratorBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *orchestratorBuilder) {
		b.optionsResolver = resolver
	}
}

// WithConnector registers the backend connector used for sessions of kind.
func WithConnector(kind TargetKind, connector BackendConnector) Option {
	return func(b *orchestratorBuilder) {
		if b.connectors == nil {
			b.connectors = ConnectorSet{}
		}
		b.connectors[kind] = connector
	}
}

func WithRoomReleaser(rooms RoomReleaser) Option {
	return func(b *orchestratorBuilder) {
		b.rooms = rooms
	}
}

func WithCallArchive(archive CallArchive) Option {
	return func(b *orchestratorBuilder) {
		b.archive = archive
	}
}

func WithScheduler(scheduler Scheduler) Option {
	return func(b *orchestratorBuilder) {
		b.scheduler = scheduler
	}
}

func WithCallLocker(locker CallLocker) Option {
	return func(b *orchestratorBuilder) {
		b.locker = locker
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *orchestratorBuilder) {
		b.clock = now
	}
}

func defaultOrchestratorBuilder(runtime Config) orchestratorBuilder {
	loggerProvider, logger := glog.Resolve("callverify", nil, nil)
	return orchestratorBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		connectors:      ConnectorSet{},
		scheduler:       NewTimeScheduler(),
		clock:           func() time.Time { return time.Now().UTC() },
	}
}

func nopLogger() Logger {
	return glog.Nop()
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		if rich.Code == 0 {
			rich.Code = categoryHTTPStatus(rich.Category)
		}
		if strings.TrimSpace(rich.TextCode) == "" {
			rich.TextCode = ErrorInternal
		}
		return rich
	}
	return newError(err.Error(), goerrors.CategoryInternal, categoryHTTPStatus(goerrors.CategoryInternal), ErrorInternal, nil)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// StaticConfigLoader serves a fixed raw map, mostly for tests.
func StaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

// MergedConfigLoader merges raw maps from loaders in order; later loaders win.
type MergedConfigLoader []RawConfigLoader

func (m MergedConfigLoader) LoadRaw(ctx context.Context) (map[string]any, error) {
	merged := map[string]any{}
	for _, loader := range m {
		if loader == nil {
			continue
		}
		raw, err := loader.LoadRaw(ctx)
		if err != nil {
			return nil, err
		}
		mergeRaw(merged, raw)
	}
	return merged, nil
}

func mergeRaw(dst map[string]any, src map[string]any) {
	for key, value := range src {
		nested, ok := value.(map[string]any)
		if !ok {
			dst[key] = value
			continue
		}
		existing, ok := dst[key].(map[string]any)
		if !ok {
			existing = map[string]any{}
			dst[key] = existing
		}
		mergeRaw(existing, nested)
	}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ResolveConfig loads the configured layers and resolves them under runtime.
// Nil provider or resolver fall back to the cfgx provider without a loader
// and GoOptionsResolver.
func ResolveConfig(ctx context.Context, runtime Config, provider ConfigProvider, resolver OptionsResolver) (Config, error) {
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	defaults := DefaultConfig()
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configToLayerMap flattens cfg into the nested raw shape used by the options
// stack. Zero values are dropped unless includeZero is set, so an unset
// runtime field never masks a loaded one.
func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString(layer, "service_name", cfg.ServiceName, includeZero)

	webhook := map[string]any{}
	setString(webhook, "secret", cfg.Webhook.Secret, includeZero)
	setString(webhook, "signature_header", cfg.Webhook.SignatureHeader, includeZero)
	setString(webhook, "delivery_header", cfg.Webhook.DeliveryHeader, includeZero)
	setDuration(webhook, "dedupe_ttl", cfg.Webhook.DedupeTTL, includeZero)
	setSection(layer, "webhook", webhook)

	session := map[string]any{}
	setDuration(session, "eviction_grace", cfg.Session.EvictionGrace, includeZero)
	setSection(layer, "session", session)

	hubspot := map[string]any{}
	setString(hubspot, "access_token", cfg.HubSpot.AccessToken, includeZero)
	setString(hubspot, "base_url", cfg.HubSpot.BaseURL, includeZero)
	if includeZero || len(cfg.HubSpot.Properties) > 0 {
		properties := make(map[string]any, len(cfg.HubSpot.Properties))
		for key, value := range cfg.HubSpot.Properties {
			properties[key] = value
		}
		hubspot["properties"] = properties
	}
	setSection(layer, "hubspot", hubspot)

	sheets := map[string]any{}
	setString(sheets, "spreadsheet_id", cfg.Sheets.SpreadsheetID, includeZero)
	setString(sheets, "sheet_name", cfg.Sheets.SheetName, includeZero)
	setString(sheets, "service_account_json", cfg.Sheets.ServiceAccountJSON, includeZero)
	setString(sheets, "base_url", cfg.Sheets.BaseURL, includeZero)
	setString(sheets, "token_url", cfg.Sheets.TokenURL, includeZero)
	setDuration(sheets, "header_cache_ttl", cfg.Sheets.HeaderCacheTTL, includeZero)
	setSection(layer, "sheets", sheets)

	livekit := map[string]any{}
	setString(livekit, "url", cfg.LiveKit.URL, includeZero)
	setString(livekit, "api_key", cfg.LiveKit.APIKey, includeZero)
	setString(livekit, "api_secret", cfg.LiveKit.APISecret, includeZero)
	setDuration(livekit, "token_ttl", cfg.LiveKit.TokenTTL, includeZero)
	setSection(layer, "livekit", livekit)

	httpLayer := map[string]any{}
	setString(httpLayer, "addr", cfg.HTTP.Addr, includeZero)
	setDuration(httpLayer, "read_timeout", cfg.HTTP.ReadTimeout, includeZero)
	setDuration(httpLayer, "write_timeout", cfg.HTTP.WriteTimeout, includeZero)
	setSection(layer, "http", httpLayer)

	database := map[string]any{}
	setString(database, "driver", cfg.Database.Driver, includeZero)
	setString(database, "dsn", cfg.Database.DSN, includeZero)
	if includeZero || cfg.Database.Debug {
		database["debug"] = cfg.Database.Debug
	}
	setSection(layer, "database", database)
	return layer
}

func setString(layer map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		layer[key] = value
	}
}

func setDuration(layer map[string]any, key string, value time.Duration, includeZero bool) {
	if includeZero || value != 0 {
		layer[key] = value
	}
}

func setSection(layer map[string]any, key string, section map[string]any) {
	if len(section) > 0 {
		layer[key] = section
	}
}
