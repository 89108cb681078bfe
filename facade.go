// Package callverify wires the call orchestrator, its backend connectors, the
// webhook ingress and the HTTP surface from one core.Config.
package callverify

import (
	"context"
	"net/http"

	"github.com/goliatone/go-callverify/adapters/gocommand"
	promadapter "github.com/goliatone/go-callverify/adapters/prometheus"
	"github.com/goliatone/go-callverify/core"
	"github.com/goliatone/go-callverify/inbound"
	"github.com/goliatone/go-callverify/ratelimit"
	"github.com/goliatone/go-callverify/server"
	"github.com/goliatone/go-callverify/transport"
	"github.com/goliatone/go-callverify/webhooks"
	"github.com/goliatone/go-command"
	glog "github.com/goliatone/go-logger/glog"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type Facade struct {
	config        core.Config
	logger        core.Logger
	orchestrator  *core.Orchestrator
	connectors    Connectors
	processor     *webhooks.Processor
	server        *server.Server
	commands      *gocommand.RegistryAdapter
	subscriptions *gocommand.Subscriptions
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder
	metricsHandler http.Handler
	configLoader   core.RawConfigLoader
	ledger         webhooks.DeliveryLedger
	archive        core.CallArchive
	transport      core.TransportAdapter
	headerCache    repositorycache.CacheService
	connectors     *Connectors
	registry       *command.Registry
	coreOptions    []core.Option
}

func WithLogger(logger core.Logger) FacadeOption {
	return func(o *facadeOptions) { o.logger = logger }
}

func WithLoggerProvider(provider core.LoggerProvider) FacadeOption {
	return func(o *facadeOptions) { o.loggerProvider = provider }
}

// WithMetrics replaces the default Prometheus recorder. handler is mounted at
// /metrics when not nil.
func WithMetrics(recorder core.MetricsRecorder, handler http.Handler) FacadeOption {
	return func(o *facadeOptions) {
		o.metrics = recorder
		o.metricsHandler = handler
	}
}

// WithConfigLoader adds raw config layers (file, environment) under the
// runtime config passed to NewFacade.
func WithConfigLoader(loader core.RawConfigLoader) FacadeOption {
	return func(o *facadeOptions) { o.configLoader = loader }
}

func WithDeliveryLedger(ledger webhooks.DeliveryLedger) FacadeOption {
	return func(o *facadeOptions) { o.ledger = ledger }
}

func WithCallArchive(archive core.CallArchive) FacadeOption {
	return func(o *facadeOptions) { o.archive = archive }
}

// WithTransport routes every outbound connector call through adapter, behind
// the per-host rate limit guard.
func WithTransport(adapter core.TransportAdapter) FacadeOption {
	return func(o *facadeOptions) { o.transport = adapter }
}

func WithHeaderCache(cache repositorycache.CacheService) FacadeOption {
	return func(o *facadeOptions) { o.headerCache = cache }
}

// WithConnectors skips BuildConnectors and uses the given set.
func WithConnectors(connectors Connectors) FacadeOption {
	return func(o *facadeOptions) { o.connectors = &connectors }
}

// WithCommandRegistry registers the call commands and queries in registry and
// subscribes them on the go-command dispatcher.
func WithCommandRegistry(registry *command.Registry) FacadeOption {
	return func(o *facadeOptions) {
		if registry == nil {
			registry = command.NewRegistry()
		}
		o.registry = registry
	}
}

// WithOrchestratorOptions passes extra options (scheduler, clock, locker) to
// the orchestrator.
func WithOrchestratorOptions(opts ...core.Option) FacadeOption {
	return func(o *facadeOptions) { o.coreOptions = append(o.coreOptions, opts...) }
}

func NewFacade(ctx context.Context, cfg core.Config, opts ...FacadeOption) (*Facade, error) {
	options := facadeOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	provider, logger := glog.Resolve("callverify", options.loggerProvider, options.logger)
	logger = glog.Ensure(logger)

	resolved, err := core.ResolveConfig(ctx, cfg, core.NewCfgxConfigProvider(options.configLoader), nil)
	if err != nil {
		return nil, err
	}

	if options.metrics == nil {
		recorder := promadapter.NewRecorder()
		options.metrics = recorder
		options.metricsHandler = recorder.Handler()
	}

	outbound := options.transport
	if outbound == nil {
		outbound = transport.NewRESTAdapter(nil)
	}
	outbound = ratelimit.NewTransport(outbound, nil, logger)

	var connectors Connectors
	if options.connectors != nil {
		connectors = *options.connectors
	} else {
		connectors, err = BuildConnectors(resolved, ProviderDependencies{
			Transport:   outbound,
			Logger:      logger,
			HeaderCache: options.headerCache,
		})
		if err != nil {
			return nil, err
		}
	}

	coreOpts := []core.Option{
		core.WithLogger(logger),
		core.WithMetricsRecorder(options.metrics),
	}
	if provider != nil {
		coreOpts = append(coreOpts, core.WithLoggerProvider(provider))
	}
	coreOpts = append(coreOpts, connectors.Options()...)
	if options.archive != nil {
		coreOpts = append(coreOpts, core.WithCallArchive(options.archive))
	}
	coreOpts = append(coreOpts, options.coreOptions...)
	orchestrator, err := core.NewOrchestrator(resolved, coreOpts...)
	if err != nil {
		return nil, err
	}

	dispatcher, err := inbound.NewCallDispatcher(orchestrator, logger)
	if err != nil {
		return nil, err
	}
	ledger := options.ledger
	if ledger == nil {
		ledger = webhooks.NewMemoryDeliveryLedger(resolved.Webhook.DedupeTTL)
	}
	authenticator := webhooks.NewHMACAuthenticator(resolved.Webhook.Secret, logger)
	authenticator.Header = resolved.Webhook.SignatureHeader
	processor := webhooks.NewProcessor(authenticator, ledger, dispatcher)
	processor.ExtractID = webhooks.HeaderDeliveryIDExtractor(resolved.Webhook.DeliveryHeader, "X-Webhook-Id")
	processor.Logger = logger
	processor.Metrics = options.metrics

	serverCfg := server.Config{
		Webhooks:       processor,
		Calls:          orchestrator,
		Metrics:        options.metrics,
		MetricsHandler: options.metricsHandler,
		Logger:         logger,
	}
	if options.archive != nil {
		serverCfg.CallLogs = orchestrator
	}
	if connectors.HubSpot != nil {
		serverCfg.Properties = connectors.HubSpot
	}
	httpServer, err := server.New(serverCfg)
	if err != nil {
		return nil, err
	}

	facade := &Facade{
		config:       resolved,
		logger:       logger,
		orchestrator: orchestrator,
		connectors:   connectors,
		processor:    processor,
		server:       httpServer,
	}

	if options.registry != nil {
		facade.commands = gocommand.NewRegistryAdapter(options.registry)
		services := gocommand.CallServices{Sessions: orchestrator, Calls: orchestrator}
		if options.archive != nil {
			services.CallLogs = orchestrator
		}
		if connectors.HubSpot != nil {
			services.Properties = connectors.HubSpot
		}
		subs, err := gocommand.RegisterCallHandlers(facade.commands, services)
		if err != nil {
			return nil, err
		}
		facade.subscriptions = subs
		if err := facade.commands.Initialize(); err != nil {
			subs.Unsubscribe()
			return nil, err
		}
	}
	return facade, nil
}

func (f *Facade) Config() core.Config {
	return f.config
}

func (f *Facade) Orchestrator() *core.Orchestrator {
	return f.orchestrator
}

func (f *Facade) Connectors() Connectors {
	return f.connectors
}

func (f *Facade) Processor() *webhooks.Processor {
	return f.processor
}

func (f *Facade) Handler() http.Handler {
	return f.server.Handler()
}

func (f *Facade) Commands() *gocommand.RegistryAdapter {
	return f.commands
}

// Run serves HTTP on the configured address until ctx is cancelled.
func (f *Facade) Run(ctx context.Context) error {
	return f.server.Run(ctx, f.config.HTTP)
}

// Close releases the dispatcher subscriptions. Live sessions are not
// finalized.
func (f *Facade) Close() {
	if f == nil {
		return
	}
	f.subscriptions.Unsubscribe()
	f.subscriptions = nil
}
