package core

import (
	"context"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

// Orchestrator owns the session registry and wires the router and finalizer
// to the configured connectors. One instance is built at process start and
// shared by every inbound surface.
type Orchestrator struct {
	config         Config
	logger         Logger
	loggerProvider LoggerProvider
	metrics        MetricsRecorder
	errorMapper    ErrorMapper
	registry       *SessionRegistry
	router         *Router
	finalizer      *Finalizer
	connectors     ConnectorSet
	archive        CallArchive
}

func NewOrchestrator(cfg Config, opts ...Option) (*Orchestrator, error) {
	builder := defaultOrchestratorBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("callverify", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("callverify"); named != nil {
			logger = glog.Ensure(named)
		}
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	finalConfig, err := ResolveConfig(context.Background(), builder.runtimeConfig, builder.configProvider, builder.optionsResolver)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	registryOpts := []RegistryOption{
		WithRegistryLogger(logger),
		WithRegistryMetrics(builder.metricsRecorder),
		WithRegistryScheduler(builder.scheduler),
		WithRegistryClock(builder.clock),
	}
	if builder.locker != nil {
		registryOpts = append(registryOpts, WithRegistryLocker(builder.locker))
	}
	registry := NewSessionRegistry(registryOpts...)

	finalizer := NewFinalizer(FinalizerDependencies{
		Registry:   registry,
		Connectors: builder.connectors,
		Rooms:      builder.rooms,
		Archive:    builder.archive,
		Grace:      finalConfig.Session.EvictionGrace,
		Logger:     logger,
		Metrics:    builder.metricsRecorder,
	})
	router := NewRouter(registry, finalizer, builder.connectors, logger, builder.metricsRecorder)

	logger.Info("call orchestrator ready",
		"service_name", finalConfig.ServiceName,
		"connectors", strings.Join(builder.connectors.Kinds(), ","),
		"room_release", builder.rooms != nil,
		"archive", builder.archive != nil,
	)

	return &Orchestrator{
		config:         finalConfig,
		logger:         logger,
		loggerProvider: provider,
		metrics:        builder.metricsRecorder,
		errorMapper:    builder.errorMapper,
		registry:       registry,
		router:         router,
		finalizer:      finalizer,
		connectors:     builder.connectors,
		archive:        builder.archive,
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (o *Orchestrator) Config() Config {
	if o == nil {
		return Config{}
	}
	return o.config
}

func (o *Orchestrator) Logger() Logger {
	if o == nil || o.logger == nil {
		return nopLogger()
	}
	return o.logger
}

func (o *Orchestrator) Metrics() MetricsRecorder {
	if o == nil || o.metrics == nil {
		return NopMetricsRecorder{}
	}
	return o.metrics
}

func (o *Orchestrator) Registry() *SessionRegistry {
	return o.registry
}

func (o *Orchestrator) CreateSession(ctx context.Context, req CreateSessionRequest) (Session, error) {
	if _, err := o.connectors.Resolve(req.Target.Kind); err != nil {
		return Session{}, err
	}
	return o.registry.Create(ctx, req)
}

func (o *Orchestrator) GetCallStatus(ctx context.Context, callID string) (CallSummary, error) {
	session, err := o.registry.Get(ctx, callID)
	if err != nil {
		return CallSummary{}, err
	}
	return session.Summary(o.registry.Now()), nil
}

func (o *Orchestrator) ListActiveCalls(ctx context.Context) ([]CallSummary, error) {
	sessions := o.registry.List(ctx)
	now := o.registry.Now()
	summaries := make([]CallSummary, 0, len(sessions))
	for _, session := range sessions {
		summaries = append(summaries, session.Summary(now))
	}
	return summaries, nil
}

func (o *Orchestrator) ActiveCallCount() int {
	if o == nil || o.registry == nil {
		return 0
	}
	return o.registry.Len()
}

func (o *Orchestrator) HandleFunctionCall(ctx context.Context, call FunctionCall) (RouteResult, error) {
	return o.router.HandleFunctionCall(ctx, call)
}

// HandleRoomEvent runs the unexpected-disconnect guard for room_finished and
// participant_left events.
func (o *Orchestrator) HandleRoomEvent(ctx context.Context, ev RoomEvent) (Session, error) {
	ev.RoomName = strings.TrimSpace(ev.RoomName)
	ev.CallID = strings.TrimSpace(ev.CallID)
	if ev.RoomName == "" && ev.CallID == "" {
		LogWithFields(ctx, o.logger, "warn", "room event without room name dropped", map[string]any{"event": ev.Event})
		return Session{}, nil
	}
	return o.finalizer.HandleRoomEnded(ctx, ev)
}

func (o *Orchestrator) EndCall(ctx context.Context, callID string, reason string) (CallSummary, error) {
	session, err := o.finalizer.EndCall(ctx, callID, reason)
	if err != nil {
		return CallSummary{}, err
	}
	return session.Summary(o.registry.Now()), nil
}

func (o *Orchestrator) GetCallLog(ctx context.Context, callID string) (CallRecord, error) {
	if o.archive == nil {
		return CallRecord{}, NewNotConfiguredError("core: call archive is not configured", nil)
	}
	return o.archive.Get(ctx, strings.TrimSpace(callID))
}

func (o *Orchestrator) ListCallLogs(ctx context.Context, filter CallRecordFilter) ([]CallRecord, error) {
	if o.archive == nil {
		return nil, NewNotConfiguredError("core: call archive is not configured", nil)
	}
	return o.archive.List(ctx, filter)
}
