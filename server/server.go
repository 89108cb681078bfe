// Package server exposes the webhook ingress and the call status API over gin.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	callcommand "github.com/goliatone/go-callverify/command"
	"github.com/goliatone/go-callverify/core"
	callquery "github.com/goliatone/go-callverify/query"
	glog "github.com/goliatone/go-logger/glog"
)

const DefaultMaxBodyBytes int64 = 1 << 20

const shutdownTimeout = 10 * time.Second

// WebhookProcessor is the ingress pipeline behind POST /webhooks/:provider.
type WebhookProcessor interface {
	Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)
}

// CallService is the orchestrator surface used by the call routes.
type CallService interface {
	callcommand.SessionService
	callquery.CallReader
	ActiveCallCount() int
}

type Config struct {
	Webhooks WebhookProcessor
	Calls    CallService
	// CallLogs is optional; without it the call-log routes answer 501.
	CallLogs callquery.CallLogReader
	// Properties is optional; without it /api/setup-crm answers 501.
	Properties     callcommand.PropertyInstaller
	Metrics        core.MetricsRecorder
	MetricsHandler http.Handler
	Logger         core.Logger
	MaxBodyBytes   int64
	Now            func() time.Time
}

type Server struct {
	engine   *gin.Engine
	webhooks WebhookProcessor
	calls    CallService
	logger   core.Logger
	metrics  core.MetricsRecorder
	maxBody  int64
	now      func() time.Time

	createSession *callcommand.CreateSessionCommand
	endCall       *callcommand.EndCallCommand
	setupCRM      *callcommand.SetupContactPropertiesCommand
	callStatus    *callquery.GetCallStatusQuery
	activeCalls   *callquery.ListActiveCallsQuery
	callLog       *callquery.GetCallLogQuery
	callLogs      *callquery.ListCallLogsQuery
}

func New(cfg Config) (*Server, error) {
	if cfg.Webhooks == nil {
		return nil, serverConfigError("server: webhook processor is required")
	}
	if cfg.Calls == nil {
		return nil, serverConfigError("server: call service is required")
	}
	s := &Server{
		webhooks:      cfg.Webhooks,
		calls:         cfg.Calls,
		logger:        glog.Ensure(cfg.Logger),
		metrics:       cfg.Metrics,
		maxBody:       cfg.MaxBodyBytes,
		now:           cfg.Now,
		createSession: callcommand.NewCreateSessionCommand(cfg.Calls),
		endCall:       callcommand.NewEndCallCommand(cfg.Calls),
		setupCRM:      callcommand.NewSetupContactPropertiesCommand(cfg.Properties),
		callStatus:    callquery.NewGetCallStatusQuery(cfg.Calls),
		activeCalls:   callquery.NewListActiveCallsQuery(cfg.Calls),
	}
	if cfg.CallLogs != nil {
		s.callLog = callquery.NewGetCallLogQuery(cfg.CallLogs)
		s.callLogs = callquery.NewListCallLogsQuery(cfg.CallLogs)
	}
	if s.metrics == nil {
		s.metrics = core.NopMetricsRecorder{}
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBodyBytes
	}
	if s.now == nil {
		s.now = time.Now
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), RequestLogger(s.logger), RequestMetrics(s.metrics))
	s.routes(engine, cfg.MetricsHandler)
	s.engine = engine
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, httpCfg core.HTTPConfig) error {
	addr := strings.TrimSpace(httpCfg.Addr)
	if addr == "" {
		addr = core.DefaultConfig().HTTP.Addr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadTimeout:       httpCfg.ReadTimeout,
		ReadHeaderTimeout: httpCfg.ReadTimeout,
		WriteTimeout:      httpCfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down", "addr", addr)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
