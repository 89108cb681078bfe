package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ConnectorSet resolves the backend connector for a target kind.
type ConnectorSet map[TargetKind]BackendConnector

func (s ConnectorSet) Resolve(kind TargetKind) (BackendConnector, error) {
	connector, ok := s[kind]
	if !ok || connector == nil {
		return nil, routingTargetMissing(
			fmt.Sprintf("core: no backend connector registered for %q", kind),
			map[string]any{"target_kind": kind},
		)
	}
	return connector, nil
}

func (s ConnectorSet) Kinds() []string {
	kinds := make([]string, 0, len(s))
	for kind, connector := range s {
		if connector != nil {
			kinds = append(kinds, string(kind))
		}
	}
	return kinds
}

// backendWriter applies normalized fields through the session's connector.
// Failures are logged and reported back, never returned.
type backendWriter struct {
	connectors ConnectorSet
	telemetry  telemetry
}

type backendWrite struct {
	Attempted bool
	Applied   Fields
	Err       error
}

func (w backendWriter) write(ctx context.Context, session Session, reason string, fields Fields) backendWrite {
	logFields := map[string]any{
		"call_id":     session.CallID,
		"target_kind": session.Target.Kind,
		"target_ref":  session.Target.Ref(),
		"reason":      reason,
	}
	if len(fields) == 0 {
		w.telemetry.debug(ctx, "no backend fields to write", logFields)
		return backendWrite{}
	}
	if err := session.Target.Validate(); err != nil {
		logFields["error"] = err.Error()
		w.telemetry.error(ctx, "routing target missing, backend update dropped", logFields)
		return backendWrite{Err: err}
	}
	connector, err := w.connectors.Resolve(session.Target.Kind)
	if err != nil {
		logFields["error"] = err.Error()
		w.telemetry.error(ctx, "backend connector missing, backend update dropped", logFields)
		return backendWrite{Err: err}
	}

	startedAt := time.Now()
	applied, err := connector.ApplyUpdate(ctx, session.Target, fields.clone())
	w.telemetry.observeBackend(ctx, startedAt, session.Target.Kind, err)
	logFields["fields"] = strings.Join(fields.Keys(), ",")
	if err != nil {
		logFields["error"] = err.Error()
		logFields["backend_error"] = IsBackendError(err)
		w.telemetry.error(ctx, "backend update failed", logFields)
		return backendWrite{Attempted: true, Err: err}
	}
	w.telemetry.info(ctx, "backend updated", logFields)
	return backendWrite{Attempted: true, Applied: applied}
}
