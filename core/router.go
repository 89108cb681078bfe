package core

import (
	"context"
	"strings"
	"time"
)

// FunctionCall is one function_call event emitted by the call agent.
type FunctionCall struct {
	CallID       string
	FunctionName string
	Parameters   StepParameters
	RoomName     string
	RoomMetadata map[string]any
}

type RouteOutcome string

const (
	RouteApplied         RouteOutcome = "applied"
	RouteUnknownFunction RouteOutcome = "unknown_function"
	RouteNotFound        RouteOutcome = "not_found"
)

type RouteResult struct {
	Outcome   RouteOutcome
	CallID    string
	Step      StepName
	Status    SessionStatus
	Fields    Fields
	Applied   Fields
	BackendOK bool
	Finalized bool
}

// Router turns function calls into registry mutations and backend updates.
type Router struct {
	registry  *SessionRegistry
	finalizer *Finalizer
	backend   backendWriter
	now       func() time.Time
	telemetry telemetry
}

func NewRouter(registry *SessionRegistry, finalizer *Finalizer, connectors ConnectorSet, logger Logger, metrics MetricsRecorder) *Router {
	if logger == nil {
		logger = nopLogger()
	}
	if metrics == nil {
		metrics = NopMetricsRecorder{}
	}
	tel := telemetry{logger: logger, metrics: metrics}
	return &Router{
		registry:  registry,
		finalizer: finalizer,
		backend:   backendWriter{connectors: connectors, telemetry: tel},
		now:       registry.Now,
		telemetry: tel,
	}
}

// HandleFunctionCall routes one delivery. Unknown functions and unknown
// sessions are logged and dropped with a nil error; only a failure to
// serialize on the call returns an error.
func (r *Router) HandleFunctionCall(ctx context.Context, call FunctionCall) (RouteResult, error) {
	step := StepName(strings.TrimSpace(call.FunctionName))
	callID := resolveCallID(call)
	result := RouteResult{CallID: callID, Step: step}
	logFields := map[string]any{
		"call_id":       callID,
		"function_name": step,
		"parameters":    RedactParameters(call.Parameters),
	}

	if !step.Known() {
		r.telemetry.warn(ctx, "unknown function", logFields)
		result.Outcome = RouteUnknownFunction
		return result, nil
	}
	if callID == "" {
		r.telemetry.error(ctx, "function call without call id dropped", logFields)
		result.Outcome = RouteNotFound
		return result, nil
	}

	handle, err := r.registry.Lock(ctx, callID)
	if err != nil {
		return result, err
	}
	defer handle.Unlock()

	if _, err := r.registry.Get(ctx, callID); err != nil {
		logFields["error"] = err.Error()
		r.telemetry.error(ctx, "call state not found, function call dropped", logFields)
		result.Outcome = RouteNotFound
		return result, nil
	}
	r.telemetry.info(ctx, "processing function call", logFields)

	fields, _ := NormalizeStep(step, call.Parameters, r.now())
	session, err := r.registry.ApplyStep(ctx, callID, step, call.Parameters)
	if err != nil {
		logFields["error"] = err.Error()
		r.telemetry.error(ctx, "apply step failed, function call dropped", logFields)
		result.Outcome = RouteNotFound
		return result, nil
	}
	result.Outcome = RouteApplied
	result.Status = session.Status
	result.Fields = fields

	write := r.backend.write(ctx, session, string(step), fields)
	result.Applied = write.Applied
	result.BackendOK = write.Err == nil

	if step.Terminal() && r.finalizer != nil {
		if err := r.finalizer.Finalize(ctx, callID); err != nil {
			logFields["error"] = err.Error()
			r.telemetry.error(ctx, "finalize call failed", logFields)
		} else {
			result.Finalized = true
		}
	}
	return result, nil
}

func resolveCallID(call FunctionCall) string {
	if callID := strings.TrimSpace(call.CallID); callID != "" {
		return callID
	}
	if call.RoomMetadata == nil {
		return ""
	}
	for _, key := range []string{"callId", "call_id"} {
		if value, ok := call.RoomMetadata[key].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
