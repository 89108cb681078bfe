package inbound

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/goliatone/go-callverify/core"
	"github.com/goliatone/go-callverify/webhooks"
	goerrors "github.com/goliatone/go-errors"
)

const ErrorHandlerExists = "HANDLER_EXISTS"

// CallHandler is the orchestrator surface the dispatcher drives.
type CallHandler interface {
	HandleFunctionCall(ctx context.Context, call core.FunctionCall) (core.RouteResult, error)
	HandleRoomEvent(ctx context.Context, event core.RoomEvent) (core.Session, error)
}

// Dispatcher keeps one handler per event type. Events without a handler are
// logged and acknowledged.
type Dispatcher struct {
	Logger core.Logger

	mu       sync.RWMutex
	handlers map[webhooks.EventType]webhooks.EventHandler
}

func NewDispatcher(logger core.Logger) *Dispatcher {
	return &Dispatcher{
		Logger:   logger,
		handlers: map[webhooks.EventType]webhooks.EventHandler{},
	}
}

// NewCallDispatcher registers the function call and room lifecycle handlers
// for calls.
func NewCallDispatcher(calls CallHandler, logger core.Logger) (*Dispatcher, error) {
	if calls == nil {
		return nil, inboundBadInput("inbound: call handler is required", nil)
	}
	d := NewDispatcher(logger)
	if err := d.Register(webhooks.EventFunctionCall, FunctionCallHandler(calls)); err != nil {
		return nil, err
	}
	roomHandler := RoomEventHandler(calls)
	if err := d.Register(webhooks.EventRoomFinished, roomHandler); err != nil {
		return nil, err
	}
	if err := d.Register(webhooks.EventParticipantLeft, roomHandler); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dispatcher) Register(eventType webhooks.EventType, handler webhooks.EventHandler) error {
	if d == nil {
		return inboundInternal("inbound: dispatcher is nil", nil)
	}
	if handler == nil {
		return inboundBadInput("inbound: handler is nil", map[string]any{"type": eventType})
	}
	eventType = webhooks.EventType(strings.TrimSpace(string(eventType)))
	if eventType == "" {
		return inboundBadInput("inbound: event type is required", nil)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers == nil {
		d.handlers = map[webhooks.EventType]webhooks.EventHandler{}
	}
	if _, exists := d.handlers[eventType]; exists {
		return inboundError(
			fmt.Sprintf("inbound: handler already registered for %q", eventType),
			goerrors.CategoryConflict,
			http.StatusConflict,
			ErrorHandlerExists,
			map[string]any{"type": eventType},
		)
	}
	d.handlers[eventType] = handler
	return nil
}

func (d *Dispatcher) HandleEvent(ctx context.Context, event webhooks.Event) error {
	if d == nil {
		return inboundInternal("inbound: dispatcher is nil", nil)
	}
	if event == nil {
		return inboundBadInput("inbound: event is nil", nil)
	}
	handler := d.handlerFor(event.Type())
	if handler == nil {
		core.LogWithFields(ctx, d.Logger, "info", "unhandled webhook type", map[string]any{"type": event.Type()})
		return nil
	}
	return handler.HandleEvent(ctx, event)
}

func (d *Dispatcher) handlerFor(eventType webhooks.EventType) webhooks.EventHandler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[eventType]
}

// FunctionCallHandler routes function_call events. Unknown functions and
// unknown calls are dropped by the router without an error.
func FunctionCallHandler(calls CallHandler) webhooks.EventHandler {
	return webhooks.EventHandlerFunc(func(ctx context.Context, event webhooks.Event) error {
		call, ok := event.(webhooks.FunctionCallEvent)
		if !ok {
			return unexpectedEvent(event, webhooks.EventFunctionCall)
		}
		if _, err := calls.HandleFunctionCall(ctx, call.Call()); err != nil {
			return handlerFailure(err, "inbound: function call failed",
				map[string]any{"call_id": call.CallID, "function_name": call.FunctionName})
		}
		return nil
	})
}

// RoomEventHandler runs the disconnect guard for room_finished and
// participant_left.
func RoomEventHandler(calls CallHandler) webhooks.EventHandler {
	return webhooks.EventHandlerFunc(func(ctx context.Context, event webhooks.Event) error {
		room := core.RoomEvent{Event: string(event.Type())}
		switch typed := event.(type) {
		case webhooks.RoomFinishedEvent:
			room.RoomName, room.CallID = typed.RoomName, typed.CallID
		case webhooks.ParticipantLeftEvent:
			room.RoomName, room.CallID = typed.RoomName, typed.CallID
		default:
			return unexpectedEvent(event, webhooks.EventRoomFinished)
		}
		if _, err := calls.HandleRoomEvent(ctx, room); err != nil {
			return handlerFailure(err, "inbound: room event failed",
				map[string]any{"room_name": room.RoomName, "call_id": room.CallID, "type": event.Type()})
		}
		return nil
	})
}

func unexpectedEvent(event webhooks.Event, want webhooks.EventType) error {
	return inboundInternal(
		fmt.Sprintf("inbound: handler for %q received %T", want, event),
		map[string]any{"type": event.Type()},
	)
}
