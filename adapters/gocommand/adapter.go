// Package gocommand wires the call commands and queries into a go-command
// registry and the process-wide dispatcher.
package gocommand

import (
	"context"
	"net/http"
	"strings"

	"github.com/goliatone/go-callverify/core"
	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	goerrors "github.com/goliatone/go-errors"
)

// ValidateMessageContract checks that msg names its type and passes its own
// Validate, if it has one.
func ValidateMessageContract(msg any) error {
	m, ok := msg.(command.Message)
	if !ok || strings.TrimSpace(m.Type()) == "" {
		return goerrors.New("gocommand: message type is required", goerrors.CategoryValidation).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorBadInput)
	}
	return command.ValidateMessage(msg)
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) register(handler any) error {
	if a == nil || a.registry == nil {
		return registryMissing()
	}
	return a.registry.RegisterCommand(handler)
}

// Initialize runs the registry resolvers once every handler is registered.
func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return registryMissing()
	}
	return a.registry.Initialize()
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

// RegisterAndSubscribe subscribes cmd on the dispatcher and records it in the
// registry. A failed registration drops the subscription again.
func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, registryMissing()
	}
	if cmd == nil {
		return nil, handlerMissing("command")
	}
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.register(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, registryMissing()
	}
	if qry == nil {
		return nil, handlerMissing("query")
	}
	subscription := commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	if err := adapter.register(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func registryMissing() error {
	return goerrors.New("gocommand: registry is not configured", goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorNotConfigured)
}

func handlerMissing(kind string) error {
	return goerrors.New("gocommand: "+kind+" handler is required", goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal)
}
