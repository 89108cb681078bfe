package gocommand

import (
	"context"

	callcommand "github.com/goliatone/go-callverify/command"
	"github.com/goliatone/go-callverify/core"
	"github.com/goliatone/go-callverify/providers/hubspot"
	callquery "github.com/goliatone/go-callverify/query"
	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
)

// CallServices groups what the call handlers delegate to. Properties may be
// nil when HubSpot is not configured.
type CallServices struct {
	Sessions   callcommand.SessionService
	Calls      callquery.CallReader
	CallLogs   callquery.CallLogReader
	Properties callcommand.PropertyInstaller
}

// Subscriptions holds every dispatcher subscription made by RegisterCallHandlers.
type Subscriptions struct {
	items []commanddispatcher.Subscription
}

func (s *Subscriptions) add(sub commanddispatcher.Subscription) {
	if sub != nil {
		s.items = append(s.items, sub)
	}
}

func (s *Subscriptions) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

func (s *Subscriptions) Unsubscribe() {
	if s == nil {
		return
	}
	for _, sub := range s.items {
		sub.Unsubscribe()
	}
	s.items = nil
}

// RegisterCallHandlers registers and subscribes the call commands and
// queries. On error every subscription made so far is released.
func RegisterCallHandlers(adapter *RegistryAdapter, services CallServices, runnerOpts ...runner.Option) (*Subscriptions, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, registryMissing()
	}
	if services.Sessions == nil || services.Calls == nil {
		return nil, handlerMissing("session service and call reader")
	}
	subs := &Subscriptions{}
	register := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			subs.Unsubscribe()
			return err
		}
		subs.add(sub)
		return nil
	}

	if err := register(RegisterAndSubscribe(adapter, callcommand.NewCreateSessionCommand(services.Sessions), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, callcommand.NewEndCallCommand(services.Sessions), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribe(adapter, callcommand.NewSetupContactPropertiesCommand(services.Properties), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribeQuery(adapter, callquery.NewGetCallStatusQuery(services.Calls), runnerOpts...)); err != nil {
		return nil, err
	}
	if err := register(RegisterAndSubscribeQuery(adapter, callquery.NewListActiveCallsQuery(services.Calls), runnerOpts...)); err != nil {
		return nil, err
	}
	if services.CallLogs != nil {
		if err := register(RegisterAndSubscribeQuery(adapter, callquery.NewGetCallLogQuery(services.CallLogs), runnerOpts...)); err != nil {
			return nil, err
		}
		if err := register(RegisterAndSubscribeQuery(adapter, callquery.NewListCallLogsQuery(services.CallLogs), runnerOpts...)); err != nil {
			return nil, err
		}
	}
	return subs, nil
}

// The helpers below dispatch through the subscriptions made above and return
// the collected result.

func CreateSession(ctx context.Context, req core.CreateSessionRequest) (core.Session, error) {
	return dispatchWithResult[callcommand.CreateSessionMessage, core.Session](ctx, callcommand.CreateSessionMessage{Request: req})
}

func EndCall(ctx context.Context, callID string, reason string) (core.CallSummary, error) {
	return dispatchWithResult[callcommand.EndCallMessage, core.CallSummary](ctx, callcommand.EndCallMessage{CallID: callID, Reason: reason})
}

func SetupContactProperties(ctx context.Context) (hubspot.SetupResult, error) {
	return dispatchWithResult[callcommand.SetupContactPropertiesMessage, hubspot.SetupResult](ctx, callcommand.SetupContactPropertiesMessage{})
}

func dispatchWithResult[T any, R any](ctx context.Context, msg T) (R, error) {
	var zero R
	if err := ValidateMessageContract(msg); err != nil {
		return zero, err
	}
	collector := command.NewResult[R]()
	err := Dispatch(command.ContextWithResult(ctx, collector), msg)
	out, _ := collector.Load()
	return out, err
}
