package command

import (
	"context"

	"github.com/goliatone/go-callverify/core"
	"github.com/goliatone/go-callverify/providers/hubspot"
	gocmd "github.com/goliatone/go-command"
)

// SessionService is the orchestrator surface the mutating commands drive.
type SessionService interface {
	CreateSession(ctx context.Context, req core.CreateSessionRequest) (core.Session, error)
	EndCall(ctx context.Context, callID string, reason string) (core.CallSummary, error)
}

type PropertyInstaller interface {
	SetupContactProperties(ctx context.Context) (hubspot.SetupResult, error)
}

type CreateSessionCommand struct {
	service SessionService
}

func NewCreateSessionCommand(service SessionService) *CreateSessionCommand {
	return &CreateSessionCommand{service: service}
}

func (c *CreateSessionCommand) Execute(ctx context.Context, msg CreateSessionMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependency("command", "session service")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.CreateSession(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type EndCallCommand struct {
	service SessionService
}

func NewEndCallCommand(service SessionService) *EndCallCommand {
	return &EndCallCommand{service: service}
}

// Execute ends the call and stores the final summary. A finalization error is
// still returned after the summary is stored.
func (c *EndCallCommand) Execute(ctx context.Context, msg EndCallMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependency("command", "session service")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.EndCall(ctx, msg.CallID, msg.Reason)
	if out.CallID != "" {
		storeResult(ctx, out)
	}
	return err
}

type SetupContactPropertiesCommand struct {
	installer PropertyInstaller
}

func NewSetupContactPropertiesCommand(installer PropertyInstaller) *SetupContactPropertiesCommand {
	return &SetupContactPropertiesCommand{installer: installer}
}

func (c *SetupContactPropertiesCommand) Execute(ctx context.Context, _ SetupContactPropertiesMessage) error {
	if c == nil || c.installer == nil {
		return core.NewNotConfiguredError("command: hubspot is not configured", nil)
	}
	out, err := c.installer.SetupContactProperties(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
