package command

import (
	"strings"

	"github.com/goliatone/go-callverify/core"
)

const (
	TypeCreateSession          = "callverify.command.session.create"
	TypeEndCall                = "callverify.command.call.end"
	TypeSetupContactProperties = "callverify.command.crm.setup_properties"
)

type CreateSessionMessage struct {
	Request core.CreateSessionRequest
}

func (CreateSessionMessage) Type() string { return TypeCreateSession }

func (m CreateSessionMessage) Validate() error {
	if strings.TrimSpace(string(m.Request.Target.Kind)) == "" {
		return core.NewFieldError("command", "target.kind", "target kind is required")
	}
	if err := m.Request.Target.Validate(); err != nil {
		return core.AsValidation(err, "command: invalid call target")
	}
	return nil
}

type EndCallMessage struct {
	CallID string
	Reason string
}

func (EndCallMessage) Type() string { return TypeEndCall }

func (m EndCallMessage) Validate() error {
	if strings.TrimSpace(m.CallID) == "" {
		return core.NewFieldError("command", "call_id", "call id is required")
	}
	return nil
}

// SetupContactPropertiesMessage carries no input; the property set is fixed.
type SetupContactPropertiesMessage struct{}

func (SetupContactPropertiesMessage) Type() string { return TypeSetupContactProperties }
