package query

import (
	"strings"

	"github.com/goliatone/go-callverify/core"
)

const (
	TypeGetCallStatus   = "callverify.query.call.status"
	TypeListActiveCalls = "callverify.query.call.active"
	TypeGetCallLog      = "callverify.query.call_log.get"
	TypeListCallLogs    = "callverify.query.call_log.list"
)

const MaxCallLogLimit = 500

type GetCallStatusMessage struct {
	CallID string
}

func (GetCallStatusMessage) Type() string { return TypeGetCallStatus }

func (m GetCallStatusMessage) Validate() error {
	if strings.TrimSpace(m.CallID) == "" {
		return core.NewFieldError("query", "call_id", "call id is required")
	}
	return nil
}

type ListActiveCallsMessage struct{}

func (ListActiveCallsMessage) Type() string { return TypeListActiveCalls }

type GetCallLogMessage struct {
	CallID string
}

func (GetCallLogMessage) Type() string { return TypeGetCallLog }

func (m GetCallLogMessage) Validate() error {
	if strings.TrimSpace(m.CallID) == "" {
		return core.NewFieldError("query", "call_id", "call id is required")
	}
	return nil
}

type ListCallLogsMessage struct {
	Filter core.CallRecordFilter
}

func (ListCallLogsMessage) Type() string { return TypeListCallLogs }

func (m ListCallLogsMessage) Validate() error {
	if m.Filter.Limit < 0 || m.Filter.Limit > MaxCallLogLimit {
		return core.NewFieldError("query", "limit", "limit must be between 0 and 500")
	}
	switch m.Filter.TargetKind {
	case "", core.TargetKindCRM, core.TargetKindSheet:
	default:
		return core.NewFieldError("query", "target_kind", "unsupported target kind")
	}
	switch m.Filter.Status {
	case "", core.SessionStatusCompleted, core.SessionStatusEndedEarly:
	default:
		return core.NewFieldError("query", "status", "status must be completed or ended_early")
	}
	return nil
}
