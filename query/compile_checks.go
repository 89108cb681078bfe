package query

import (
	"github.com/goliatone/go-callverify/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[GetCallStatusMessage, core.CallSummary]     = (*GetCallStatusQuery)(nil)
	_ gocmd.Querier[ListActiveCallsMessage, []core.CallSummary] = (*ListActiveCallsQuery)(nil)
	_ gocmd.Querier[GetCallLogMessage, core.CallRecord]         = (*GetCallLogQuery)(nil)
	_ gocmd.Querier[ListCallLogsMessage, []core.CallRecord]     = (*ListCallLogsQuery)(nil)
)
