package query

import (
	"context"

	"github.com/goliatone/go-callverify/core"
)

// CallReader exposes live sessions held by the registry.
type CallReader interface {
	GetCallStatus(ctx context.Context, callID string) (core.CallSummary, error)
	ListActiveCalls(ctx context.Context) ([]core.CallSummary, error)
}

// CallLogReader exposes archived calls.
type CallLogReader interface {
	GetCallLog(ctx context.Context, callID string) (core.CallRecord, error)
	ListCallLogs(ctx context.Context, filter core.CallRecordFilter) ([]core.CallRecord, error)
}

type GetCallStatusQuery struct {
	reader CallReader
}

func NewGetCallStatusQuery(reader CallReader) *GetCallStatusQuery {
	return &GetCallStatusQuery{reader: reader}
}

func (q *GetCallStatusQuery) Query(ctx context.Context, msg GetCallStatusMessage) (core.CallSummary, error) {
	if q == nil || q.reader == nil {
		return core.CallSummary{}, core.MissingDependency("query", "call reader")
	}
	if err := msg.Validate(); err != nil {
		return core.CallSummary{}, err
	}
	return q.reader.GetCallStatus(ctx, msg.CallID)
}

type ListActiveCallsQuery struct {
	reader CallReader
}

func NewListActiveCallsQuery(reader CallReader) *ListActiveCallsQuery {
	return &ListActiveCallsQuery{reader: reader}
}

func (q *ListActiveCallsQuery) Query(ctx context.Context, _ ListActiveCallsMessage) ([]core.CallSummary, error) {
	if q == nil || q.reader == nil {
		return nil, core.MissingDependency("query", "call reader")
	}
	calls, err := q.reader.ListActiveCalls(ctx)
	if err != nil {
		return nil, err
	}
	if calls == nil {
		calls = []core.CallSummary{}
	}
	return calls, nil
}

type GetCallLogQuery struct {
	reader CallLogReader
}

func NewGetCallLogQuery(reader CallLogReader) *GetCallLogQuery {
	return &GetCallLogQuery{reader: reader}
}

func (q *GetCallLogQuery) Query(ctx context.Context, msg GetCallLogMessage) (core.CallRecord, error) {
	if q == nil || q.reader == nil {
		return core.CallRecord{}, core.MissingDependency("query", "call log reader")
	}
	if err := msg.Validate(); err != nil {
		return core.CallRecord{}, err
	}
	return q.reader.GetCallLog(ctx, msg.CallID)
}

type ListCallLogsQuery struct {
	reader CallLogReader
}

func NewListCallLogsQuery(reader CallLogReader) *ListCallLogsQuery {
	return &ListCallLogsQuery{reader: reader}
}

func (q *ListCallLogsQuery) Query(ctx context.Context, msg ListCallLogsMessage) ([]core.CallRecord, error) {
	if q == nil || q.reader == nil {
		return nil, core.MissingDependency("query", "call log reader")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	records, err := q.reader.ListCallLogs(ctx, msg.Filter)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []core.CallRecord{}
	}
	return records, nil
}
