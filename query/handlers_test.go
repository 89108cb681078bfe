package query

import (
	"context"
	"net/http"
	"testing"

	"github.com/goliatone/go-callverify/core"
	goerrors "github.com/goliatone/go-errors"
)

type stubReader struct {
	summary core.CallSummary
	active  []core.CallSummary
	record  core.CallRecord
	records []core.CallRecord
	filter  core.CallRecordFilter
	err     error
}

func (s *stubReader) GetCallStatus(_ context.Context, callID string) (core.CallSummary, error) {
	if s.err != nil {
		return core.CallSummary{}, s.err
	}
	out := s.summary
	out.CallID = callID
	return out, nil
}

func (s *stubReader) ListActiveCalls(context.Context) ([]core.CallSummary, error) {
	return s.active, s.err
}

func (s *stubReader) GetCallLog(_ context.Context, callID string) (core.CallRecord, error) {
	if s.err != nil {
		return core.CallRecord{}, s.err
	}
	out := s.record
	out.CallID = callID
	return out, nil
}

func (s *stubReader) ListCallLogs(_ context.Context, filter core.CallRecordFilter) ([]core.CallRecord, error) {
	s.filter = filter
	return s.records, s.err
}

func TestGetCallStatusQuery_DelegatesToReader(t *testing.T) {
	reader := &stubReader{summary: core.CallSummary{Status: core.SessionStatusInProgress}}
	out, err := NewGetCallStatusQuery(reader).Query(context.Background(), GetCallStatusMessage{CallID: "call-1"})
	if err != nil {
		t.Fatalf("query call status: %v", err)
	}
	if out.CallID != "call-1" || out.Status != core.SessionStatusInProgress {
		t.Fatalf("unexpected summary: %#v", out)
	}
}

func TestGetCallStatusQuery_RequiresCallID(t *testing.T) {
	_, err := NewGetCallStatusQuery(&stubReader{}).Query(context.Background(), GetCallStatusMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation || rich.Code != http.StatusBadRequest {
		t.Fatalf("unexpected envelope: %q %d", rich.Category, rich.Code)
	}
}

func TestListActiveCallsQuery_NeverReturnsNil(t *testing.T) {
	out, err := NewListActiveCallsQuery(&stubReader{}).Query(context.Background(), ListActiveCallsMessage{})
	if err != nil {
		t.Fatalf("list active calls: %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", out)
	}
}

func TestListCallLogsQuery_ValidatesAndForwardsFilter(t *testing.T) {
	reader := &stubReader{records: []core.CallRecord{{CallID: "a"}, {CallID: "b"}}}
	q := NewListCallLogsQuery(reader)

	filter := core.CallRecordFilter{TargetKind: core.TargetKindSheet, Status: core.SessionStatusCompleted, Limit: 10}
	out, err := q.Query(context.Background(), ListCallLogsMessage{Filter: filter})
	if err != nil {
		t.Fatalf("list call logs: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected two records, got %d", len(out))
	}
	if reader.filter != filter {
		t.Fatalf("expected filter to be forwarded, got %#v", reader.filter)
	}

	invalid := []core.CallRecordFilter{
		{Limit: -1},
		{Limit: MaxCallLogLimit + 1},
		{TargetKind: "fax"},
		{Status: core.SessionStatusInProgress},
	}
	for _, f := range invalid {
		if _, err := q.Query(context.Background(), ListCallLogsMessage{Filter: f}); err == nil {
			t.Fatalf("expected validation error for %#v", f)
		}
	}
}

func TestGetCallLogQuery_PropagatesReaderError(t *testing.T) {
	notConfigured := core.NewNotConfiguredError("archive off", nil)
	_, err := NewGetCallLogQuery(&stubReader{err: notConfigured}).Query(context.Background(), GetCallLogMessage{CallID: "x"})
	if core.HTTPStatus(err) != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", core.HTTPStatus(err))
	}
}

func TestQueries_NilReaderReturnsInternal(t *testing.T) {
	var q *ListCallLogsQuery
	_, err := q.Query(context.Background(), ListCallLogsMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal envelope, got %v", err)
	}
}
