package command

import (
	"context"
	"net/http"
	"testing"

	"github.com/goliatone/go-callverify/core"
	"github.com/goliatone/go-callverify/providers/hubspot"
	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
)

type stubSessionService struct {
	createFn func(ctx context.Context, req core.CreateSessionRequest) (core.Session, error)
	endFn    func(ctx context.Context, callID string, reason string) (core.CallSummary, error)
}

func (s stubSessionService) CreateSession(ctx context.Context, req core.CreateSessionRequest) (core.Session, error) {
	if s.createFn == nil {
		return core.Session{}, nil
	}
	return s.createFn(ctx, req)
}

func (s stubSessionService) EndCall(ctx context.Context, callID string, reason string) (core.CallSummary, error) {
	if s.endFn == nil {
		return core.CallSummary{}, nil
	}
	return s.endFn(ctx, callID, reason)
}

type stubInstaller struct {
	result hubspot.SetupResult
	err    error
}

func (s stubInstaller) SetupContactProperties(context.Context) (hubspot.SetupResult, error) {
	return s.result, s.err
}

func TestCreateSessionCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	called := false
	svc := stubSessionService{
		createFn: func(_ context.Context, req core.CreateSessionRequest) (core.Session, error) {
			called = true
			if req.Target.ContactID != "c-42" {
				t.Fatalf("expected contact c-42, got %q", req.Target.ContactID)
			}
			return core.Session{CallID: "call-1", RoomName: "room-1", Target: req.Target}, nil
		},
	}

	cmd := NewCreateSessionCommand(svc)
	collector := gocmd.NewResult[core.Session]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, CreateSessionMessage{Request: core.CreateSessionRequest{
		Target: core.Target{Kind: core.TargetKindCRM, ContactID: "c-42"},
	}})
	if err != nil {
		t.Fatalf("execute create session: %v", err)
	}
	if !called {
		t.Fatalf("expected create session invocation")
	}
	session, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if session.CallID != "call-1" || session.RoomName != "room-1" {
		t.Fatalf("unexpected session: %#v", session)
	}
}

func TestCreateSessionCommand_RejectsInvalidTarget(t *testing.T) {
	svc := stubSessionService{
		createFn: func(context.Context, core.CreateSessionRequest) (core.Session, error) {
			t.Fatalf("service must not be called for an invalid target")
			return core.Session{}, nil
		},
	}
	cmd := NewCreateSessionCommand(svc)

	cases := []core.Target{
		{},
		{Kind: core.TargetKindSheet},
		{Kind: core.TargetKindCRM, ContactID: "  "},
	}
	for _, target := range cases {
		err := cmd.Execute(context.Background(), CreateSessionMessage{Request: core.CreateSessionRequest{Target: target}})
		if err == nil {
			t.Fatalf("expected validation error for %#v", target)
		}
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("expected go-errors envelope, got %T", err)
		}
		if rich.Category != goerrors.CategoryValidation {
			t.Fatalf("expected validation category for %#v, got %q", target, rich.Category)
		}
		if rich.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rich.Code)
		}
	}
}

func TestEndCallCommand_StoresSummaryEvenOnFinalizeError(t *testing.T) {
	finalizeErr := core.NewBackendError(nil, "backend down", nil)
	svc := stubSessionService{
		endFn: func(_ context.Context, callID string, reason string) (core.CallSummary, error) {
			if callID != "call-1" || reason != "operator" {
				t.Fatalf("unexpected end call payload: %q %q", callID, reason)
			}
			return core.CallSummary{CallID: callID, Status: core.SessionStatusEndedEarly}, finalizeErr
		},
	}

	collector := gocmd.NewResult[core.CallSummary]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewEndCallCommand(svc).Execute(ctx, EndCallMessage{CallID: "call-1", Reason: "operator"})
	if err != finalizeErr {
		t.Fatalf("expected finalize error to surface, got %v", err)
	}
	summary, ok := collector.Load()
	if !ok || summary.Status != core.SessionStatusEndedEarly {
		t.Fatalf("expected ended_early summary to be stored, got %#v (stored=%t)", summary, ok)
	}
}

func TestEndCallCommand_NotFoundStoresNothing(t *testing.T) {
	svc := stubSessionService{
		endFn: func(context.Context, string, string) (core.CallSummary, error) {
			return core.CallSummary{}, goerrors.New("missing", goerrors.CategoryNotFound)
		},
	}
	collector := gocmd.NewResult[core.CallSummary]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err := NewEndCallCommand(svc).Execute(ctx, EndCallMessage{CallID: "ghost"})
	if !core.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, ok := collector.Load(); ok {
		t.Fatalf("expected no stored summary")
	}
}

func TestSetupContactPropertiesCommand_StoresResult(t *testing.T) {
	installer := stubInstaller{result: hubspot.SetupResult{
		Created:  []string{"call_status"},
		Existing: []string{"call_attempts"},
	}}
	collector := gocmd.NewResult[hubspot.SetupResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := NewSetupContactPropertiesCommand(installer).Execute(ctx, SetupContactPropertiesMessage{}); err != nil {
		t.Fatalf("execute setup: %v", err)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if len(result.Created) != 1 || len(result.Existing) != 1 {
		t.Fatalf("unexpected setup result: %#v", result)
	}
}

func TestSetupContactPropertiesCommand_WithoutInstallerIsNotConfigured(t *testing.T) {
	err := NewSetupContactPropertiesCommand(nil).Execute(context.Background(), SetupContactPropertiesMessage{})
	if core.HTTPStatus(err) != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d (%v)", core.HTTPStatus(err), err)
	}
}
