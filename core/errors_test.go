package core

import (
	"errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestErrorEnvelopes(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		textCode string
	}{
		{name: "signature", err: NewSignatureError(errors.New("mismatch"), nil), status: http.StatusUnauthorized, textCode: ErrorSignatureInvalid},
		{name: "payload", err: NewPayloadError(errors.New("bad json"), nil), status: http.StatusInternalServerError, textCode: ErrorPayloadInvalid},
		{name: "backend", err: NewBackendError(errors.New("503"), "", nil), status: http.StatusBadGateway, textCode: ErrorBackend},
		{name: "not configured", err: NewNotConfiguredError("no archive", nil), status: http.StatusNotImplemented, textCode: ErrorNotConfigured},
		{name: "not found", err: sessionNotFound("call_1"), status: http.StatusNotFound, textCode: ErrorSessionNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HTTPStatus(tc.err); got != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, got)
			}
			var rich *goerrors.Error
			if !goerrors.As(tc.err, &rich) {
				t.Fatalf("expected go-errors envelope")
			}
			if rich.TextCode != tc.textCode {
				t.Fatalf("expected text code %q, got %q", tc.textCode, rich.TextCode)
			}
		})
	}
}

func TestWrapErrorOverridesSourceCategory(t *testing.T) {
	source := badInput("bad header", nil)
	err := NewSignatureError(source, map[string]any{"header": "X-Livekit-Signature"})
	if !IsAuthError(err) {
		t.Fatalf("expected auth category after wrapping, got %v", err)
	}
	if !IsBackendError(NewBackendError(source, "sheet write failed", nil)) {
		t.Fatalf("expected backend classification")
	}
	if IsBackendError(errors.New("plain")) {
		t.Fatalf("plain errors are not backend errors")
	}
}

func TestHTTPStatusDefaults(t *testing.T) {
	if HTTPStatus(nil) != http.StatusOK {
		t.Fatalf("expected 200 for nil")
	}
	if HTTPStatus(errors.New("boom")) != http.StatusInternalServerError {
		t.Fatalf("expected 500 for plain error")
	}
	if HTTPStatus(goerrors.New("dup", goerrors.CategoryConflict)) != http.StatusConflict {
		t.Fatalf("expected category fallback")
	}
}

func TestMessageErrorHelpers(t *testing.T) {
	var rich *goerrors.Error
	if !goerrors.As(NewFieldError("query", "limit", "too large"), &rich) {
		t.Fatalf("expected go-errors envelope")
	}
	if rich.Category != goerrors.CategoryValidation || rich.Code != http.StatusBadRequest {
		t.Fatalf("unexpected field error %s/%d", rich.Category, rich.Code)
	}

	if AsValidation(nil, "ignored") != nil {
		t.Fatalf("expected nil passthrough")
	}
	source := errors.New("bad target")
	wrapped := AsValidation(source, "command: invalid call target")
	if !errors.Is(wrapped, source) {
		t.Fatalf("expected source to be preserved")
	}
	if HTTPStatus(wrapped) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", HTTPStatus(wrapped))
	}

	missing := MissingDependency("command", "session service")
	if HTTPStatus(missing) != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", HTTPStatus(missing))
	}
	if !goerrors.As(missing, &rich) || rich.Message != "command: session service is required" {
		t.Fatalf("unexpected dependency error %v", missing)
	}
}
