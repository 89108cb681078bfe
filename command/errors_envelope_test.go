package command

import (
	"context"
	"testing"

	"github.com/goliatone/go-callverify/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestEndCallMessage_ValidateReturnsRichError(t *testing.T) {
	err := (EndCallMessage{CallID: " "}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.ErrorBadInput, rich.TextCode)
	}
}

func TestCreateSessionCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *CreateSessionCommand
	err := cmd.Execute(context.Background(), CreateSessionMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}
