package inbound

import (
	"net/http"

	"github.com/goliatone/go-callverify/core"
	goerrors "github.com/goliatone/go-errors"
)

func inboundError(message string, category goerrors.Category, code int, textCode string, metadata map[string]any) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// handlerFailure reports a handler error as a 500. A go-errors envelope from
// the orchestrator keeps its text code so logs still say what failed.
func handlerFailure(source error, message string, metadata map[string]any) error {
	if source == nil {
		return inboundInternal(message, metadata)
	}
	textCode := core.ErrorInternal
	var rich *goerrors.Error
	if goerrors.As(source, &rich) && rich.TextCode != "" {
		textCode = rich.TextCode
	}
	err := goerrors.Wrap(source, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(textCode)
	err.Category = goerrors.CategoryInternal
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func inboundBadInput(message string, metadata map[string]any) error {
	return inboundError(message, goerrors.CategoryBadInput, http.StatusBadRequest, core.ErrorBadInput, metadata)
}

func inboundInternal(message string, metadata map[string]any) error {
	return inboundError(message, goerrors.CategoryInternal, http.StatusInternalServerError, core.ErrorInternal, metadata)
}
