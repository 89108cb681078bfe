package auth

import (
	"net/http"

	"github.com/goliatone/go-callverify/core"
	goerrors "github.com/goliatone/go-errors"
)

const ErrorTokenUnavailable = "TOKEN_UNAVAILABLE"

func authConfigError(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryValidation).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func authWrapError(source error, category goerrors.Category, message string, code int, metadata map[string]any) error {
	if source == nil {
		source = goerrors.New(message, category)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(ErrorTokenUnavailable)
	err.Category = category
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}
