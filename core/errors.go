package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput             = "CALL_BAD_INPUT"
	ErrorSignatureInvalid     = "WEBHOOK_SIGNATURE_INVALID"
	ErrorPayloadInvalid       = "WEBHOOK_PAYLOAD_INVALID"
	ErrorSessionNotFound      = "SESSION_NOT_FOUND"
	ErrorSessionExists        = "SESSION_EXISTS"
	ErrorRoomInUse            = "ROOM_IN_USE"
	ErrorRoutingTargetMissing = "ROUTING_TARGET_MISSING"
	ErrorBackend              = "BACKEND_ERROR"
	ErrorBackendThrottled     = "BACKEND_THROTTLED"
	ErrorNotConfigured        = "NOT_CONFIGURED"
	ErrorInternal             = "INTERNAL"
)

func newError(message string, category goerrors.Category, code int, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func wrapError(source error, category goerrors.Category, message string, code int, textCode string, metadata map[string]any) *goerrors.Error {
	if source == nil {
		return newError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	// Wrap keeps the source category for rich errors.
	err.Category = category
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func badInput(message string, metadata map[string]any) error {
	return newError(message, goerrors.CategoryBadInput, http.StatusBadRequest, ErrorBadInput, metadata)
}

func sessionNotFound(callID string) error {
	return newError("core: call session not found", goerrors.CategoryNotFound, http.StatusNotFound, ErrorSessionNotFound,
		map[string]any{"call_id": callID})
}

func routingTargetMissing(message string, metadata map[string]any) error {
	return newError(message, goerrors.CategoryNotFound, http.StatusNotFound, ErrorRoutingTargetMissing, metadata)
}

// NewSignatureError builds the AuthError envelope returned for rejected webhooks.
func NewSignatureError(source error, metadata map[string]any) error {
	return wrapError(source, goerrors.CategoryAuth, "webhook signature verification failed",
		http.StatusUnauthorized, ErrorSignatureInvalid, metadata)
}

// NewPayloadError builds the Fatal envelope for an undecodable webhook body.
func NewPayloadError(source error, metadata map[string]any) error {
	return wrapError(source, goerrors.CategoryBadInput, "webhook payload is malformed",
		http.StatusInternalServerError, ErrorPayloadInvalid, metadata)
}

// NewBackendError wraps a connector failure. Connectors return it so callers
// can tell a remote write failure from a local one.
func NewBackendError(source error, message string, metadata map[string]any) error {
	if strings.TrimSpace(message) == "" {
		message = "backend update failed"
	}
	return wrapError(source, goerrors.CategoryExternal, message, http.StatusBadGateway, ErrorBackend, metadata)
}

func NewNotConfiguredError(message string, metadata map[string]any) error {
	return newError(message, goerrors.CategoryOperation, http.StatusNotImplemented, ErrorNotConfigured, metadata)
}

func IsNotFound(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryNotFound)
}

func IsAuthError(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryAuth)
}

func IsBackendError(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == ErrorBackend || rich.Category == goerrors.CategoryExternal
}

func IsConflict(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryConflict)
}

// HTTPStatus resolves the response status for err, defaulting to 500.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		if rich.Code != 0 {
			return rich.Code
		}
		return categoryHTTPStatus(rich.Category)
	}
	return http.StatusInternalServerError
}

func categoryHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewFieldError reports one invalid field on a command or query message.
func NewFieldError(scope string, field string, message string) error {
	return goerrors.NewValidation(scope+": validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

// AsValidation re-labels err as a 400 validation failure.
func AsValidation(err error, message string) error {
	if err == nil {
		return nil
	}
	return wrapError(err, goerrors.CategoryValidation, message, http.StatusBadRequest, ErrorBadInput, nil)
}

// MissingDependency is returned by handlers built without their backing service.
func MissingDependency(scope string, dependency string) error {
	return newError(scope+": "+dependency+" is required", goerrors.CategoryInternal,
		http.StatusInternalServerError, ErrorInternal, nil)
}
