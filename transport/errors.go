package transport

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-callverify/core"
	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorUpstreamUnauthorized = "UPSTREAM_UNAUTHORIZED"
	ErrorUpstreamNotFound     = "UPSTREAM_NOT_FOUND"
	ErrorUpstreamConflict     = "UPSTREAM_CONFLICT"
	ErrorUpstreamRateLimited  = "UPSTREAM_RATE_LIMITED"
)

const statusErrorBodyLimit = 512

func transportError(
	message string,
	category goerrors.Category,
	code int,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	metadata map[string]any,
) error {
	if source == nil {
		return transportError(message, category, code, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	err.Category = category
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.ErrorBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorUpstreamUnauthorized
	case goerrors.CategoryNotFound:
		return ErrorUpstreamNotFound
	case goerrors.CategoryConflict:
		return ErrorUpstreamConflict
	case goerrors.CategoryRateLimit:
		return ErrorUpstreamRateLimited
	case goerrors.CategoryExternal:
		return core.ErrorBackend
	default:
		return core.ErrorInternal
	}
}

// StatusError converts a non-2xx response into an envelope whose category
// follows the upstream status. The upstream status is kept in metadata.
func StatusError(service string, res core.TransportResponse) error {
	category := goerrors.CategoryExternal
	switch res.StatusCode {
	case http.StatusUnauthorized:
		category = goerrors.CategoryAuth
	case http.StatusForbidden:
		category = goerrors.CategoryAuthz
	case http.StatusNotFound:
		category = goerrors.CategoryNotFound
	case http.StatusConflict:
		category = goerrors.CategoryConflict
	case http.StatusTooManyRequests:
		category = goerrors.CategoryRateLimit
	}
	body := strings.TrimSpace(string(res.Body))
	if len(body) > statusErrorBodyLimit {
		body = body[:statusErrorBodyLimit]
	}
	return transportError(
		fmt.Sprintf("transport: %s returned status %d", service, res.StatusCode),
		category,
		http.StatusBadGateway,
		map[string]any{
			"service":         service,
			"upstream_status": res.StatusCode,
			"upstream_body":   body,
		},
	)
}

// UpstreamStatus returns the upstream status recorded by StatusError, or 0.
func UpstreamStatus(err error) int {
	var rich *goerrors.Error
	if !errors.As(err, &rich) || rich.Metadata == nil {
		return 0
	}
	status, _ := rich.Metadata["upstream_status"].(int)
	return status
}
