package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/goliatone/go-callverify/core"
	goerrors "github.com/goliatone/go-errors"
)

// JSONRequest describes one JSON call. Body is marshaled when non-nil and Out,
// when non-nil, receives the decoded 2xx response.
type JSONRequest struct {
	Service string
	Method  string
	URL     string
	Headers map[string]string
	Query   map[string]string
	Body    any
	Out     any
}

// DoJSON sends req through adapter and decodes the response. Non-2xx
// responses are returned as StatusError envelopes.
func DoJSON(ctx context.Context, adapter core.TransportAdapter, req JSONRequest) (core.TransportResponse, error) {
	if adapter == nil {
		return core.TransportResponse{}, transportError(
			"transport: adapter is required",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"service": req.Service},
		)
	}
	headers := map[string]string{"Accept": "application/json"}
	for key, value := range req.Headers {
		headers[key] = value
	}
	var payload []byte
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return core.TransportResponse{}, transportWrapError(
				err,
				goerrors.CategoryBadInput,
				"transport: encode request body",
				http.StatusBadRequest,
				map[string]any{"service": req.Service},
			)
		}
		payload = encoded
		headers["Content-Type"] = "application/json"
	}

	res, err := adapter.Do(ctx, core.TransportRequest{
		Method:  req.Method,
		URL:     req.URL,
		Headers: headers,
		Query:   req.Query,
		Body:    payload,
	})
	if err != nil {
		return res, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return res, StatusError(req.Service, res)
	}
	if req.Out != nil && len(strings.TrimSpace(string(res.Body))) > 0 {
		if err := json.Unmarshal(res.Body, req.Out); err != nil {
			return res, transportWrapError(
				err,
				goerrors.CategoryExternal,
				"transport: decode response body",
				http.StatusBadGateway,
				map[string]any{"service": req.Service, "status_code": res.StatusCode},
			)
		}
	}
	return res, nil
}

func BearerHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + strings.TrimSpace(token)}
}
