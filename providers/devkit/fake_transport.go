// Package devkit holds test doubles shared by the connector packages.
package devkit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/goliatone/go-callverify/core"
)

type TransportScript struct {
	Response core.TransportResponse
	Err      error
}

// JSON builds a script answering with status and a JSON body.
func JSON(status int, body string) TransportScript {
	return TransportScript{Response: core.TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte(body),
	}}
}

type route struct {
	method string
	path   string
	script TransportScript
}

// FakeTransportAdapter records requests and answers from routes first, then
// from the sequential scripts. The last script repeats once they run out.
type FakeTransportAdapter struct {
	mu       sync.Mutex
	routes   []route
	scripts  []TransportScript
	requests []core.TransportRequest
}

func NewFakeTransportAdapter(scripts ...TransportScript) *FakeTransportAdapter {
	return &FakeTransportAdapter{scripts: append([]TransportScript(nil), scripts...)}
}

// On answers every request whose method and URL path match with script.
func (a *FakeTransportAdapter) On(method string, path string, script TransportScript) *FakeTransportAdapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.routes = append(a.routes, route{
		method: strings.ToUpper(strings.TrimSpace(method)),
		path:   strings.TrimSpace(path),
		script: script,
	})
	return a
}

func (a *FakeTransportAdapter) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil {
		return core.TransportResponse{}, fmt.Errorf("devkit: fake transport adapter is nil")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests = append(a.requests, cloneTransportRequest(req))
	if script, ok := a.match(req); ok {
		return cloneTransportResponse(script.Response), script.Err
	}
	index := len(a.requests) - 1
	if index < len(a.scripts) {
		script := a.scripts[index]
		return cloneTransportResponse(script.Response), script.Err
	}
	if len(a.scripts) > 0 {
		last := a.scripts[len(a.scripts)-1]
		return cloneTransportResponse(last.Response), last.Err
	}
	return core.TransportResponse{StatusCode: 200, Headers: map[string]string{}}, nil
}

func (a *FakeTransportAdapter) match(req core.TransportRequest) (TransportScript, bool) {
	if len(a.routes) == 0 {
		return TransportScript{}, false
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = "GET"
	}
	path := req.URL
	if parsed, err := url.Parse(req.URL); err == nil {
		path = parsed.Path
	}
	for _, candidate := range a.routes {
		if candidate.method == method && candidate.path == path {
			return candidate.script, true
		}
	}
	return TransportScript{}, false
}

func (a *FakeTransportAdapter) Requests() []core.TransportRequest {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]core.TransportRequest, 0, len(a.requests))
	for _, item := range a.requests {
		out = append(out, cloneTransportRequest(item))
	}
	return out
}

func cloneTransportRequest(in core.TransportRequest) core.TransportRequest {
	out := core.TransportRequest{
		Method:               in.Method,
		URL:                  in.URL,
		Headers:              map[string]string{},
		Query:                map[string]string{},
		Body:                 append([]byte(nil), in.Body...),
		Timeout:              in.Timeout,
		MaxResponseBodyBytes: in.MaxResponseBodyBytes,
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Query {
		out.Query[key] = value
	}
	return out
}

func cloneTransportResponse(in core.TransportResponse) core.TransportResponse {
	out := core.TransportResponse{
		StatusCode: in.StatusCode,
		Headers:    map[string]string{},
		Body:       append([]byte(nil), in.Body...),
		Metadata:   map[string]any{},
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

var _ core.TransportAdapter = (*FakeTransportAdapter)(nil)
