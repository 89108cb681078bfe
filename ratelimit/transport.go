package ratelimit

import (
	"context"
	"errors"
	"net/url"

	"github.com/goliatone/go-callverify/core"
	glog "github.com/goliatone/go-logger/glog"
)

// Transport wraps an adapter so calls to a throttled host fail fast with a
// 429 envelope instead of reaching the backend.
type Transport struct {
	Next   core.TransportAdapter
	Policy *AdaptivePolicy
	Logger core.Logger
}

func NewTransport(next core.TransportAdapter, policy *AdaptivePolicy, logger core.Logger) *Transport {
	if policy == nil {
		policy = NewAdaptivePolicy(NewMemoryStateStore())
	}
	return &Transport{Next: next, Policy: policy, Logger: glog.Ensure(logger)}
}

func (t *Transport) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	host := requestHost(req.URL)
	if err := t.Policy.BeforeCall(ctx, host); err != nil {
		var throttled ThrottledError
		if errors.As(err, &throttled) {
			core.LogWithFields(ctx, t.Logger, "warn", "backend call held back by rate limit", map[string]any{
				"host":           host,
				"retry_after_ms": throttled.RetryAfter.Milliseconds(),
			})
			return core.TransportResponse{}, throttled.ToServiceError()
		}
		return core.TransportResponse{}, err
	}

	res, err := t.Next.Do(ctx, req)
	if res.StatusCode != 0 {
		if stateErr := t.Policy.AfterCall(ctx, host, res); stateErr != nil {
			core.LogWithFields(ctx, t.Logger, "warn", "rate limit state update failed", map[string]any{
				"host":  host,
				"error": stateErr.Error(),
			})
		}
	}
	return res, err
}

func requestHost(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return parsed.Host
}

var _ core.TransportAdapter = (*Transport)(nil)
