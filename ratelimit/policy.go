// Package ratelimit tracks backend rate-limit headers per host and holds
// outbound calls back while a host is throttled.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-callverify/core"
	goerrors "github.com/goliatone/go-errors"
)

type ThrottledError struct {
	Host       string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf("ratelimit: host %q throttled for %s", strings.TrimSpace(e.Host), e.RetryAfter)
}

// ToServiceError maps the throttle to a 429 envelope.
func (e ThrottledError) ToServiceError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.ErrorBackendThrottled).
		WithMetadata(map[string]any{
			"host":           strings.TrimSpace(e.Host),
			"retry_after_ms": e.RetryAfter.Milliseconds(),
		})
}

// AdaptivePolicy reads the limit headers HubSpot and Google send back and
// backs off exponentially on 429s that carry no Retry-After.
type AdaptivePolicy struct {
	Store          StateStore
	Now            func() time.Time
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewAdaptivePolicy(store StateStore) *AdaptivePolicy {
	return &AdaptivePolicy{
		Store:          store,
		Now:            time.Now,
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
	}
}

// BeforeCall returns a ThrottledError while host is inside a throttle or
// exhausted window.
func (p *AdaptivePolicy) BeforeCall(ctx context.Context, host string) error {
	if p == nil || p.Store == nil {
		return nil
	}
	state, err := p.Store.Get(ctx, hostKey(host))
	if errors.Is(err, ErrStateNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if wait := state.blockedFor(p.now()); wait > 0 {
		return ThrottledError{Host: state.Host, RetryAfter: wait}
	}
	return nil
}

// AfterCall records the response headers for host and opens a throttle
// window on a 429 or an exhausted quota.
func (p *AdaptivePolicy) AfterCall(ctx context.Context, host string, res core.TransportResponse) error {
	if p == nil || p.Store == nil {
		return nil
	}
	host = hostKey(host)
	now := p.now()

	state, err := p.Store.Get(ctx, host)
	switch {
	case errors.Is(err, ErrStateNotFound):
		state = State{Host: host}
	case err != nil:
		return err
	}

	headers := readLimitHeaders(res.Headers, now)
	state.LastStatus = res.StatusCode
	state.UpdatedAt = now
	state.RetryAfter = headers.retryAfter
	if headers.limit != nil {
		state.Limit = *headers.limit
	}
	if headers.remaining != nil {
		state.Remaining = *headers.remaining
	}
	if headers.resetAt != nil {
		state.ResetAt = headers.resetAt
	}

	throttled := res.StatusCode == http.StatusTooManyRequests ||
		(res.StatusCode < http.StatusInternalServerError && headers.exhausted())
	if !throttled {
		state.Attempts = 0
		state.ThrottledUntil = nil
		return p.Store.Upsert(ctx, state)
	}

	state.Attempts++
	wait := p.backoff(state.Attempts)
	if headers.retryAfter != nil {
		wait = *headers.retryAfter
	}
	until := now.Add(wait)
	state.ThrottledUntil = &until
	return p.Store.Upsert(ctx, state)
}

func (p *AdaptivePolicy) now() time.Time {
	if p.Now == nil {
		return time.Now().UTC()
	}
	return p.Now().UTC()
}

// backoff doubles InitialBackoff per attempt, capped at MaxBackoff.
func (p *AdaptivePolicy) backoff(attempt int) time.Duration {
	wait := p.InitialBackoff
	if wait <= 0 {
		wait = time.Second
	}
	ceiling := p.MaxBackoff
	if ceiling <= 0 {
		ceiling = time.Minute
	}
	for i := 1; i < attempt && wait < ceiling; i++ {
		wait *= 2
	}
	return min(wait, ceiling)
}
