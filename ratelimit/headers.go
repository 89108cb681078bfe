package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// limitHeaders is the subset of a response the policy reacts to. Generic
// X-RateLimit-* names are read first, then HubSpot's own.
type limitHeaders struct {
	limit      *int
	remaining  *int
	resetAt    *time.Time
	retryAfter *time.Duration
}

func readLimitHeaders(headers map[string]string, now time.Time) limitHeaders {
	lookup := make(map[string]string, len(headers))
	for key, value := range headers {
		lookup[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	intHeader := func(names ...string) *int {
		for _, name := range names {
			if n, err := strconv.Atoi(lookup[name]); err == nil {
				return &n
			}
		}
		return nil
	}

	out := limitHeaders{
		limit:     intHeader("x-ratelimit-limit", "x-hubspot-ratelimit-max"),
		remaining: intHeader("x-ratelimit-remaining", "x-hubspot-ratelimit-remaining"),
	}

	// X-RateLimit-Reset is unix seconds; HubSpot sends its rolling window
	// length in milliseconds.
	if reset := intHeader("x-ratelimit-reset"); reset != nil && *reset > 0 {
		at := time.Unix(int64(*reset), 0).UTC()
		out.resetAt = &at
	} else if window := intHeader("x-hubspot-ratelimit-interval-milliseconds"); window != nil && *window > 0 {
		at := now.Add(time.Duration(*window) * time.Millisecond)
		out.resetAt = &at
	}

	if raw := lookup["retry-after"]; raw != "" {
		var wait time.Duration
		if seconds, err := strconv.Atoi(raw); err == nil {
			wait = time.Duration(seconds) * time.Second
		} else if at, err := http.ParseTime(raw); err == nil {
			wait = at.Sub(now)
		}
		if wait > 0 {
			out.retryAfter = &wait
		}
	}
	return out
}

// exhausted reports a spent window on an otherwise successful response.
func (h limitHeaders) exhausted() bool {
	if h.remaining == nil || *h.remaining != 0 {
		return false
	}
	return h.resetAt != nil || h.limit != nil || h.retryAfter != nil
}
