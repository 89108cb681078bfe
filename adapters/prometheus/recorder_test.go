package prometheus

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goliatone/go-callverify/core"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_CountersUseSanitizedNamesAndLabels(t *testing.T) {
	recorder := NewRecorder()
	ctx := context.Background()

	recorder.IncCounter(ctx, core.MetricWebhookReceived, 1, map[string]string{"outcome": "processed", "type": "function_call"})
	recorder.IncCounter(ctx, core.MetricWebhookReceived, 2, map[string]string{"outcome": "processed", "type": "function_call"})
	recorder.IncCounter(ctx, core.MetricWebhookReceived, 1, map[string]string{"outcome": "rejected"})

	entry := recorder.counters["callverify_webhook_received_total"]
	if entry == nil {
		t.Fatalf("expected counter to be registered, have %v", recorder.counters)
	}
	if got := testutil.ToFloat64(entry.vec.WithLabelValues("processed", "function_call")); got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
	if got := testutil.ToFloat64(entry.vec.WithLabelValues("rejected", "")); got != 1 {
		t.Fatalf("expected rejected count 1 with an empty type label, got %v", got)
	}
}

func TestRecorder_DropsUnknownLabelsAfterFirstUse(t *testing.T) {
	recorder := NewRecorder()
	ctx := context.Background()
	recorder.IncCounter(ctx, "callverify.session.finalized", 1, map[string]string{"status": "completed"})
	recorder.IncCounter(ctx, "callverify.session.finalized", 1, map[string]string{"status": "completed", "extra": "x"})

	entry := recorder.counters["callverify_session_finalized_total"]
	if got := testutil.ToFloat64(entry.vec.WithLabelValues("completed")); got != 2 {
		t.Fatalf("expected count 2, got %v", got)
	}
}

func TestRecorder_HandlerExposesHistograms(t *testing.T) {
	recorder := NewRecorder()
	recorder.ObserveHistogram(context.Background(), core.MetricBackendDurationMS, 42, map[string]string{"kind": "crm"})

	srv := httptest.NewServer(recorder.Handler())
	defer srv.Close()

	res, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	text := string(body)
	if !strings.Contains(text, `callverify_backend_duration_ms_count{kind="crm"} 1`) {
		t.Fatalf("expected histogram sample in scrape output:\n%s", text)
	}
	if !strings.Contains(text, `callverify_backend_duration_ms_sum{kind="crm"} 42`) {
		t.Fatalf("expected histogram sum in scrape output:\n%s", text)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"callverify.http.requests": "callverify_http_requests",
		"status-code":              "status_code",
		"9lives":                   "_9lives",
		"  ":                       "",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Fatalf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
