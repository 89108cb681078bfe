package core

import "context"

const (
	MetricWebhookReceived   = "callverify.webhook.received"
	MetricStepApplied       = "callverify.step.applied"
	MetricBackendUpdate     = "callverify.backend.update"
	MetricBackendDurationMS = "callverify.backend.duration_ms"
	MetricSessionFinalized  = "callverify.session.finalized"
	MetricSessionEvicted    = "callverify.session.evicted"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
