package webhooks

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

// EventHandler receives decoded events. A returned error turns into a 500.
type EventHandler interface {
	HandleEvent(ctx context.Context, event Event) error
}

type EventHandlerFunc func(ctx context.Context, event Event) error

func (f EventHandlerFunc) HandleEvent(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// DeliveryIDExtractor returns the delivery id of a request, or "" when the
// sender did not supply one.
type DeliveryIDExtractor func(req core.InboundRequest) string

func HeaderDeliveryIDExtractor(headers ...string) DeliveryIDExtractor {
	keys := append([]string(nil), headers...)
	return func(req core.InboundRequest) string {
		for _, key := range keys {
			if value := headerValue(req.Headers, key); value != "" {
				return value
			}
		}
		return ""
	}
}

const (
	outcomeRejected  = "rejected"
	outcomeDuplicate = "duplicate"
	outcomeInvalid   = "invalid"
	outcomeFailed    = "failed"
	outcomeProcessed = "processed"
)

// Processor is the webhook ingress: authenticate, dedupe, decode, dispatch.
type Processor struct {
	Verifier   Verifier
	Ledger     DeliveryLedger
	Handler    EventHandler
	ExtractID  DeliveryIDExtractor
	ClaimLease time.Duration
	Logger     core.Logger
	Metrics    core.MetricsRecorder
}

func NewProcessor(verifier Verifier, ledger DeliveryLedger, handler EventHandler) *Processor {
	return &Processor{
		Verifier:   verifier,
		Ledger:     ledger,
		Handler:    handler,
		ExtractID:  HeaderDeliveryIDExtractor(core.DefaultDeliveryHeader, "X-Webhook-Id"),
		ClaimLease: 30 * time.Second,
		Metrics:    core.NopMetricsRecorder{},
	}
}

func (p *Processor) Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if p == nil || p.Handler == nil {
		return internalResult(), goerrors.New("webhooks: processor requires a handler", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.ErrorInternal)
	}
	providerID := strings.TrimSpace(req.ProviderID)
	req.ProviderID = providerID
	fields := map[string]any{"provider_id": providerID}

	if p.Verifier != nil {
		if err := p.Verifier.Verify(ctx, req); err != nil {
			fields["error"] = err.Error()
			p.log(ctx, "warn", "invalid webhook signature", fields)
			p.count(ctx, "", outcomeRejected)
			return core.InboundResult{
				Accepted:   false,
				StatusCode: http.StatusUnauthorized,
				Body:       map[string]any{"error": "invalid signature"},
				Metadata:   map[string]any{"provider_id": providerID, "rejected": true},
			}, err
		}
	}

	deliveryID := ""
	if p.ExtractID != nil {
		deliveryID = p.ExtractID(req)
	}
	claimID := ""
	if deliveryID != "" && p.Ledger != nil {
		fields["delivery_id"] = deliveryID
		record, claimed, err := p.Ledger.Claim(ctx, providerID, deliveryID, req.Body, p.claimLease())
		if err != nil {
			fields["error"] = err.Error()
			p.log(ctx, "error", "delivery claim failed", fields)
			p.count(ctx, "", outcomeFailed)
			return internalResult(), err
		}
		if !claimed {
			p.log(ctx, "info", "duplicate webhook delivery acknowledged", fields)
			p.count(ctx, "", outcomeDuplicate)
			result := receivedResult()
			result.Metadata = map[string]any{
				"provider_id": providerID,
				"delivery_id": deliveryID,
				"status":      record.Status,
				"deduped":     true,
			}
			return result, nil
		}
		claimID = record.ClaimID
	}

	event, err := DecodeEvent(req.Body)
	if err != nil {
		fields["error"] = err.Error()
		p.log(ctx, "error", "webhook processing error", fields)
		p.count(ctx, "", outcomeInvalid)
		p.fail(ctx, claimID, err)
		return internalResult(), err
	}
	eventType := string(event.Type())
	fields["type"] = eventType
	p.log(ctx, "info", "received webhook", fields)

	if err := p.Handler.HandleEvent(ctx, event); err != nil {
		fields["error"] = err.Error()
		p.log(ctx, "error", "webhook processing error", fields)
		p.count(ctx, eventType, outcomeFailed)
		p.fail(ctx, claimID, err)
		return internalResult(), wrapHandlerError(err, fields)
	}

	if claimID != "" {
		if err := p.Ledger.Complete(ctx, claimID); err != nil {
			fields["error"] = err.Error()
			p.log(ctx, "warn", "delivery complete failed", fields)
		}
	}
	p.count(ctx, eventType, outcomeProcessed)
	result := receivedResult()
	result.Metadata = map[string]any{"provider_id": providerID, "type": eventType}
	if deliveryID != "" {
		result.Metadata["delivery_id"] = deliveryID
	}
	return result, nil
}

func (p *Processor) fail(ctx context.Context, claimID string, cause error) {
	if claimID == "" || p.Ledger == nil {
		return
	}
	if err := p.Ledger.Fail(ctx, claimID, cause, time.Time{}); err != nil {
		p.log(ctx, "warn", "delivery fail mark failed", map[string]any{"claim_id": claimID, "error": err.Error()})
	}
}

func (p *Processor) claimLease() time.Duration {
	if p != nil && p.ClaimLease > 0 {
		return p.ClaimLease
	}
	return 30 * time.Second
}

func (p *Processor) log(ctx context.Context, level string, message string, fields map[string]any) {
	core.LogWithFields(ctx, p.Logger, level, message, fields)
}

func (p *Processor) count(ctx context.Context, eventType string, outcome string) {
	if p.Metrics == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	p.Metrics.IncCounter(ctx, core.MetricWebhookReceived, 1, map[string]string{
		"type":    eventType,
		"outcome": outcome,
	})
}

func receivedResult() core.InboundResult {
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Body:       map[string]any{"received": true},
	}
}

func internalResult() core.InboundResult {
	return core.InboundResult{
		Accepted:   false,
		StatusCode: http.StatusInternalServerError,
		Body:       map[string]any{"error": "internal server error"},
	}
}

func wrapHandlerError(err error, fields map[string]any) error {
	var rich *goerrors.Error
	if errors.As(err, &rich) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, fmt.Sprintf("webhooks: %v event handler failed", fields["type"])).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal)
}
