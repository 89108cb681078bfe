// Package webhooks authenticates and decodes call-agent webhooks and drives
// them through the ingress processor.
//
// Deliveries that carry a delivery id go through a claim lifecycle:
// processing -> processed | retry_ready. A processed delivery is acknowledged
// without running the handler again.
package webhooks
