// Package inbound routes decoded webhook events to the call orchestrator by
// event type.
package inbound
