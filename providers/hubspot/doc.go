// Package hubspot is the CRM connector: it writes normalized call fields to
// HubSpot contact properties, logs finalized calls as call engagements and
// provisions the custom contact properties the integration relies on.
package hubspot
