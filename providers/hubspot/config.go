package hubspot

import (
	"strings"
	"time"

	"github.com/goliatone/go-callverify/core"
)

const (
	ServiceID = "hubspot"

	PropertyCallAttempts = "call_attempts"

	// CallToContactAssociation is HubSpot's defined association type from a
	// call engagement to a contact.
	CallToContactAssociation = 194
)

type Config struct {
	AccessToken string
	BaseURL     string
	// Properties overrides entries of DefaultPropertyMap. Keys without an
	// entry are written under their normalized name.
	Properties map[string]string
	CallTitle  string
	Transport  core.TransportAdapter
	Logger     core.Logger
	Now        func() time.Time
}

func DefaultConfig() Config {
	return Config{
		BaseURL:    core.DefaultHubSpotBaseURL,
		Properties: DefaultPropertyMap(),
		CallTitle:  "Verification Call (Voice Agent)",
	}
}

// DefaultPropertyMap maps normalized field names to HubSpot contact properties.
func DefaultPropertyMap() map[string]string {
	return map[string]string{
		core.FieldPhysicalAddress: "full_physical_address",
		core.FieldEmailAddress:    "email",
		core.FieldDMName:          "it_decision_maker",
		core.FieldDirectNumber:    "it_dm_direct_number",
		core.FieldLastCallDate:    "last_verification_date",
		core.FieldCallNotes:       "last_call_notes",
	}
}

// ConfigFromCore builds a connector config from the service configuration.
func ConfigFromCore(cfg core.HubSpotConfig) Config {
	out := DefaultConfig()
	out.AccessToken = strings.TrimSpace(cfg.AccessToken)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		out.BaseURL = base
	}
	for key, value := range cfg.Properties {
		out.Properties[key] = value
	}
	return out
}
