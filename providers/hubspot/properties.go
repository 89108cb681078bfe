package hubspot

import (
	"context"
	"net/http"

	"github.com/goliatone/go-callverify/core"
	"github.com/goliatone/go-callverify/transport"
)

const contactPropertyGroup = "contactinformation"

type PropertyOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// PropertyDefinition is the create payload for a custom contact property.
type PropertyDefinition struct {
	Name        string           `json:"name"`
	Label       string           `json:"label"`
	Type        string           `json:"type"`
	FieldType   string           `json:"fieldType"`
	GroupName   string           `json:"groupName"`
	Description string           `json:"description,omitempty"`
	Options     []PropertyOption `json:"options,omitempty"`
}

// ContactProperties lists the custom contact properties the connector writes.
func ContactProperties() []PropertyDefinition {
	return []PropertyDefinition{
		{Name: "full_physical_address", Label: "Full Physical Address", Type: "string", FieldType: "textarea",
			Description: "Complete physical address for mailing purposes"},
		{Name: "it_decision_maker", Label: "IT Decision Maker", Type: "string", FieldType: "text",
			Description: "Name of the IT decision maker at this contact's company"},
		{Name: "it_dm_direct_number", Label: "IT DM Direct Number", Type: "string", FieldType: "phonenumber",
			Description: "Direct phone number of the IT decision maker"},
		{Name: "gatekeeper_name", Label: "Gatekeeper Name", Type: "string", FieldType: "text",
			Description: "Name of the person who answers calls"},
		{Name: "last_verification_date", Label: "Last Verification Date", Type: "date", FieldType: "date",
			Description: "Date when contact details were last verified by the voice agent"},
		{Name: "verification_status", Label: "Verification Status", Type: "enumeration", FieldType: "select",
			Description: "Current status of contact verification",
			Options: []PropertyOption{
				{Label: "Not Verified", Value: "not_verified"},
				{Label: "Verified", Value: "verified"},
				{Label: "Partially Verified", Value: "partial"},
				{Label: "Failed", Value: "failed"},
				{Label: "Unable to Reach", Value: "unreachable"},
			}},
		{Name: "last_call_notes", Label: "Last Call Notes", Type: "string", FieldType: "textarea",
			Description: "Notes from the last verification call"},
		{Name: PropertyCallAttempts, Label: "Call Attempts", Type: "number", FieldType: "number",
			Description: "Number of call attempts made to this contact"},
	}
}

type SetupResult struct {
	Created  []string `json:"created"`
	Existing []string `json:"existing"`
}

// SetupContactProperties creates every custom property. A 409 from HubSpot
// means the property is already there and is not an error.
func (c *Connector) SetupContactProperties(ctx context.Context) (SetupResult, error) {
	result := SetupResult{Created: []string{}, Existing: []string{}}
	for _, definition := range ContactProperties() {
		definition.GroupName = contactPropertyGroup
		_, err := c.do(ctx, http.MethodPost, "/crm/v3/properties/contacts", definition, nil, nil)
		switch {
		case err == nil:
			result.Created = append(result.Created, definition.Name)
			core.LogWithFields(ctx, c.logger, "info", "hubspot property created", map[string]any{"property": definition.Name})
		case transport.UpstreamStatus(err) == http.StatusConflict:
			result.Existing = append(result.Existing, definition.Name)
			core.LogWithFields(ctx, c.logger, "debug", "hubspot property already exists", map[string]any{"property": definition.Name})
		default:
			return result, core.NewBackendError(err, "hubspot: create contact property failed", map[string]any{
				"property": definition.Name,
			})
		}
	}
	return result, nil
}
