package hubspot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-callverify/core"
	"github.com/goliatone/go-callverify/transport"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type Connector struct {
	accessToken string
	baseURL     string
	properties  map[string]string
	callTitle   string
	transport   core.TransportAdapter
	logger      core.Logger
	now         func() time.Time
}

func New(cfg Config) (*Connector, error) {
	defaults := DefaultConfig()
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, goerrors.New("hubspot: access token is required", goerrors.CategoryValidation).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorBadInput)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaults.BaseURL
	}
	properties := defaults.Properties
	for key, value := range cfg.Properties {
		if strings.TrimSpace(value) == "" {
			continue
		}
		properties[key] = strings.TrimSpace(value)
	}
	callTitle := strings.TrimSpace(cfg.CallTitle)
	if callTitle == "" {
		callTitle = defaults.CallTitle
	}
	adapter := cfg.Transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Connector{
		accessToken: token,
		baseURL:     baseURL,
		properties:  properties,
		callTitle:   callTitle,
		transport:   adapter,
		logger:      glog.Ensure(cfg.Logger),
		now:         now,
	}, nil
}

// Properties maps normalized fields to HubSpot property names. Unmapped keys
// pass through unchanged.
func (c *Connector) Properties(fields core.Fields) map[string]string {
	out := make(map[string]string, len(fields))
	for key, value := range fields {
		name, ok := c.properties[key]
		if !ok {
			name = key
		}
		out[name] = value
	}
	return out
}

func (c *Connector) ApplyUpdate(ctx context.Context, target core.Target, fields core.Fields) (core.Fields, error) {
	contactID, err := c.contactID(target)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return core.Fields{}, nil
	}
	properties := c.Properties(fields)
	if err := c.patchContact(ctx, contactID, properties); err != nil {
		return nil, err
	}
	return core.Fields(properties), nil
}

// LogCall records the finalized call as an engagement associated with the
// contact and bumps the contact's call attempt counter.
func (c *Connector) LogCall(ctx context.Context, target core.Target, entry core.CallLogEntry) error {
	contactID, err := c.contactID(target)
	if err != nil {
		return err
	}
	loggedAt := entry.LoggedAt
	if loggedAt.IsZero() {
		loggedAt = c.now()
	}
	status := "NO_ANSWER"
	if entry.Outcome == core.OutcomeSuccess {
		status = "COMPLETED"
	}
	body := strings.TrimSpace(entry.Notes)
	if body == "" {
		body = "Automated verification call"
	}
	payload := map[string]any{
		"properties": map[string]string{
			"hs_call_title":     c.callTitle,
			"hs_call_body":      body,
			"hs_call_duration":  strconv.FormatInt(int64(entry.Duration.Round(time.Second)/time.Second), 10),
			"hs_call_status":    status,
			"hs_call_direction": "OUTBOUND",
			"hs_timestamp":      strconv.FormatInt(loggedAt.UnixMilli(), 10),
		},
		"associations": []map[string]any{{
			"to": map[string]string{"id": contactID},
			"types": []map[string]any{{
				"associationCategory": "HUBSPOT_DEFINED",
				"associationTypeId":   CallToContactAssociation,
			}},
		}},
	}

	_, err = c.do(ctx, http.MethodPost, "/crm/v3/objects/calls", payload, nil, nil)
	if err != nil {
		return core.NewBackendError(err, "hubspot: log call failed", map[string]any{
			"contact_id": contactID,
			"call_id":    entry.CallID,
		})
	}

	if _, err := c.IncrementCallAttempts(ctx, contactID); err != nil {
		core.LogWithFields(ctx, c.logger, "warn", "hubspot call attempt increment failed", map[string]any{
			"contact_id": contactID,
			"call_id":    entry.CallID,
			"error":      err.Error(),
		})
	}
	return nil
}

// IncrementCallAttempts reads call_attempts and writes it back plus one. A
// missing or unparsable value counts as zero.
func (c *Connector) IncrementCallAttempts(ctx context.Context, contactID string) (int, error) {
	var contact struct {
		Properties map[string]string `json:"properties"`
	}
	_, err := c.do(ctx, http.MethodGet, "/crm/v3/objects/contacts/"+url.PathEscape(contactID), nil,
		map[string]string{"properties": PropertyCallAttempts}, &contact)
	if err != nil {
		return 0, core.NewBackendError(err, "hubspot: read call attempts failed", map[string]any{"contact_id": contactID})
	}
	current, _ := strconv.Atoi(strings.TrimSpace(contact.Properties[PropertyCallAttempts]))
	next := current + 1
	if err := c.patchContact(ctx, contactID, map[string]string{PropertyCallAttempts: strconv.Itoa(next)}); err != nil {
		return 0, err
	}
	return next, nil
}

func (c *Connector) patchContact(ctx context.Context, contactID string, properties map[string]string) error {
	_, err := c.do(ctx, http.MethodPatch, "/crm/v3/objects/contacts/"+url.PathEscape(contactID),
		map[string]any{"properties": properties}, nil, nil)
	if err != nil {
		return core.NewBackendError(err, "hubspot: contact update failed", map[string]any{
			"contact_id":      contactID,
			"upstream_status": transport.UpstreamStatus(err),
		})
	}
	return nil
}

func (c *Connector) do(
	ctx context.Context,
	method string,
	path string,
	body any,
	query map[string]string,
	out any,
) (core.TransportResponse, error) {
	return transport.DoJSON(ctx, c.transport, transport.JSONRequest{
		Service: ServiceID,
		Method:  method,
		URL:     c.baseURL + path,
		Headers: transport.BearerHeaders(c.accessToken),
		Query:   query,
		Body:    body,
		Out:     out,
	})
}

func (c *Connector) contactID(target core.Target) (string, error) {
	if target.Kind != core.TargetKindCRM {
		return "", goerrors.New(fmt.Sprintf("hubspot: unsupported target kind %q", target.Kind), goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorBadInput)
	}
	if err := target.Validate(); err != nil {
		return "", err
	}
	return strings.TrimSpace(target.ContactID), nil
}

var (
	_ core.BackendConnector = (*Connector)(nil)
	_ core.CallLogger       = (*Connector)(nil)
)
