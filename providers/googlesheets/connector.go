package googlesheets

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-callverify/auth"
	"github.com/goliatone/go-callverify/core"
	"github.com/goliatone/go-callverify/transport"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const (
	ServiceID = "google_sheets"

	// ColumnCallSummary receives the call notes when a call is logged.
	ColumnCallSummary = "call_summary"

	headerCacheKeyPrefix = "callverify::sheet_headers::v1"
	valueInputOption     = "USER_ENTERED"
)

type Config struct {
	SpreadsheetID  string
	SheetName      string
	BaseURL        string
	Tokens         auth.TokenSource
	Transport      core.TransportAdapter
	Cache          repositorycache.CacheService
	HeaderCacheTTL time.Duration
	Logger         core.Logger
}

type Connector struct {
	spreadsheetID string
	sheetName     string
	baseURL       string
	tokens        auth.TokenSource
	transport     core.TransportAdapter
	cache         repositorycache.CacheService
	logger        core.Logger
}

type valueRange struct {
	Range  string     `json:"range"`
	Values [][]string `json:"values"`
}

type batchUpdateRequest struct {
	ValueInputOption string       `json:"valueInputOption"`
	Data             []valueRange `json:"data"`
}

func New(cfg Config) (*Connector, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, configError("googlesheets: spreadsheet id is required")
	}
	if cfg.Tokens == nil {
		return nil, configError("googlesheets: token source is required")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = core.DefaultSheetName
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = core.DefaultSheetsBaseURL
	}
	adapter := cfg.Transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	cache := cfg.Cache
	if cache == nil {
		cacheConfig := repositorycache.DefaultConfig()
		if cfg.HeaderCacheTTL > 0 {
			cacheConfig.TTL = cfg.HeaderCacheTTL
		}
		service, err := repositorycache.NewCacheService(cacheConfig)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "googlesheets: create header cache").
				WithCode(http.StatusInternalServerError).
				WithTextCode(core.ErrorInternal)
		}
		cache = service
	}
	return &Connector{
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		baseURL:       baseURL,
		tokens:        cfg.Tokens,
		transport:     adapter,
		cache:         cache,
		logger:        glog.Ensure(cfg.Logger),
	}, nil
}

// Headers returns the sheet's first row, served from cache while fresh.
func (c *Connector) Headers(ctx context.Context) ([]string, error) {
	headers, err := repositorycache.GetOrFetch(ctx, c.cache, c.headerCacheKey(), func(ctx context.Context) ([]string, error) {
		var payload valueRange
		if err := c.do(ctx, http.MethodGet, c.valuesURL(sheetRef(c.sheetName)+"!1:1"), nil, &payload); err != nil {
			return nil, err
		}
		if len(payload.Values) == 0 {
			return []string{}, nil
		}
		return append([]string(nil), payload.Values[0]...), nil
	})
	if err != nil {
		return nil, core.NewBackendError(err, "googlesheets: read header row failed", map[string]any{
			"spreadsheet_id": c.spreadsheetID,
			"sheet":          c.sheetName,
		})
	}
	return append([]string(nil), headers...), nil
}

// InvalidateHeaders drops the cached header row.
func (c *Connector) InvalidateHeaders(ctx context.Context) error {
	return c.cache.Delete(ctx, c.headerCacheKey())
}

// ApplyUpdate writes each field into the column its name resolves to on the
// target row. Fields without a column are skipped with a warning.
func (c *Connector) ApplyUpdate(ctx context.Context, target core.Target, fields core.Fields) (core.Fields, error) {
	row, err := c.row(target)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return core.Fields{}, nil
	}
	headers, err := c.Headers(ctx)
	if err != nil {
		return nil, err
	}

	applied := core.Fields{}
	data := make([]valueRange, 0, len(fields))
	unmatched := []string{}
	for _, key := range fields.Keys() {
		index := FindColumnIndex(headers, key)
		if index < 0 {
			unmatched = append(unmatched, key)
			continue
		}
		data = append(data, valueRange{
			Range:  fmt.Sprintf("%s!%s%d", sheetRef(c.sheetName), ColumnLetter(index), row+1),
			Values: [][]string{{fields[key]}},
		})
		applied[key] = fields[key]
	}
	if len(unmatched) > 0 {
		core.LogWithFields(ctx, c.logger, "warn", "sheet columns not found, fields dropped", map[string]any{
			"row":    row,
			"fields": strings.Join(unmatched, ","),
		})
	}
	if len(data) == 0 {
		return core.Fields{}, nil
	}

	if err := c.batchUpdate(ctx, data); err != nil {
		return nil, core.NewBackendError(err, "googlesheets: batch update failed", map[string]any{
			"spreadsheet_id": c.spreadsheetID,
			"row":            row,
		})
	}
	return applied, nil
}

// LogCall writes the call notes into the call_summary column when the sheet
// has one.
func (c *Connector) LogCall(ctx context.Context, target core.Target, entry core.CallLogEntry) error {
	row, err := c.row(target)
	if err != nil {
		return err
	}
	headers, err := c.Headers(ctx)
	if err != nil {
		return err
	}
	index := FindColumnIndex(headers, ColumnCallSummary)
	if index < 0 {
		core.LogWithFields(ctx, c.logger, "debug", "sheet has no call summary column", map[string]any{
			"call_id": entry.CallID,
			"row":     row,
		})
		return nil
	}
	err = c.batchUpdate(ctx, []valueRange{{
		Range:  fmt.Sprintf("%s!%s%d", sheetRef(c.sheetName), ColumnLetter(index), row+1),
		Values: [][]string{{entry.Notes}},
	}})
	if err != nil {
		return core.NewBackendError(err, "googlesheets: log call failed", map[string]any{
			"call_id": entry.CallID,
			"row":     row,
		})
	}
	return nil
}

func (c *Connector) batchUpdate(ctx context.Context, data []valueRange) error {
	return c.do(ctx, http.MethodPost, c.valuesURL("")+":batchUpdate", batchUpdateRequest{
		ValueInputOption: valueInputOption,
		Data:             data,
	}, nil)
}

func (c *Connector) do(ctx context.Context, method string, endpoint string, body any, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	_, err = transport.DoJSON(ctx, c.transport, transport.JSONRequest{
		Service: ServiceID,
		Method:  method,
		URL:     endpoint,
		Headers: transport.BearerHeaders(token),
		Body:    body,
		Out:     out,
	})
	return err
}

func (c *Connector) valuesURL(a1Range string) string {
	base := c.baseURL + "/v4/spreadsheets/" + url.PathEscape(c.spreadsheetID) + "/values"
	if a1Range == "" {
		return base
	}
	return base + "/" + url.PathEscape(a1Range)
}

func (c *Connector) headerCacheKey() string {
	return strings.Join([]string{headerCacheKeyPrefix, url.PathEscape(c.spreadsheetID), url.PathEscape(c.sheetName)}, "::")
}

func (c *Connector) row(target core.Target) (int, error) {
	if target.Kind != core.TargetKindSheet {
		return 0, goerrors.New(fmt.Sprintf("googlesheets: unsupported target kind %q", target.Kind), goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(core.ErrorBadInput)
	}
	if err := target.Validate(); err != nil {
		return 0, err
	}
	return target.RowNumber, nil
}

func configError(message string) error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput)
}

var (
	_ core.BackendConnector = (*Connector)(nil)
	_ core.CallLogger       = (*Connector)(nil)
)
