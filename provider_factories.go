package callverify

import (
	"strings"

	"github.com/goliatone/go-callverify/auth"
	"github.com/goliatone/go-callverify/core"
	"github.com/goliatone/go-callverify/providers/googlesheets"
	"github.com/goliatone/go-callverify/providers/hubspot"
	"github.com/goliatone/go-callverify/providers/livekit"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

// ProviderDependencies are shared by every connector factory. A nil Transport
// makes each connector build its own REST adapter.
type ProviderDependencies struct {
	Transport   core.TransportAdapter
	Logger      core.Logger
	HeaderCache repositorycache.CacheService
}

func HubSpotConnector(cfg core.HubSpotConfig, deps ProviderDependencies) (*hubspot.Connector, error) {
	connectorCfg := hubspot.ConfigFromCore(cfg)
	connectorCfg.Transport = deps.Transport
	connectorCfg.Logger = deps.Logger
	return hubspot.New(connectorCfg)
}

// SheetsConnector authenticates with the service account from
// cfg.ServiceAccountJSON, which may be inline JSON or a file path.
func SheetsConnector(cfg core.SheetsConfig, deps ProviderDependencies) (*googlesheets.Connector, error) {
	key, err := auth.ParseServiceAccountKey(cfg.ServiceAccountJSON)
	if err != nil {
		return nil, err
	}
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		tokenURL = key.TokenURI
	}
	tokens, err := auth.NewServiceAccountTokenSource(auth.ServiceAccountTokenSourceConfig{
		Key:       key,
		Scopes:    []string{auth.ScopeSpreadsheets},
		TokenURL:  tokenURL,
		Transport: deps.Transport,
	})
	if err != nil {
		return nil, err
	}
	return googlesheets.New(googlesheets.Config{
		SpreadsheetID:  cfg.SpreadsheetID,
		SheetName:      cfg.SheetName,
		BaseURL:        cfg.BaseURL,
		Tokens:         tokens,
		Transport:      deps.Transport,
		Cache:          deps.HeaderCache,
		HeaderCacheTTL: cfg.HeaderCacheTTL,
		Logger:         deps.Logger,
	})
}

func LiveKitRooms(cfg core.LiveKitConfig, deps ProviderDependencies) (*livekit.RoomService, error) {
	return livekit.NewFromConfig(cfg, deps.Transport)
}

// Connectors holds what BuildConnectors produced. Fields are nil for
// backends the configuration leaves disabled.
type Connectors struct {
	HubSpot *hubspot.Connector
	Sheets  *googlesheets.Connector
	Rooms   *livekit.RoomService
}

// Options converts the built connectors into orchestrator options.
func (c Connectors) Options() []core.Option {
	opts := []core.Option{}
	if c.HubSpot != nil {
		opts = append(opts, core.WithConnector(core.TargetKindCRM, c.HubSpot))
	}
	if c.Sheets != nil {
		opts = append(opts, core.WithConnector(core.TargetKindSheet, c.Sheets))
	}
	if c.Rooms != nil {
		opts = append(opts, core.WithRoomReleaser(c.Rooms))
	}
	return opts
}

// BuildConnectors builds every backend the configuration enables.
func BuildConnectors(cfg core.Config, deps ProviderDependencies) (Connectors, error) {
	out := Connectors{}
	var err error
	if cfg.HubSpot.Enabled() {
		if out.HubSpot, err = HubSpotConnector(cfg.HubSpot, deps); err != nil {
			return Connectors{}, err
		}
	}
	if cfg.Sheets.Enabled() {
		if out.Sheets, err = SheetsConnector(cfg.Sheets, deps); err != nil {
			return Connectors{}, err
		}
	}
	if cfg.LiveKit.Enabled() {
		if out.Rooms, err = LiveKitRooms(cfg.LiveKit, deps); err != nil {
			return Connectors{}, err
		}
	}
	return out, nil
}
