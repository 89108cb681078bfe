package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewOrchestratorAppliesDefaults(t *testing.T) {
	orchestrator, err := NewOrchestrator(Config{})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	cfg := orchestrator.Config()
	if cfg.ServiceName != "callverify" {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
	if cfg.Session.EvictionGrace != DefaultEvictionGrace {
		t.Fatalf("expected default eviction grace, got %v", cfg.Session.EvictionGrace)
	}
	if cfg.Webhook.SignatureHeader != DefaultSignatureHeader {
		t.Fatalf("expected default signature header, got %q", cfg.Webhook.SignatureHeader)
	}
}

func TestNewOrchestratorRuntimeOverridesLoadedConfig(t *testing.T) {
	loader := StaticConfigLoader(map[string]any{
		"service_name": "loaded",
		"sheets":       map[string]any{"spreadsheet_id": "sheet_from_file"},
	})
	orchestrator, err := NewOrchestrator(
		Config{ServiceName: "runtime"},
		WithConfigProvider(NewCfgxConfigProvider(loader)),
	)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	cfg := orchestrator.Config()
	if cfg.ServiceName != "runtime" {
		t.Fatalf("expected runtime service name, got %q", cfg.ServiceName)
	}
	if cfg.Sheets.SpreadsheetID != "sheet_from_file" {
		t.Fatalf("expected loaded spreadsheet id, got %q", cfg.Sheets.SpreadsheetID)
	}
	if cfg.Sheets.SheetName != DefaultSheetName {
		t.Fatalf("expected default sheet name to survive, got %q", cfg.Sheets.SheetName)
	}
}

func TestNewOrchestratorUsesInjectedProviders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceName = "fixed"
	cfg.Session.EvictionGrace = 5 * time.Second
	orchestrator, err := NewOrchestrator(Config{},
		WithConfigProvider(&fixedConfigProvider{cfg: cfg}),
		WithOptionsResolver(&fixedOptionsResolver{cfg: cfg}),
	)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	if orchestrator.Config().ServiceName != "fixed" {
		t.Fatalf("expected resolver output to win")
	}
}

type failingConfigProvider struct{}

func (failingConfigProvider) Load(context.Context, Config) (Config, error) {
	return Config{}, errors.New("config file unreadable")
}

func TestNewOrchestratorMapsConfigErrors(t *testing.T) {
	_, err := NewOrchestrator(Config{}, WithConfigProvider(failingConfigProvider{}))
	if err == nil {
		t.Fatalf("expected config load failure")
	}
	if HTTPStatus(err) != 500 {
		t.Fatalf("expected internal envelope, got %d", HTTPStatus(err))
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Driver = "oracle"
	cfg.Database.DSN = "x"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unsupported driver to be rejected")
	}

	cfg = DefaultConfig()
	cfg.LiveKit.URL = "https://example.livekit.cloud"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected livekit url without credentials to be rejected")
	}

	cfg = DefaultConfig()
	cfg.Session.EvictionGrace = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected negative duration to be rejected")
	}
}

func TestMergedConfigLoaderDeepMerges(t *testing.T) {
	loader := MergedConfigLoader{
		StaticConfigLoader(map[string]any{"hubspot": map[string]any{"access_token": "a", "base_url": "http://x"}}),
		StaticConfigLoader(map[string]any{"hubspot": map[string]any{"access_token": "b"}}),
	}
	raw, err := loader.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	hubspot := raw["hubspot"].(map[string]any)
	if hubspot["access_token"] != "b" || hubspot["base_url"] != "http://x" {
		t.Fatalf("unexpected merge %#v", hubspot)
	}
}

func TestCreateSessionRequiresConnector(t *testing.T) {
	orchestrator, err := NewOrchestrator(Config{}, WithConnector(TargetKindSheet, &recordingConnector{}))
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	ctx := context.Background()
	if _, err := orchestrator.CreateSession(ctx, CreateSessionRequest{Target: Target{Kind: TargetKindCRM, ContactID: "c1"}}); err == nil {
		t.Fatalf("expected missing crm connector to be rejected")
	}
	if _, err := orchestrator.CreateSession(ctx, CreateSessionRequest{Target: Target{Kind: TargetKindSheet, RowNumber: 2}}); err != nil {
		t.Fatalf("create sheet session: %v", err)
	}
	if orchestrator.ActiveCallCount() != 1 {
		t.Fatalf("expected one active call")
	}
	if _, err := orchestrator.ListCallLogs(ctx, CallRecordFilter{}); HTTPStatus(err) != 501 {
		t.Fatalf("expected not configured archive, got %v", err)
	}
}
