package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-callverify/core"
	callverifymigrations "github.com/goliatone/go-callverify/migrations"
	sqlstore "github.com/goliatone/go-callverify/store/sql"
	"github.com/goliatone/go-callverify/webhooks"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "callverify-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	for _, table := range []string{"call_logs", "webhook_deliveries"} {
		var tableName string
		if err := client.DB().NewRaw(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(context.Background(), &tableName); err != nil {
			t.Fatalf("query sqlite master for %s: %v", table, err)
		}
		if tableName != table {
			t.Fatalf("expected %s table, got %q", table, tableName)
		}
	}
}

func TestCallLogStore_RecordGetList(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.CallLogStore()

	startedAt := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	first := core.CallRecord{
		CallID:    "call-1",
		RoomName:  "room-1",
		Target:    core.Target{Kind: core.TargetKindSheet, RowNumber: 5},
		Status:    core.SessionStatusCompleted,
		Notes:     "Call ID: call-1",
		StartedAt: startedAt,
		EndedAt:   startedAt.Add(2 * time.Minute),
		Duration:  2 * time.Minute,
		CreatedAt: startedAt.Add(2 * time.Minute),
		CollectedData: map[core.StepName]core.CollectedStep{
			core.StepVerifyEmail: {Parameters: core.StepParameters{"confirmed": true}, Timestamp: startedAt},
		},
	}
	stored, err := store.Record(ctx, first)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if stored.ID == "" {
		t.Fatalf("expected generated id")
	}

	again, err := store.Record(ctx, first)
	if err != nil {
		t.Fatalf("record duplicate: %v", err)
	}
	if again.ID != stored.ID {
		t.Fatalf("expected duplicate record to return the stored row, got %q vs %q", again.ID, stored.ID)
	}

	_, err = store.Record(ctx, core.CallRecord{
		CallID:    "call-2",
		Target:    core.Target{Kind: core.TargetKindCRM, ContactID: "123"},
		Status:    core.SessionStatusEndedEarly,
		EndReason: "disconnected unexpectedly",
		StartedAt: startedAt,
		EndedAt:   startedAt.Add(time.Minute),
		CreatedAt: startedAt.Add(3 * time.Minute),
	})
	if err != nil {
		t.Fatalf("record second: %v", err)
	}

	got, err := store.Get(ctx, "call-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Target.RowNumber != 5 || got.Duration != 2*time.Minute || got.Notes != first.Notes {
		t.Fatalf("unexpected round trip %+v", got)
	}
	if _, ok := got.CollectedData[core.StepVerifyEmail]; !ok {
		t.Fatalf("expected collected data to round trip, got %#v", got.CollectedData)
	}

	all, err := store.List(ctx, core.CallRecordFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].CallID != "call-2" {
		t.Fatalf("expected newest first, got %+v", all)
	}
	ended, err := store.List(ctx, core.CallRecordFilter{Status: core.SessionStatusEndedEarly})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(ended) != 1 || ended[0].Target.ContactID != "123" {
		t.Fatalf("unexpected filtered list %+v", ended)
	}

	if _, err := store.Get(ctx, "missing"); !core.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCachedCallLogStore_ServesRepeatedReadsFromCache(t *testing.T) {
	ctx := context.Background()
	base := &countingArchive{records: map[string]core.CallRecord{}}
	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = time.Minute
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	cached, err := sqlstore.NewCachedCallLogStore(base, cacheService)
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}

	if _, err := cached.Record(ctx, core.CallRecord{CallID: "call-1", Notes: "v1"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	for i := 0; i < 3; i++ {
		record, err := cached.Get(ctx, "call-1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if record.Notes != "v1" {
			t.Fatalf("unexpected record %+v", record)
		}
	}
	if base.gets != 1 {
		t.Fatalf("expected one base read, got %d", base.gets)
	}
}

func TestWebhookDeliveryStore_ClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	ledger := factory.WebhookDeliveryStore()
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	ledger.Now = func() time.Time { return now }
	ledger.Retention = 10 * time.Minute

	first, claimed, err := ledger.Claim(ctx, "livekit", "d-1", []byte(`{}`), time.Minute)
	if err != nil || !claimed {
		t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
	}
	if _, claimed, err := ledger.Claim(ctx, "livekit", "d-1", nil, time.Minute); err != nil || claimed {
		t.Fatalf("expected in-flight duplicate to be rejected: claimed=%v err=%v", claimed, err)
	}

	if err := ledger.Fail(ctx, first.ClaimID, errors.New("handler down"), time.Time{}); err != nil {
		t.Fatalf("fail: %v", err)
	}
	retry, claimed, err := ledger.Claim(ctx, "livekit", "d-1", nil, time.Minute)
	if err != nil || !claimed {
		t.Fatalf("expected immediate retry claim: claimed=%v err=%v", claimed, err)
	}
	if retry.Attempts != 2 || retry.ClaimID == first.ClaimID {
		t.Fatalf("unexpected retry record %+v", retry)
	}

	// Settling with a stale claim id is ignored.
	if err := ledger.Complete(ctx, first.ClaimID); err != nil {
		t.Fatalf("stale complete: %v", err)
	}
	stored, err := ledger.Get(ctx, "livekit", "d-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != webhooks.DeliveryStatusProcessing || stored.LastError != "handler down" {
		t.Fatalf("unexpected record after stale complete %+v", stored)
	}

	if err := ledger.Complete(ctx, retry.ClaimID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, claimed, err := ledger.Claim(ctx, "livekit", "d-1", nil, time.Minute); err != nil || claimed {
		t.Fatalf("expected processed duplicate to be rejected: claimed=%v err=%v", claimed, err)
	}

	now = now.Add(11 * time.Minute)
	if _, claimed, err := ledger.Claim(ctx, "livekit", "d-1", nil, time.Minute); err != nil || !claimed {
		t.Fatalf("expected claim after retention: claimed=%v err=%v", claimed, err)
	}
}

func TestWebhookDeliveryStore_ExpiredLeaseIsReclaimable(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	ledger, err := sqlstore.NewWebhookDeliveryStore(client.DB())
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	ledger.Now = func() time.Time { return now }

	if _, claimed, err := ledger.Claim(ctx, "livekit", "d-2", nil, 30*time.Second); err != nil || !claimed {
		t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
	}
	now = now.Add(31 * time.Second)
	if _, claimed, err := ledger.Claim(ctx, "livekit", "d-2", nil, 30*time.Second); err != nil || !claimed {
		t.Fatalf("expected reclaim after lease expiry: claimed=%v err=%v", claimed, err)
	}
}

func TestWebhookDeliveryStore_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	ledger, err := sqlstore.NewWebhookDeliveryStore(client.DB())
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, claimed, err := ledger.Claim(ctx, "livekit", "d-3", nil, time.Minute)
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if claimed {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

type countingArchive struct {
	mu      sync.Mutex
	records map[string]core.CallRecord
	gets    int
}

func (a *countingArchive) Record(_ context.Context, record core.CallRecord) (core.CallRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[record.CallID] = record
	return record, nil
}

func (a *countingArchive) Get(_ context.Context, callID string) (core.CallRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gets++
	record, ok := a.records[callID]
	if !ok {
		return core.CallRecord{}, fmt.Errorf("missing %s", callID)
	}
	return record, nil
}

func (a *countingArchive) List(context.Context, core.CallRecordFilter) ([]core.CallRecord, error) {
	return nil, nil
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf("file:callverify-test-%d?mode=memory&cache=shared", time.Now().UnixNano())
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	client, err := persistence.New(testPersistenceConfig{driver: "sqlite3", server: dsn}, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	err = callverifymigrations.Apply(ctx, "sqlite3", func(fsys fs.FS) {
		client.RegisterSQLMigrations(fsys)
	}, client.Migrate)
	if err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}
