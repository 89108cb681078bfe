package webhooks

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryDeliveryLedgerLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	ledger := NewMemoryDeliveryLedger(time.Minute)
	ledger.Now = func() time.Time { return now }
	ctx := context.Background()

	record, claimed, err := ledger.Claim(ctx, "livekit", "d1", nil, 30*time.Second)
	if err != nil || !claimed {
		t.Fatalf("expected first claim, got %v %v", claimed, err)
	}
	if _, claimed, _ := ledger.Claim(ctx, "livekit", "d1", nil, 30*time.Second); claimed {
		t.Fatalf("expected in-flight delivery to be deduped")
	}

	if err := ledger.Fail(ctx, record.ClaimID, errors.New("boom"), time.Time{}); err != nil {
		t.Fatalf("fail: %v", err)
	}
	failed, _ := ledger.Get("livekit", "d1")
	if failed.Status != DeliveryStatusRetryReady || failed.LastError != "boom" {
		t.Fatalf("unexpected failed record %#v", failed)
	}

	retry, claimed, err := ledger.Claim(ctx, "livekit", "d1", nil, 30*time.Second)
	if err != nil || !claimed {
		t.Fatalf("expected failed delivery to be reclaimable, got %v %v", claimed, err)
	}
	if retry.Attempts != 2 {
		t.Fatalf("expected second attempt, got %d", retry.Attempts)
	}
	if err := ledger.Complete(ctx, retry.ClaimID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, claimed, _ := ledger.Claim(ctx, "livekit", "d1", nil, 30*time.Second); claimed {
		t.Fatalf("expected processed delivery to be deduped")
	}

	now = now.Add(2 * time.Minute)
	if _, claimed, _ := ledger.Claim(ctx, "livekit", "d1", nil, 30*time.Second); !claimed {
		t.Fatalf("expected processed delivery to expire after retention")
	}
}

func TestMemoryDeliveryLedgerExpiredLeaseIsReclaimable(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	ledger := NewMemoryDeliveryLedger(0)
	ledger.Now = func() time.Time { return now }
	ctx := context.Background()

	first, _, _ := ledger.Claim(ctx, "livekit", "d1", nil, time.Second)
	now = now.Add(2 * time.Second)
	second, claimed, err := ledger.Claim(ctx, "livekit", "d1", nil, time.Second)
	if err != nil || !claimed {
		t.Fatalf("expected stale lease to be reclaimed, got %v %v", claimed, err)
	}
	if err := ledger.Complete(ctx, first.ClaimID); err != nil {
		t.Fatalf("stale complete: %v", err)
	}
	record, _ := ledger.Get("livekit", "d1")
	if record.Status != DeliveryStatusProcessing || record.ClaimID != second.ClaimID {
		t.Fatalf("expected stale claim to be ignored, got %#v", record)
	}
}

func TestMemoryDeliveryLedgerDropsAbandonedRecords(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	ledger := NewMemoryDeliveryLedger(time.Minute)
	ledger.Now = func() time.Time { return now }
	ctx := context.Background()

	failed, _, _ := ledger.Claim(ctx, "livekit", "never-retried", nil, 30*time.Second)
	if err := ledger.Fail(ctx, failed.ClaimID, errors.New("boom"), now.Add(10*time.Second)); err != nil {
		t.Fatalf("fail: %v", err)
	}
	_, _, _ = ledger.Claim(ctx, "livekit", "never-settled", nil, 30*time.Second)

	now = now.Add(65 * time.Second)
	_, _, _ = ledger.Claim(ctx, "livekit", "other", nil, 30*time.Second)
	if _, ok := ledger.Get("livekit", "never-retried"); !ok {
		t.Fatalf("expected retry_ready record inside retention to be kept")
	}
	if _, ok := ledger.Get("livekit", "never-settled"); !ok {
		t.Fatalf("expected abandoned lease inside retention to be kept")
	}

	now = now.Add(30 * time.Second)
	_, _, _ = ledger.Claim(ctx, "livekit", "other-2", nil, 30*time.Second)
	if _, ok := ledger.Get("livekit", "never-retried"); ok {
		t.Fatalf("expected retry_ready record to be dropped after retention")
	}
	if _, ok := ledger.Get("livekit", "never-settled"); ok {
		t.Fatalf("expected abandoned lease to be dropped after retention")
	}
}

func TestMemoryDeliveryLedgerValidation(t *testing.T) {
	ledger := NewMemoryDeliveryLedger(0)
	if _, _, err := ledger.Claim(context.Background(), "", "d1", nil, 0); err == nil {
		t.Fatalf("expected missing provider to fail")
	}
	if err := ledger.Complete(context.Background(), " "); err == nil {
		t.Fatalf("expected blank claim id to fail")
	}
}
