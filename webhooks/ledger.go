package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-callverify/core"
	goerrors "github.com/goliatone/go-errors"
)

const (
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"
)

const DefaultDedupeTTL = 10 * time.Minute

type DeliveryRecord struct {
	ID             string
	ClaimID        string
	ProviderID     string
	DeliveryID     string
	Status         string
	Attempts       int
	LastError      string
	LeaseExpiresAt *time.Time
	NextAttemptAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DeliveryLedger dedupes webhook deliveries by provider and delivery id.
// Claim returns false while the delivery is processing or after it has been
// processed inside the ledger's retention window.
type DeliveryLedger interface {
	Claim(ctx context.Context, providerID string, deliveryID string, payload []byte, lease time.Duration) (DeliveryRecord, bool, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time) error
}

// MemoryDeliveryLedger is the process-local DeliveryLedger.
type MemoryDeliveryLedger struct {
	mu        sync.Mutex
	records   map[string]DeliveryRecord
	claims    map[string]string
	nextID    int
	Retention time.Duration
	Now       func() time.Time
}

func NewMemoryDeliveryLedger(retention time.Duration) *MemoryDeliveryLedger {
	if retention <= 0 {
		retention = DefaultDedupeTTL
	}
	return &MemoryDeliveryLedger{
		records:   map[string]DeliveryRecord{},
		claims:    map[string]string{},
		Retention: retention,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *MemoryDeliveryLedger) Claim(
	_ context.Context,
	providerID string,
	deliveryID string,
	_ []byte,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	if l == nil {
		return DeliveryRecord{}, false, ledgerError("webhooks: delivery ledger is nil", goerrors.CategoryInternal, http.StatusInternalServerError, core.ErrorInternal)
	}
	providerID = strings.TrimSpace(providerID)
	deliveryID = strings.TrimSpace(deliveryID)
	if providerID == "" || deliveryID == "" {
		return DeliveryRecord{}, false, ledgerError("webhooks: provider id and delivery id are required", goerrors.CategoryBadInput, http.StatusBadRequest, core.ErrorBadInput)
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}
	now := l.now()
	key := providerID + ":" + deliveryID

	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictExpiredLocked(now)

	record, exists := l.records[key]
	if exists {
		switch record.Status {
		case DeliveryStatusProcessed:
			return record, false, nil
		case DeliveryStatusProcessing:
			if record.LeaseExpiresAt != nil && now.Before(*record.LeaseExpiresAt) {
				return record, false, nil
			}
		case DeliveryStatusRetryReady:
			if record.NextAttemptAt != nil && now.Before(*record.NextAttemptAt) {
				return record, false, nil
			}
		}
		if record.ClaimID != "" {
			delete(l.claims, record.ClaimID)
		}
	} else {
		record = DeliveryRecord{
			ID:         key,
			ProviderID: providerID,
			DeliveryID: deliveryID,
			CreatedAt:  now,
		}
	}

	leaseExpiresAt := now.Add(lease)
	record.ClaimID = l.nextClaimID()
	record.Status = DeliveryStatusProcessing
	record.Attempts++
	record.LeaseExpiresAt = &leaseExpiresAt
	record.NextAttemptAt = nil
	record.UpdatedAt = now
	l.records[key] = record
	l.claims[record.ClaimID] = key
	return record, true, nil
}

func (l *MemoryDeliveryLedger) Complete(_ context.Context, claimID string) error {
	return l.settle(claimID, func(record *DeliveryRecord, now time.Time) {
		retainUntil := now.Add(l.retention())
		record.Status = DeliveryStatusProcessed
		record.LeaseExpiresAt = &retainUntil
		record.LastError = ""
	})
}

func (l *MemoryDeliveryLedger) Fail(_ context.Context, claimID string, cause error, nextAttemptAt time.Time) error {
	return l.settle(claimID, func(record *DeliveryRecord, now time.Time) {
		if nextAttemptAt.IsZero() {
			nextAttemptAt = now
		}
		next := nextAttemptAt.UTC()
		record.Status = DeliveryStatusRetryReady
		record.LeaseExpiresAt = nil
		record.NextAttemptAt = &next
		if cause != nil {
			record.LastError = cause.Error()
		}
	})
}

// Get returns the record for a delivery, mostly for inspection in tests.
func (l *MemoryDeliveryLedger) Get(providerID string, deliveryID string) (DeliveryRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[strings.TrimSpace(providerID)+":"+strings.TrimSpace(deliveryID)]
	return record, ok
}

func (l *MemoryDeliveryLedger) settle(claimID string, apply func(*DeliveryRecord, time.Time)) error {
	if l == nil {
		return ledgerError("webhooks: delivery ledger is nil", goerrors.CategoryInternal, http.StatusInternalServerError, core.ErrorInternal)
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return ledgerError("webhooks: claim id is required", goerrors.CategoryBadInput, http.StatusBadRequest, core.ErrorBadInput)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key, ok := l.claims[claimID]
	if !ok {
		return nil
	}
	delete(l.claims, claimID)
	record, exists := l.records[key]
	if !exists || record.ClaimID != claimID || record.Status != DeliveryStatusProcessing {
		return nil
	}
	now := l.now()
	apply(&record, now)
	record.UpdatedAt = now
	l.records[key] = record
	return nil
}

// evictExpiredLocked drops processed records past their retention, and
// retry_ready or abandoned processing records one retention window after
// they could have been reclaimed.
func (l *MemoryDeliveryLedger) evictExpiredLocked(now time.Time) {
	retention := l.retention()
	for key, record := range l.records {
		var expiresAt time.Time
		switch record.Status {
		case DeliveryStatusProcessed:
			if record.LeaseExpiresAt == nil {
				continue
			}
			expiresAt = *record.LeaseExpiresAt
		case DeliveryStatusRetryReady:
			expiresAt = record.UpdatedAt.Add(retention)
			if record.NextAttemptAt != nil && record.NextAttemptAt.After(record.UpdatedAt) {
				expiresAt = record.NextAttemptAt.Add(retention)
			}
		case DeliveryStatusProcessing:
			if record.LeaseExpiresAt == nil {
				continue
			}
			expiresAt = record.LeaseExpiresAt.Add(retention)
		default:
			continue
		}
		if now.Before(expiresAt) {
			continue
		}
		delete(l.records, key)
		if record.ClaimID != "" {
			delete(l.claims, record.ClaimID)
		}
	}
}

func (l *MemoryDeliveryLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *MemoryDeliveryLedger) retention() time.Duration {
	if l != nil && l.Retention > 0 {
		return l.Retention
	}
	return DefaultDedupeTTL
}

func (l *MemoryDeliveryLedger) nextClaimID() string {
	l.nextID++
	return fmt.Sprintf("claim_%d", l.nextID)
}

func ledgerError(message string, category goerrors.Category, code int, textCode string) error {
	return goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
}
