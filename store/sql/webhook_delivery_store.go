package sqlstore

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-callverify/core"
	"github.com/goliatone/go-callverify/webhooks"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultClaimLease = 30 * time.Second

// WebhookDeliveryStore is the durable webhooks.DeliveryLedger. Reclaiming a
// delivery swaps its claim id with a conditional update, so two workers can
// never both win the same delivery.
type WebhookDeliveryStore struct {
	db        *bun.DB
	repo      repository.Repository[*webhookDeliveryRecord]
	Retention time.Duration
	Now       func() time.Time
}

func NewWebhookDeliveryStore(db *bun.DB) (*WebhookDeliveryStore, error) {
	if db == nil {
		return nil, storeNotConfigured("bun db")
	}
	repo := repository.NewRepository[*webhookDeliveryRecord](db, webhookDeliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, wrapStoreError(err, "sqlstore: invalid webhook delivery repository wiring", nil)
		}
	}
	return &WebhookDeliveryStore{
		db:        db,
		repo:      repo,
		Retention: webhooks.DefaultDedupeTTL,
	}, nil
}

func (s *WebhookDeliveryStore) Claim(
	ctx context.Context,
	providerID string,
	deliveryID string,
	payload []byte,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	if s == nil || s.repo == nil {
		return webhooks.DeliveryRecord{}, false, storeNotConfigured("webhook delivery store")
	}
	providerID = strings.TrimSpace(providerID)
	deliveryID = strings.TrimSpace(deliveryID)
	if providerID == "" || deliveryID == "" {
		return webhooks.DeliveryRecord{}, false, storeError("sqlstore: provider id and delivery id are required",
			goerrors.CategoryBadInput, http.StatusBadRequest, core.ErrorBadInput, nil)
	}
	if lease <= 0 {
		lease = defaultClaimLease
	}
	now := s.now()
	leaseExpiresAt := now.Add(lease)

	record := &webhookDeliveryRecord{
		ID:             uuid.NewString(),
		ClaimID:        uuid.NewString(),
		ProviderID:     providerID,
		DeliveryID:     deliveryID,
		Status:         webhooks.DeliveryStatusProcessing,
		Attempts:       1,
		LeaseExpiresAt: &leaseExpiresAt,
		Payload:        append([]byte(nil), payload...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err := s.db.NewInsert().Model(record).Exec(ctx)
	if err == nil {
		return webhookDeliveryToDomain(record), true, nil
	}
	if !isUniqueViolation(err) {
		return webhooks.DeliveryRecord{}, false, wrapStoreError(err, "sqlstore: insert webhook delivery",
			map[string]any{"provider_id": providerID, "delivery_id": deliveryID})
	}

	existing, err := s.get(ctx, providerID, deliveryID)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if !s.reclaimable(existing, now) {
		return webhookDeliveryToDomain(existing), false, nil
	}

	claimID := uuid.NewString()
	result, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("claim_id = ?", claimID).
		Set("status = ?", webhooks.DeliveryStatusProcessing).
		Set("attempts = attempts + 1").
		Set("lease_expires_at = ?", leaseExpiresAt).
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", now).
		Where("id = ?", existing.ID).
		Where("claim_id = ?", existing.ClaimID).
		Exec(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, wrapStoreError(err, "sqlstore: reclaim webhook delivery",
			map[string]any{"provider_id": providerID, "delivery_id": deliveryID})
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return webhookDeliveryToDomain(existing), false, nil
	}

	existing.ClaimID = claimID
	existing.Status = webhooks.DeliveryStatusProcessing
	existing.Attempts++
	existing.LeaseExpiresAt = &leaseExpiresAt
	existing.NextAttemptAt = nil
	existing.UpdatedAt = now
	return webhookDeliveryToDomain(existing), true, nil
}

func (s *WebhookDeliveryStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return storeNotConfigured("webhook delivery store")
	}
	_, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessed).
		Set("lease_expires_at = NULL").
		Set("next_attempt_at = NULL").
		Set("last_error = ?", "").
		Set("updated_at = ?", s.now()).
		Where("claim_id = ?", strings.TrimSpace(claimID)).
		Where("status = ?", webhooks.DeliveryStatusProcessing).
		Exec(ctx)
	return wrapStoreError(err, "sqlstore: complete webhook delivery", map[string]any{"claim_id": claimID})
}

// Fail releases the claim. A zero nextAttemptAt makes the delivery
// claimable immediately.
func (s *WebhookDeliveryStore) Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time) error {
	if s == nil || s.db == nil {
		return storeNotConfigured("webhook delivery store")
	}
	now := s.now()
	if nextAttemptAt.IsZero() {
		nextAttemptAt = now
	}
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	_, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusRetryReady).
		Set("lease_expires_at = NULL").
		Set("next_attempt_at = ?", nextAttemptAt.UTC()).
		Set("last_error = ?", lastError).
		Set("updated_at = ?", now).
		Where("claim_id = ?", strings.TrimSpace(claimID)).
		Where("status = ?", webhooks.DeliveryStatusProcessing).
		Exec(ctx)
	return wrapStoreError(err, "sqlstore: fail webhook delivery", map[string]any{"claim_id": claimID})
}

func (s *WebhookDeliveryStore) Get(ctx context.Context, providerID string, deliveryID string) (webhooks.DeliveryRecord, error) {
	if s == nil || s.repo == nil {
		return webhooks.DeliveryRecord{}, storeNotConfigured("webhook delivery store")
	}
	record, err := s.get(ctx, strings.TrimSpace(providerID), strings.TrimSpace(deliveryID))
	if err != nil {
		return webhooks.DeliveryRecord{}, err
	}
	return webhookDeliveryToDomain(record), nil
}

func (s *WebhookDeliveryStore) get(ctx context.Context, providerID string, deliveryID string) (*webhookDeliveryRecord, error) {
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("provider_id", "=", providerID),
		repository.SelectBy("delivery_id", "=", deliveryID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, wrapStoreError(err, "sqlstore: read webhook delivery",
			map[string]any{"provider_id": providerID, "delivery_id": deliveryID})
	}
	if len(records) == 0 {
		return nil, storeError("sqlstore: webhook delivery not found", goerrors.CategoryNotFound,
			http.StatusNotFound, core.ErrorSessionNotFound,
			map[string]any{"provider_id": providerID, "delivery_id": deliveryID})
	}
	return records[0], nil
}

func (s *WebhookDeliveryStore) reclaimable(record *webhookDeliveryRecord, now time.Time) bool {
	switch record.Status {
	case webhooks.DeliveryStatusProcessed:
		retention := s.Retention
		if retention <= 0 {
			retention = webhooks.DefaultDedupeTTL
		}
		return !now.Before(record.UpdatedAt.Add(retention))
	case webhooks.DeliveryStatusProcessing:
		return record.LeaseExpiresAt == nil || !now.Before(*record.LeaseExpiresAt)
	case webhooks.DeliveryStatusRetryReady:
		return record.NextAttemptAt == nil || !now.Before(*record.NextAttemptAt)
	}
	return true
}

func (s *WebhookDeliveryStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func webhookDeliveryToDomain(record *webhookDeliveryRecord) webhooks.DeliveryRecord {
	if record == nil {
		return webhooks.DeliveryRecord{}
	}
	result := webhooks.DeliveryRecord{
		ID:         record.ID,
		ClaimID:    record.ClaimID,
		ProviderID: record.ProviderID,
		DeliveryID: record.DeliveryID,
		Status:     record.Status,
		Attempts:   record.Attempts,
		LastError:  record.LastError,
		CreatedAt:  record.CreatedAt.UTC(),
		UpdatedAt:  record.UpdatedAt.UTC(),
	}
	if record.LeaseExpiresAt != nil {
		value := record.LeaseExpiresAt.UTC()
		result.LeaseExpiresAt = &value
	}
	if record.NextAttemptAt != nil {
		value := record.NextAttemptAt.UTC()
		result.NextAttemptAt = &value
	}
	return result
}
