package sqlstore

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-callverify/core"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	defaultCallLogPageSize = 50
	maxCallLogPageSize     = 500
)

// CallLogStore archives finalized calls in the call_logs table.
type CallLogStore struct {
	db   *bun.DB
	repo repository.Repository[*callLogRecord]
}

func NewCallLogStore(db *bun.DB) (*CallLogStore, error) {
	if db == nil {
		return nil, storeNotConfigured("bun db")
	}
	repo := repository.NewRepository[*callLogRecord](db, callLogHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, wrapStoreError(err, "sqlstore: invalid call log repository wiring", nil)
		}
	}
	return &CallLogStore{db: db, repo: repo}, nil
}

// Record inserts the call. Recording the same call id twice returns the row
// already stored.
func (s *CallLogStore) Record(ctx context.Context, record core.CallRecord) (core.CallRecord, error) {
	if s == nil || s.repo == nil {
		return core.CallRecord{}, storeNotConfigured("call log store")
	}
	callID := strings.TrimSpace(record.CallID)
	if callID == "" {
		return core.CallRecord{}, storeError("sqlstore: call id is required", goerrors.CategoryBadInput,
			http.StatusBadRequest, core.ErrorBadInput, nil)
	}
	row := callLogFromDomain(record, time.Now().UTC())
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return s.Get(ctx, callID)
		}
		return core.CallRecord{}, wrapStoreError(err, "sqlstore: insert call log", map[string]any{"call_id": callID})
	}
	return row.toDomain(), nil
}

func (s *CallLogStore) Get(ctx context.Context, callID string) (core.CallRecord, error) {
	if s == nil || s.repo == nil {
		return core.CallRecord{}, storeNotConfigured("call log store")
	}
	callID = strings.TrimSpace(callID)
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("call_id", "=", callID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.CallRecord{}, wrapStoreError(err, "sqlstore: read call log", map[string]any{"call_id": callID})
	}
	if len(records) == 0 {
		return core.CallRecord{}, storeError("sqlstore: call log not found", goerrors.CategoryNotFound,
			http.StatusNotFound, core.ErrorSessionNotFound, map[string]any{"call_id": callID})
	}
	return records[0].toDomain(), nil
}

// List returns the newest calls first.
func (s *CallLogStore) List(ctx context.Context, filter core.CallRecordFilter) ([]core.CallRecord, error) {
	if s == nil || s.repo == nil {
		return nil, storeNotConfigured("call log store")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultCallLogPageSize
	}
	if limit > maxCallLogPageSize {
		limit = maxCallLogPageSize
	}
	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, 0),
	}
	if kind := strings.TrimSpace(string(filter.TargetKind)); kind != "" {
		selectors = append(selectors, repository.SelectBy("target_kind", "=", kind))
	}
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", status))
	}
	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, wrapStoreError(err, "sqlstore: list call logs", nil)
	}
	out := make([]core.CallRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func callLogFromDomain(record core.CallRecord, now time.Time) *callLogRecord {
	id := strings.TrimSpace(record.ID)
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	collected := record.CollectedData
	if collected == nil {
		collected = map[core.StepName]core.CollectedStep{}
	}
	return &callLogRecord{
		ID:            id,
		CallID:        strings.TrimSpace(record.CallID),
		RoomName:      record.RoomName,
		TargetKind:    string(record.Target.Kind),
		TargetRef:     record.Target.Ref(),
		Status:        string(record.Status),
		EndReason:     record.EndReason,
		Notes:         record.Notes,
		CollectedData: collected,
		StartedAt:     record.StartedAt.UTC(),
		EndedAt:       record.EndedAt.UTC(),
		DurationMS:    record.Duration.Milliseconds(),
		CreatedAt:     createdAt.UTC(),
	}
}

func (r *callLogRecord) toDomain() core.CallRecord {
	if r == nil {
		return core.CallRecord{}
	}
	target := core.Target{Kind: core.TargetKind(r.TargetKind)}
	if target.Kind == core.TargetKindSheet {
		target.RowNumber, _ = strconv.Atoi(r.TargetRef)
	} else {
		target.ContactID = r.TargetRef
	}
	return core.CallRecord{
		ID:            r.ID,
		CallID:        r.CallID,
		RoomName:      r.RoomName,
		Target:        target,
		Status:        core.SessionStatus(r.Status),
		EndReason:     r.EndReason,
		Notes:         r.Notes,
		CollectedData: r.CollectedData,
		StartedAt:     r.StartedAt.UTC(),
		EndedAt:       r.EndedAt.UTC(),
		Duration:      time.Duration(r.DurationMS) * time.Millisecond,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}
