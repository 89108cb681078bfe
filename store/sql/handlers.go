package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// keyedRecord is a row with a string UUID primary key and a natural key
// used for lookups. Methods tolerate nil receivers.
type keyedRecord interface {
	recordID() string
	setRecordID(id string)
	naturalKey() string
}

func (r *callLogRecord) recordID() string {
	if r == nil {
		return ""
	}
	return r.ID
}

func (r *callLogRecord) setRecordID(id string) {
	if r != nil {
		r.ID = id
	}
}

func (r *callLogRecord) naturalKey() string {
	if r == nil {
		return ""
	}
	return r.CallID
}

func (r *webhookDeliveryRecord) recordID() string {
	if r == nil {
		return ""
	}
	return r.ID
}

func (r *webhookDeliveryRecord) setRecordID(id string) {
	if r != nil {
		r.ID = id
	}
}

func (r *webhookDeliveryRecord) naturalKey() string {
	if r == nil {
		return ""
	}
	return r.ClaimID
}

func callLogHandlers() repository.ModelHandlers[*callLogRecord] {
	return keyedHandlers(func() *callLogRecord { return &callLogRecord{} }, "call_id")
}

func webhookDeliveryHandlers() repository.ModelHandlers[*webhookDeliveryRecord] {
	return keyedHandlers(func() *webhookDeliveryRecord { return &webhookDeliveryRecord{} }, "claim_id")
}

func keyedHandlers[T keyedRecord](newRecord func() T, identifier string) repository.ModelHandlers[T] {
	return repository.ModelHandlers[T]{
		NewRecord:          newRecord,
		GetID:              func(record T) uuid.UUID { return parseUUID(record.recordID()) },
		SetID:              func(record T, id uuid.UUID) { record.setRecordID(id.String()) },
		GetIdentifier:      func() string { return identifier },
		GetIdentifierValue: func(record T) string { return strings.TrimSpace(record.naturalKey()) },
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
