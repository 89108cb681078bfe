package sqlstore

import (
	"time"

	"github.com/goliatone/go-callverify/core"
	"github.com/uptrace/bun"
)

type callLogRecord struct {
	bun.BaseModel `bun:"table:call_logs,alias:cl"`

	ID            string                               `bun:"id,pk"`
	CallID        string                               `bun:"call_id,notnull"`
	RoomName      string                               `bun:"room_name,notnull"`
	TargetKind    string                               `bun:"target_kind,notnull"`
	TargetRef     string                               `bun:"target_ref,notnull"`
	Status        string                               `bun:"status,notnull"`
	EndReason     string                               `bun:"end_reason,notnull"`
	Notes         string                               `bun:"notes,notnull"`
	CollectedData map[core.StepName]core.CollectedStep `bun:"collected_data,type:jsonb,notnull"`
	StartedAt     time.Time                            `bun:"started_at,notnull"`
	EndedAt       time.Time                            `bun:"ended_at,notnull"`
	DurationMS    int64                                `bun:"duration_ms,notnull"`
	CreatedAt     time.Time                            `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:webhook_deliveries,alias:wd"`

	ID             string     `bun:"id,pk"`
	ClaimID        string     `bun:"claim_id,notnull"`
	ProviderID     string     `bun:"provider_id,notnull"`
	DeliveryID     string     `bun:"delivery_id,notnull"`
	Status         string     `bun:"status,notnull"`
	Attempts       int        `bun:"attempts,notnull"`
	LastError      string     `bun:"last_error,notnull"`
	LeaseExpiresAt *time.Time `bun:"lease_expires_at,nullzero"`
	NextAttemptAt  *time.Time `bun:"next_attempt_at,nullzero"`
	Payload        []byte     `bun:"payload"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
