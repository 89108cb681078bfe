package server

import (
	"time"

	"github.com/goliatone/go-callverify/core"
)

type callLogView struct {
	ID            string                               `json:"id"`
	CallID        string                               `json:"callId"`
	RoomName      string                               `json:"roomName"`
	Target        core.Target                          `json:"target"`
	Status        core.SessionStatus                   `json:"status"`
	EndReason     string                               `json:"endReason,omitempty"`
	Notes         string                               `json:"notes,omitempty"`
	CollectedData map[core.StepName]core.CollectedStep `json:"collectedData"`
	StartedAt     time.Time                            `json:"startedAt"`
	EndedAt       time.Time                            `json:"endedAt"`
	DurationMS    int64                                `json:"duration"`
}

func newCallLogView(record core.CallRecord) callLogView {
	return callLogView{
		ID:            record.ID,
		CallID:        record.CallID,
		RoomName:      record.RoomName,
		Target:        record.Target,
		Status:        record.Status,
		EndReason:     record.EndReason,
		Notes:         record.Notes,
		CollectedData: record.CollectedData,
		StartedAt:     record.StartedAt,
		EndedAt:       record.EndedAt,
		DurationMS:    record.Duration.Milliseconds(),
	}
}
