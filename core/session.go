package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type TargetKind string

const (
	TargetKindCRM   TargetKind = "crm"
	TargetKindSheet TargetKind = "sheet"
)

// Target references the contact record a session writes back to. Exactly one
// of ContactID or RowNumber is meaningful, selected by Kind.
type Target struct {
	Kind      TargetKind `json:"kind"`
	ContactID string     `json:"contactId,omitempty"`
	RowNumber int        `json:"rowNumber,omitempty"`
}

func (t Target) Validate() error {
	switch t.Kind {
	case TargetKindCRM:
		if strings.TrimSpace(t.ContactID) == "" {
			return routingTargetMissing("core: crm target requires a contact id", map[string]any{"kind": t.Kind})
		}
	case TargetKindSheet:
		if t.RowNumber < 1 {
			return routingTargetMissing("core: sheet target requires a row number", map[string]any{"kind": t.Kind})
		}
	default:
		return badInput(fmt.Sprintf("core: unsupported target kind %q", t.Kind), map[string]any{"kind": t.Kind})
	}
	return nil
}

// Ref returns the backend-specific identifier as a string.
func (t Target) Ref() string {
	if t.Kind == TargetKindSheet {
		return strconv.Itoa(t.RowNumber)
	}
	return strings.TrimSpace(t.ContactID)
}

type SessionStatus string

const (
	SessionStatusInitiating SessionStatus = "initiating"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusEndedEarly SessionStatus = "ended_early"
)

func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusEndedEarly
}

type StepName string

const (
	StepRecordGatekeeper    StepName = "record_gatekeeper"
	StepVerifyAddress       StepName = "verify_address"
	StepVerifyEmail         StepName = "verify_email"
	StepVerifyDM            StepName = "verify_dm"
	StepCollectDirectNumber StepName = "collect_direct_number"
	StepEndCall             StepName = "end_call"
	StepCompleteCall        StepName = "complete_call"
)

var knownSteps = []StepName{
	StepRecordGatekeeper,
	StepVerifyAddress,
	StepVerifyEmail,
	StepVerifyDM,
	StepCollectDirectNumber,
	StepEndCall,
	StepCompleteCall,
}

func (s StepName) Known() bool {
	for _, step := range knownSteps {
		if step == s {
			return true
		}
	}
	return false
}

func (s StepName) Terminal() bool {
	return s == StepEndCall || s == StepCompleteCall
}

// StepParameters holds the decoded arguments of one function call.
type StepParameters map[string]any

func (p StepParameters) String(key string) string {
	if p == nil {
		return ""
	}
	value, ok := p[key]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

func (p StepParameters) Bool(key string) bool {
	if p == nil {
		return false
	}
	switch typed := p[key].(type) {
	case bool:
		return typed
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true", "yes", "y", "1":
			return true
		}
	case float64:
		return typed != 0
	}
	return false
}

func (p StepParameters) clone() StepParameters {
	if p == nil {
		return StepParameters{}
	}
	out := make(StepParameters, len(p))
	for key, value := range p {
		out[key] = value
	}
	return out
}

type CollectedStep struct {
	Parameters StepParameters `json:"parameters"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Fields is a normalized backend update keyed by logical field name.
type Fields map[string]string

func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for key := range f {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (f Fields) clone() Fields {
	out := make(Fields, len(f))
	for key, value := range f {
		out[key] = value
	}
	return out
}

type Session struct {
	CallID        string                     `json:"callId"`
	RoomName      string                     `json:"roomName"`
	Target        Target                     `json:"target"`
	Status        SessionStatus              `json:"status"`
	CollectedData map[StepName]CollectedStep `json:"collectedData"`
	Metadata      map[string]any             `json:"metadata,omitempty"`
	StartTime     time.Time                  `json:"startTime"`
	EndTime       *time.Time                 `json:"endTime,omitempty"`
	EndReason     string                     `json:"endReason,omitempty"`
	Finalized     bool                       `json:"-"`
}

// live reports a session that has neither reached a terminal status nor been
// finalized.
func (s Session) live() bool {
	return !s.Status.Terminal() && !s.Finalized
}

func (s Session) clone() Session {
	out := s
	out.CollectedData = make(map[StepName]CollectedStep, len(s.CollectedData))
	for step, entry := range s.CollectedData {
		out.CollectedData[step] = CollectedStep{
			Parameters: entry.Parameters.clone(),
			Timestamp:  entry.Timestamp,
		}
	}
	if s.Metadata != nil {
		out.Metadata = cloneFields(s.Metadata)
	}
	if s.EndTime != nil {
		endTime := *s.EndTime
		out.EndTime = &endTime
	}
	return out
}

// Summary reports the session as seen at now. Duration runs to EndTime once
// the session is terminal.
func (s Session) Summary(now time.Time) CallSummary {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	duration := end.Sub(s.StartTime)
	if duration < 0 {
		duration = 0
	}
	copied := s.clone()
	return CallSummary{
		CallID:        copied.CallID,
		RoomName:      copied.RoomName,
		Target:        copied.Target,
		Status:        copied.Status,
		Duration:      duration,
		DurationMS:    duration.Milliseconds(),
		StartTime:     copied.StartTime,
		EndTime:       copied.EndTime,
		CollectedData: copied.CollectedData,
		EndReason:     copied.EndReason,
	}
}

type CallSummary struct {
	CallID        string                     `json:"callId"`
	RoomName      string                     `json:"roomName"`
	Target        Target                     `json:"target"`
	Status        SessionStatus              `json:"status"`
	Duration      time.Duration              `json:"-"`
	DurationMS    int64                      `json:"duration"`
	StartTime     time.Time                  `json:"startTime"`
	EndTime       *time.Time                 `json:"endTime"`
	CollectedData map[StepName]CollectedStep `json:"collectedData"`
	EndReason     string                     `json:"endReason,omitempty"`
}

type CreateSessionRequest struct {
	CallID      string
	RoomName    string
	Target      Target
	InitialData map[StepName]StepParameters
	Metadata    map[string]any
}

// CallLogEntry is what a backend receives when a finalized call is logged.
type CallLogEntry struct {
	CallID   string
	Status   SessionStatus
	Outcome  string
	Duration time.Duration
	Notes    string
	LoggedAt time.Time
}

// CallRecord is the archived form of a finalized call.
type CallRecord struct {
	ID            string
	CallID        string
	RoomName      string
	Target        Target
	Status        SessionStatus
	EndReason     string
	Notes         string
	CollectedData map[StepName]CollectedStep
	StartedAt     time.Time
	EndedAt       time.Time
	Duration      time.Duration
	CreatedAt     time.Time
}

type CallRecordFilter struct {
	TargetKind TargetKind
	Status     SessionStatus
	Limit      int
}
