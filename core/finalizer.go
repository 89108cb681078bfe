package core

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

const disconnectedNotes = "Call disconnected unexpectedly"

// Finalizer runs the end-of-call sequence: call log, archive, room release
// and delayed eviction. Every step after marking the session finalized is
// best-effort.
type Finalizer struct {
	registry  *SessionRegistry
	backend   backendWriter
	rooms     RoomReleaser
	archive   CallArchive
	grace     time.Duration
	telemetry telemetry
}

type FinalizerDependencies struct {
	Registry   *SessionRegistry
	Connectors ConnectorSet
	Rooms      RoomReleaser
	Archive    CallArchive
	Grace      time.Duration
	Logger     Logger
	Metrics    MetricsRecorder
}

func NewFinalizer(deps FinalizerDependencies) *Finalizer {
	logger := deps.Logger
	if logger == nil {
		logger = nopLogger()
	}
	var metrics MetricsRecorder = NopMetricsRecorder{}
	if deps.Metrics != nil {
		metrics = deps.Metrics
	}
	grace := deps.Grace
	if grace <= 0 {
		grace = DefaultEvictionGrace
	}
	tel := telemetry{logger: logger, metrics: metrics}
	return &Finalizer{
		registry:  deps.Registry,
		backend:   backendWriter{connectors: deps.Connectors, telemetry: tel},
		rooms:     deps.Rooms,
		archive:   deps.Archive,
		grace:     grace,
		telemetry: tel,
	}
}

// Finalize runs once per session. The caller must hold the call lock.
func (f *Finalizer) Finalize(ctx context.Context, callID string) error {
	session, err := f.registry.Get(ctx, callID)
	if err != nil {
		return err
	}
	if !session.Status.Terminal() {
		return badInput("core: cannot finalize a live call session", map[string]any{
			"call_id": callID,
			"status":  session.Status,
		})
	}
	first, err := f.registry.MarkFinalized(ctx, callID)
	if err != nil {
		return err
	}
	if !first {
		f.telemetry.debug(ctx, "call session already finalized", map[string]any{"call_id": callID})
		return nil
	}

	summary := session.Summary(f.registry.Now())
	notes := BuildCallNotes(summary)
	f.logCall(ctx, session, summary, notes)
	f.archiveCall(ctx, session, summary, notes)
	f.releaseRoom(ctx, session)

	handle, err := f.registry.ScheduleEviction(ctx, callID, f.grace)
	if err != nil {
		return err
	}
	f.telemetry.counter(ctx, MetricSessionFinalized, 1, map[string]string{"status": string(session.Status)})
	f.telemetry.info(ctx, "call session finalized", map[string]any{
		"call_id":     callID,
		"status":      session.Status,
		"duration_ms": summary.DurationMS,
		"evict_at":    handle.DueAt,
	})
	return nil
}

// RoomEvent is a room lifecycle notification. CallID is optional; when it
// names a session on the same room it is used instead of a room lookup.
type RoomEvent struct {
	RoomName string
	CallID   string
	Event    string
}

// HandleRoomEnded guards against calls that hang up without a terminal step.
// A live session on the room is ended early and finalized. Unknown rooms are
// ignored.
func (f *Finalizer) HandleRoomEnded(ctx context.Context, ev RoomEvent) (Session, error) {
	roomName, event := ev.RoomName, ev.Event
	found, err := f.resolveRoomSession(ctx, ev)
	if err != nil {
		if IsNotFound(err) {
			f.telemetry.debug(ctx, "room event for unknown session", map[string]any{
				"room_name": roomName,
				"call_id":   ev.CallID,
				"event":     event,
			})
			return Session{}, nil
		}
		return Session{}, err
	}

	handle, err := f.registry.Lock(ctx, found.CallID)
	if err != nil {
		return Session{}, err
	}
	defer handle.Unlock()

	session, err := f.registry.Get(ctx, found.CallID)
	if err != nil {
		return Session{}, nil
	}
	if !session.Status.Terminal() {
		f.telemetry.warn(ctx, "call ended unexpectedly", map[string]any{
			"call_id":   session.CallID,
			"room_name": roomName,
			"event":     event,
		})
		session, err = f.registry.MarkTerminal(ctx, session.CallID, SessionStatusEndedEarly, ReasonDisconnected)
		if err != nil {
			return Session{}, err
		}
		f.backend.write(ctx, session, event, DisconnectFields(session.Target.Kind, disconnectedNotes, f.registry.Now()))
	}
	if err := f.Finalize(ctx, session.CallID); err != nil {
		return session, err
	}
	return f.snapshot(ctx, session), nil
}

func (f *Finalizer) resolveRoomSession(ctx context.Context, ev RoomEvent) (Session, error) {
	if callID := strings.TrimSpace(ev.CallID); callID != "" {
		session, err := f.registry.Get(ctx, callID)
		if err == nil && (ev.RoomName == "" || session.RoomName == ev.RoomName) {
			return session, nil
		}
		if err != nil && !IsNotFound(err) {
			return Session{}, err
		}
	}
	if ev.RoomName == "" {
		return Session{}, sessionNotFound(ev.CallID)
	}
	return f.registry.FindByRoom(ctx, ev.RoomName)
}

// EndCall ends a live call on request. Already terminal sessions are only
// finalized.
func (f *Finalizer) EndCall(ctx context.Context, callID string, reason string) (Session, error) {
	callID = strings.TrimSpace(callID)
	handle, err := f.registry.Lock(ctx, callID)
	if err != nil {
		return Session{}, err
	}
	defer handle.Unlock()

	session, err := f.registry.Get(ctx, callID)
	if err != nil {
		return Session{}, err
	}
	if !session.Status.Terminal() {
		if strings.TrimSpace(reason) == "" {
			reason = ReasonManualEnd
		}
		session, err = f.registry.MarkTerminal(ctx, callID, SessionStatusEndedEarly, reason)
		if err != nil {
			return Session{}, err
		}
	}
	if err := f.Finalize(ctx, callID); err != nil {
		return session, err
	}
	return f.snapshot(ctx, session), nil
}

func (f *Finalizer) snapshot(ctx context.Context, fallback Session) Session {
	session, err := f.registry.Get(ctx, fallback.CallID)
	if err != nil {
		return fallback
	}
	return session
}

func (f *Finalizer) logCall(ctx context.Context, session Session, summary CallSummary, notes string) {
	connector, err := f.backend.connectors.Resolve(session.Target.Kind)
	if err != nil {
		return
	}
	callLogger, ok := connector.(CallLogger)
	if !ok {
		return
	}
	if err := session.Target.Validate(); err != nil {
		return
	}
	outcome := session.EndReason
	if session.Status == SessionStatusCompleted {
		outcome = OutcomeSuccess
	}
	entry := CallLogEntry{
		CallID:   session.CallID,
		Status:   session.Status,
		Outcome:  outcome,
		Duration: summary.Duration,
		Notes:    notes,
		LoggedAt: f.registry.Now(),
	}
	if err := callLogger.LogCall(ctx, session.Target, entry); err != nil {
		f.telemetry.error(ctx, "failed to log call", map[string]any{
			"call_id":     session.CallID,
			"target_kind": session.Target.Kind,
			"error":       err.Error(),
		})
		return
	}
	f.telemetry.info(ctx, "call logged", map[string]any{
		"call_id":     session.CallID,
		"target_kind": session.Target.Kind,
	})
}

func (f *Finalizer) archiveCall(ctx context.Context, session Session, summary CallSummary, notes string) {
	if f.archive == nil {
		return
	}
	endedAt := f.registry.Now()
	if session.EndTime != nil {
		endedAt = *session.EndTime
	}
	record := CallRecord{
		ID:            uuid.NewString(),
		CallID:        session.CallID,
		RoomName:      session.RoomName,
		Target:        session.Target,
		Status:        session.Status,
		EndReason:     session.EndReason,
		Notes:         notes,
		CollectedData: summary.CollectedData,
		StartedAt:     session.StartTime,
		EndedAt:       endedAt,
		Duration:      summary.Duration,
		CreatedAt:     f.registry.Now(),
	}
	if _, err := f.archive.Record(ctx, record); err != nil {
		f.telemetry.error(ctx, "failed to archive call", map[string]any{
			"call_id": session.CallID,
			"error":   err.Error(),
		})
	}
}

func (f *Finalizer) releaseRoom(ctx context.Context, session Session) {
	if f.rooms == nil || strings.TrimSpace(session.RoomName) == "" {
		return
	}
	if err := f.rooms.DeleteRoom(ctx, session.RoomName); err != nil {
		f.telemetry.warn(ctx, "failed to delete room", map[string]any{
			"call_id":   session.CallID,
			"room_name": session.RoomName,
			"error":     err.Error(),
		})
		return
	}
	f.telemetry.info(ctx, "room deleted", map[string]any{
		"call_id":   session.CallID,
		"room_name": session.RoomName,
	})
}
