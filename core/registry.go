package core

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type RegistryOption func(*SessionRegistry)

func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *SessionRegistry) {
		if now != nil {
			r.now = now
		}
	}
}

func WithRegistryScheduler(scheduler Scheduler) RegistryOption {
	return func(r *SessionRegistry) {
		if scheduler != nil {
			r.scheduler = scheduler
		}
	}
}

func WithRegistryLocker(locker CallLocker) RegistryOption {
	return func(r *SessionRegistry) {
		if locker != nil {
			r.locker = locker
		}
	}
}

func WithRegistryLogger(logger Logger) RegistryOption {
	return func(r *SessionRegistry) {
		if logger != nil {
			r.telemetry.logger = logger
		}
	}
}

func WithRegistryMetrics(recorder MetricsRecorder) RegistryOption {
	return func(r *SessionRegistry) {
		if recorder != nil {
			r.telemetry.metrics = recorder
		}
	}
}

type scheduledEviction struct {
	handle EvictionHandle
	timer  Timer
	seq    uint64
}

// SessionRegistry is the in-memory source of truth for live call sessions.
// Map access is guarded by mu; multi-step work on one call is serialized by
// the CallLocker returned from Lock.
type SessionRegistry struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	evictions map[string]scheduledEviction
	seq       uint64

	locker    CallLocker
	scheduler Scheduler
	now       func() time.Time
	telemetry telemetry
}

func NewSessionRegistry(opts ...RegistryOption) *SessionRegistry {
	r := &SessionRegistry{
		sessions:  make(map[string]*Session),
		evictions: make(map[string]scheduledEviction),
		locker:    NewMemoryCallLocker(),
		scheduler: NewTimeScheduler(),
		now:       func() time.Time { return time.Now().UTC() },
		telemetry: telemetry{logger: nopLogger(), metrics: NopMetricsRecorder{}},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r
}

func (r *SessionRegistry) Create(ctx context.Context, req CreateSessionRequest) (Session, error) {
	if err := req.Target.Validate(); err != nil {
		return Session{}, err
	}
	callID := strings.TrimSpace(req.CallID)
	if callID == "" {
		callID = uuid.NewString()
	}
	roomName := strings.TrimSpace(req.RoomName)
	if roomName == "" {
		roomName = "verification-call-" + callID
	}

	now := r.now()
	session := &Session{
		CallID:        callID,
		RoomName:      roomName,
		Target:        req.Target,
		Status:        SessionStatusInitiating,
		CollectedData: make(map[StepName]CollectedStep, len(req.InitialData)),
		StartTime:     now,
	}
	if len(req.Metadata) > 0 {
		session.Metadata = cloneFields(req.Metadata)
	}
	for step, params := range req.InitialData {
		session.CollectedData[step] = CollectedStep{Parameters: params.clone(), Timestamp: now}
	}

	r.mu.Lock()
	if _, exists := r.sessions[callID]; exists {
		r.mu.Unlock()
		return Session{}, newError(
			fmt.Sprintf("core: call session %q already exists", callID),
			goerrors.CategoryConflict,
			http.StatusConflict,
			ErrorSessionExists,
			map[string]any{"call_id": callID},
		)
	}
	if holder, busy := r.roomHolderLocked(roomName); busy {
		r.mu.Unlock()
		return Session{}, newError(
			fmt.Sprintf("core: room %q is held by live call %q", roomName, holder.CallID),
			goerrors.CategoryConflict,
			http.StatusConflict,
			ErrorRoomInUse,
			map[string]any{"call_id": callID, "room_name": roomName, "holder_call_id": holder.CallID},
		)
	}
	r.sessions[callID] = session
	snapshot := session.clone()
	r.mu.Unlock()

	r.telemetry.info(ctx, "call session created", map[string]any{
		"call_id":     callID,
		"room_name":   roomName,
		"target_kind": req.Target.Kind,
	})
	return snapshot, nil
}

func (r *SessionRegistry) Get(_ context.Context, callID string) (Session, error) {
	callID = strings.TrimSpace(callID)
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[callID]
	if !ok {
		return Session{}, sessionNotFound(callID)
	}
	return session.clone(), nil
}

// FindByRoom returns the session on roomName. A live session wins over a
// finished one still waiting out its eviction grace; ties go to the most
// recently started.
func (r *SessionRegistry) FindByRoom(_ context.Context, roomName string) (Session, error) {
	roomName = strings.TrimSpace(roomName)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *Session
	for _, session := range r.sessions {
		if session.RoomName != roomName {
			continue
		}
		if best == nil || roomPreferred(session, best) {
			best = session
		}
	}
	if best == nil {
		return Session{}, newError("core: no call session for room", goerrors.CategoryNotFound,
			http.StatusNotFound, ErrorSessionNotFound, map[string]any{"room_name": roomName})
	}
	return best.clone(), nil
}

func roomPreferred(candidate *Session, current *Session) bool {
	if a, b := candidate.live(), current.live(); a != b {
		return a
	}
	if a, b := !candidate.Finalized, !current.Finalized; a != b {
		return a
	}
	if !candidate.StartTime.Equal(current.StartTime) {
		return candidate.StartTime.After(current.StartTime)
	}
	return candidate.CallID > current.CallID
}

// roomHolderLocked returns the live session on roomName. r.mu must be held.
func (r *SessionRegistry) roomHolderLocked(roomName string) (*Session, bool) {
	for _, session := range r.sessions {
		if session.RoomName == roomName && session.live() {
			return session, true
		}
	}
	return nil, false
}

// ApplyStep records params under step and advances the status. A terminal
// session is returned unchanged. Re-delivering identical parameters keeps the
// original entry, timestamp included.
func (r *SessionRegistry) ApplyStep(ctx context.Context, callID string, step StepName, params StepParameters) (Session, error) {
	callID = strings.TrimSpace(callID)
	if strings.TrimSpace(string(step)) == "" {
		return Session{}, badInput("core: step name is required", map[string]any{"call_id": callID})
	}

	r.mu.Lock()
	session, ok := r.sessions[callID]
	if !ok {
		r.mu.Unlock()
		return Session{}, sessionNotFound(callID)
	}
	if session.Status.Terminal() {
		snapshot := session.clone()
		r.mu.Unlock()
		r.telemetry.debug(ctx, "step ignored on terminal session", map[string]any{
			"call_id": callID,
			"step":    step,
			"status":  snapshot.Status,
		})
		return snapshot, nil
	}

	now := r.now()
	existing, seen := session.CollectedData[step]
	if !seen || !reflect.DeepEqual(existing.Parameters, params.clone()) {
		session.CollectedData[step] = CollectedStep{Parameters: params.clone(), Timestamp: now}
	}
	switch step {
	case StepCompleteCall:
		session.Status = SessionStatusCompleted
		session.EndTime = &now
	case StepEndCall:
		session.Status = SessionStatusEndedEarly
		session.EndTime = &now
		session.EndReason = params.String("outcome")
	default:
		session.Status = SessionStatusInProgress
	}
	snapshot := session.clone()
	r.mu.Unlock()

	r.telemetry.counter(ctx, MetricStepApplied, 1, map[string]string{"step": string(step)})
	r.telemetry.info(ctx, "call session state updated", map[string]any{
		"call_id": callID,
		"step":    step,
		"status":  snapshot.Status,
	})
	return snapshot, nil
}

// MarkTerminal moves a live session to status. Sessions that are already
// terminal keep their original status and reason.
func (r *SessionRegistry) MarkTerminal(ctx context.Context, callID string, status SessionStatus, reason string) (Session, error) {
	callID = strings.TrimSpace(callID)
	if !status.Terminal() {
		return Session{}, badInput(fmt.Sprintf("core: %q is not a terminal status", status), map[string]any{"call_id": callID})
	}

	r.mu.Lock()
	session, ok := r.sessions[callID]
	if !ok {
		r.mu.Unlock()
		return Session{}, sessionNotFound(callID)
	}
	if session.Status.Terminal() {
		snapshot := session.clone()
		r.mu.Unlock()
		return snapshot, nil
	}
	now := r.now()
	session.Status = status
	session.EndTime = &now
	if status == SessionStatusEndedEarly {
		session.EndReason = strings.TrimSpace(reason)
	}
	snapshot := session.clone()
	r.mu.Unlock()

	r.telemetry.info(ctx, "call session marked terminal", map[string]any{
		"call_id":    callID,
		"status":     status,
		"end_reason": snapshot.EndReason,
	})
	return snapshot, nil
}

// MarkFinalized flags the session as finalized and reports whether this call
// did it.
func (r *SessionRegistry) MarkFinalized(_ context.Context, callID string) (bool, error) {
	callID = strings.TrimSpace(callID)
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[callID]
	if !ok {
		return false, sessionNotFound(callID)
	}
	if session.Finalized {
		return false, nil
	}
	session.Finalized = true
	return true, nil
}

// ScheduleEviction removes the session after ttl. Scheduling again returns
// the existing handle.
func (r *SessionRegistry) ScheduleEviction(ctx context.Context, callID string, ttl time.Duration) (EvictionHandle, error) {
	callID = strings.TrimSpace(callID)
	if ttl <= 0 {
		ttl = DefaultEvictionGrace
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[callID]; !ok {
		return EvictionHandle{}, sessionNotFound(callID)
	}
	if existing, ok := r.evictions[callID]; ok {
		return existing.handle, nil
	}

	r.seq++
	seq := r.seq
	entry := scheduledEviction{seq: seq}
	entry.handle = EvictionHandle{
		CallID: callID,
		DueAt:  r.now().Add(ttl),
		cancel: func() bool { return r.cancelEviction(callID, seq) },
	}
	entry.timer = r.scheduler.AfterFunc(ttl, func() {
		r.evict(context.Background(), callID, seq)
	})
	r.evictions[callID] = entry

	r.telemetry.debug(ctx, "call session eviction scheduled", map[string]any{
		"call_id": callID,
		"due_at":  entry.handle.DueAt,
	})
	return entry.handle, nil
}

func (r *SessionRegistry) cancelEviction(callID string, seq uint64) bool {
	r.mu.Lock()
	entry, ok := r.evictions[callID]
	if !ok || entry.seq != seq {
		r.mu.Unlock()
		return false
	}
	delete(r.evictions, callID)
	r.mu.Unlock()
	if entry.timer == nil {
		return true
	}
	return entry.timer.Stop()
}

func (r *SessionRegistry) evict(ctx context.Context, callID string, seq uint64) {
	r.mu.Lock()
	entry, ok := r.evictions[callID]
	if !ok || entry.seq != seq {
		r.mu.Unlock()
		return
	}
	delete(r.evictions, callID)
	delete(r.sessions, callID)
	r.mu.Unlock()

	r.telemetry.counter(ctx, MetricSessionEvicted, 1, nil)
	r.telemetry.info(ctx, "call session removed from registry", map[string]any{"call_id": callID})
}

func (r *SessionRegistry) List(_ context.Context) []Session {
	r.mu.RLock()
	sessions := make([]Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session.clone())
	}
	r.mu.RUnlock()
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].StartTime.Equal(sessions[j].StartTime) {
			return sessions[i].CallID < sessions[j].CallID
		}
		return sessions[i].StartTime.Before(sessions[j].StartTime)
	})
	return sessions
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Lock serializes work on callID until the returned handle is unlocked.
func (r *SessionRegistry) Lock(ctx context.Context, callID string) (LockHandle, error) {
	return r.locker.Acquire(ctx, callID)
}

func (r *SessionRegistry) Now() time.Time {
	return r.now()
}
