package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"
)

func newTestRegistry(clock *fakeClock, scheduler *fakeScheduler) *SessionRegistry {
	return NewSessionRegistry(
		WithRegistryClock(clock.Now),
		WithRegistryScheduler(scheduler),
	)
}

func sheetTarget(row int) Target {
	return Target{Kind: TargetKindSheet, RowNumber: row}
}

func TestSessionRegistryCreateDefaultsIdentifiers(t *testing.T) {
	registry := newTestRegistry(newFakeClock(), &fakeScheduler{})
	session, err := registry.Create(context.Background(), CreateSessionRequest{Target: sheetTarget(5)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if session.CallID == "" {
		t.Fatalf("expected generated call id")
	}
	if session.RoomName != "verification-call-"+session.CallID {
		t.Fatalf("unexpected room name %q", session.RoomName)
	}
	if session.Status != SessionStatusInitiating {
		t.Fatalf("expected initiating status, got %q", session.Status)
	}
}

func TestSessionRegistryCreateRejectsDuplicatesAndMissingTargets(t *testing.T) {
	registry := newTestRegistry(newFakeClock(), &fakeScheduler{})
	ctx := context.Background()
	if _, err := registry.Create(ctx, CreateSessionRequest{CallID: "call_1", Target: sheetTarget(2)}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := registry.Create(ctx, CreateSessionRequest{CallID: "call_1", Target: sheetTarget(2)})
	if !IsConflict(err) {
		t.Fatalf("expected conflict for duplicate call id, got %v", err)
	}
	_, err = registry.Create(ctx, CreateSessionRequest{CallID: "call_2", Target: Target{Kind: TargetKindCRM}})
	if err == nil {
		t.Fatalf("expected crm target without contact id to be rejected")
	}
}

func TestSessionRegistryCreateRejectsRoomHeldByLiveCall(t *testing.T) {
	registry := newTestRegistry(newFakeClock(), &fakeScheduler{})
	ctx := context.Background()
	if _, err := registry.Create(ctx, CreateSessionRequest{CallID: "a", RoomName: "room-1", Target: sheetTarget(2)}); err != nil {
		t.Fatalf("create a: %v", err)
	}
	_, err := registry.Create(ctx, CreateSessionRequest{CallID: "b", RoomName: "room-1", Target: sheetTarget(3)})
	if !IsConflict(err) || HTTPStatus(err) != http.StatusConflict {
		t.Fatalf("expected room conflict, got %v", err)
	}

	if _, err := registry.MarkTerminal(ctx, "a", SessionStatusEndedEarly, ReasonDisconnected); err != nil {
		t.Fatalf("mark terminal: %v", err)
	}
	if _, err := registry.Create(ctx, CreateSessionRequest{CallID: "b", RoomName: "room-1", Target: sheetTarget(3)}); err != nil {
		t.Fatalf("expected room to be reusable once a is terminal, got %v", err)
	}
}

func TestSessionRegistryFindByRoomPrefersLiveSession(t *testing.T) {
	clock := newFakeClock()
	registry := newTestRegistry(clock, &fakeScheduler{})
	ctx := context.Background()
	for _, callID := range []string{"a", "b", "c"} {
		if _, err := registry.Create(ctx, CreateSessionRequest{CallID: callID, RoomName: "room-1", Target: sheetTarget(2)}); err != nil {
			t.Fatalf("create %s: %v", callID, err)
		}
		if callID == "c" {
			break
		}
		if _, err := registry.MarkTerminal(ctx, callID, SessionStatusCompleted, ""); err != nil {
			t.Fatalf("mark terminal %s: %v", callID, err)
		}
		if _, err := registry.MarkFinalized(ctx, callID); err != nil {
			t.Fatalf("mark finalized %s: %v", callID, err)
		}
		clock.Advance(time.Second)
	}

	for i := 0; i < 20; i++ {
		found, err := registry.FindByRoom(ctx, "room-1")
		if err != nil || found.CallID != "c" {
			t.Fatalf("expected live call c, got %q %v", found.CallID, err)
		}
	}

	if _, err := registry.MarkTerminal(ctx, "c", SessionStatusEndedEarly, ReasonDisconnected); err != nil {
		t.Fatalf("mark terminal c: %v", err)
	}
	found, err := registry.FindByRoom(ctx, "room-1")
	if err != nil || found.CallID != "c" {
		t.Fatalf("expected unfinalized call c ahead of finalized ones, got %q %v", found.CallID, err)
	}
}

func TestSessionRegistryApplyStepStatusTransitions(t *testing.T) {
	cases := []struct {
		step       StepName
		params     StepParameters
		wantStatus SessionStatus
		wantReason string
		wantEnd    bool
	}{
		{step: StepRecordGatekeeper, params: StepParameters{"full_name": "Jane"}, wantStatus: SessionStatusInProgress},
		{step: StepCompleteCall, params: StepParameters{"outcome": "success"}, wantStatus: SessionStatusCompleted, wantEnd: true},
		{step: StepEndCall, params: StepParameters{"outcome": "refused"}, wantStatus: SessionStatusEndedEarly, wantReason: "refused", wantEnd: true},
	}
	for _, tc := range cases {
		t.Run(string(tc.step), func(t *testing.T) {
			registry := newTestRegistry(newFakeClock(), &fakeScheduler{})
			ctx := context.Background()
			if _, err := registry.Create(ctx, CreateSessionRequest{CallID: "call_1", Target: sheetTarget(5)}); err != nil {
				t.Fatalf("create: %v", err)
			}
			session, err := registry.ApplyStep(ctx, "call_1", tc.step, tc.params)
			if err != nil {
				t.Fatalf("apply step: %v", err)
			}
			if session.Status != tc.wantStatus {
				t.Fatalf("expected status %q, got %q", tc.wantStatus, session.Status)
			}
			if session.EndReason != tc.wantReason {
				t.Fatalf("expected end reason %q, got %q", tc.wantReason, session.EndReason)
			}
			if (session.EndTime != nil) != tc.wantEnd {
				t.Fatalf("unexpected end time %v", session.EndTime)
			}
			if _, ok := session.CollectedData[tc.step]; !ok {
				t.Fatalf("expected collected data for %q", tc.step)
			}
		})
	}
}

func TestSessionRegistryApplyStepIgnoresTerminalSessions(t *testing.T) {
	registry := newTestRegistry(newFakeClock(), &fakeScheduler{})
	ctx := context.Background()
	_, _ = registry.Create(ctx, CreateSessionRequest{CallID: "call_1", Target: sheetTarget(5)})
	if _, err := registry.ApplyStep(ctx, "call_1", StepCompleteCall, StepParameters{"outcome": "success"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	session, err := registry.ApplyStep(ctx, "call_1", StepRecordGatekeeper, StepParameters{"full_name": "Late"})
	if err != nil {
		t.Fatalf("late step: %v", err)
	}
	if session.Status != SessionStatusCompleted {
		t.Fatalf("expected completed status to stick, got %q", session.Status)
	}
	if _, ok := session.CollectedData[StepRecordGatekeeper]; ok {
		t.Fatalf("expected late step to be ignored")
	}
}

func TestSessionRegistryApplyStepRedeliveryKeepsTimestamp(t *testing.T) {
	clock := newFakeClock()
	registry := newTestRegistry(clock, &fakeScheduler{})
	ctx := context.Background()
	_, _ = registry.Create(ctx, CreateSessionRequest{CallID: "call_1", Target: sheetTarget(5)})

	first, err := registry.ApplyStep(ctx, "call_1", StepVerifyEmail, StepParameters{"confirmed": true})
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	clock.Advance(5 * time.Second)
	second, err := registry.ApplyStep(ctx, "call_1", StepVerifyEmail, StepParameters{"confirmed": true})
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if !second.CollectedData[StepVerifyEmail].Timestamp.Equal(first.CollectedData[StepVerifyEmail].Timestamp) {
		t.Fatalf("expected identical redelivery to keep the original timestamp")
	}

	clock.Advance(5 * time.Second)
	third, err := registry.ApplyStep(ctx, "call_1", StepVerifyEmail, StepParameters{"confirmed": false, "corrected_email": "a@b.c"})
	if err != nil {
		t.Fatalf("third apply: %v", err)
	}
	if !third.CollectedData[StepVerifyEmail].Timestamp.Equal(clock.Now()) {
		t.Fatalf("expected changed parameters to replace the entry")
	}
}

func TestSessionRegistryConcurrentStepsAreNotLost(t *testing.T) {
	registry := newTestRegistry(newFakeClock(), &fakeScheduler{})
	ctx := context.Background()
	_, _ = registry.Create(ctx, CreateSessionRequest{CallID: "call_1", Target: sheetTarget(5)})

	steps := []StepName{StepRecordGatekeeper, StepVerifyAddress, StepVerifyEmail, StepVerifyDM, StepCollectDirectNumber}
	var wg sync.WaitGroup
	for index, step := range steps {
		wg.Add(1)
		go func(index int, step StepName) {
			defer wg.Done()
			handle, err := registry.Lock(ctx, "call_1")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			defer handle.Unlock()
			if _, err := registry.ApplyStep(ctx, "call_1", step, StepParameters{"n": fmt.Sprint(index)}); err != nil {
				t.Errorf("apply %s: %v", step, err)
			}
		}(index, step)
	}
	wg.Wait()

	session, err := registry.Get(ctx, "call_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(session.CollectedData) != len(steps) {
		t.Fatalf("expected %d collected steps, got %d", len(steps), len(session.CollectedData))
	}
}

func TestSessionRegistryMarkTerminalIsForwardOnly(t *testing.T) {
	registry := newTestRegistry(newFakeClock(), &fakeScheduler{})
	ctx := context.Background()
	_, _ = registry.Create(ctx, CreateSessionRequest{CallID: "call_1", Target: sheetTarget(5)})

	if _, err := registry.MarkTerminal(ctx, "call_1", SessionStatusInProgress, ""); err == nil {
		t.Fatalf("expected non-terminal status to be rejected")
	}
	session, err := registry.MarkTerminal(ctx, "call_1", SessionStatusEndedEarly, ReasonDisconnected)
	if err != nil {
		t.Fatalf("mark terminal: %v", err)
	}
	if session.EndReason != ReasonDisconnected {
		t.Fatalf("unexpected end reason %q", session.EndReason)
	}
	session, err = registry.MarkTerminal(ctx, "call_1", SessionStatusCompleted, "")
	if err != nil {
		t.Fatalf("second mark terminal: %v", err)
	}
	if session.Status != SessionStatusEndedEarly || session.EndReason != ReasonDisconnected {
		t.Fatalf("expected original terminal state to remain, got %q/%q", session.Status, session.EndReason)
	}
}

func TestSessionRegistryMarkFinalizedOnce(t *testing.T) {
	registry := newTestRegistry(newFakeClock(), &fakeScheduler{})
	ctx := context.Background()
	_, _ = registry.Create(ctx, CreateSessionRequest{CallID: "call_1", Target: sheetTarget(5)})

	first, err := registry.MarkFinalized(ctx, "call_1")
	if err != nil || !first {
		t.Fatalf("expected first finalize to win, got %v %v", first, err)
	}
	second, err := registry.MarkFinalized(ctx, "call_1")
	if err != nil || second {
		t.Fatalf("expected second finalize to be a no-op, got %v %v", second, err)
	}
	if _, err := registry.MarkFinalized(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("expected not found for unknown call, got %v", err)
	}
}

func TestSessionRegistryScheduleEviction(t *testing.T) {
	clock := newFakeClock()
	scheduler := &fakeScheduler{}
	metrics := &captureMetricsRecorder{}
	registry := NewSessionRegistry(
		WithRegistryClock(clock.Now),
		WithRegistryScheduler(scheduler),
		WithRegistryMetrics(metrics),
	)
	ctx := context.Background()
	_, _ = registry.Create(ctx, CreateSessionRequest{CallID: "call_1", Target: sheetTarget(5)})

	handle, err := registry.ScheduleEviction(ctx, "call_1", 60*time.Second)
	if err != nil {
		t.Fatalf("schedule eviction: %v", err)
	}
	if !handle.DueAt.Equal(clock.Now().Add(60 * time.Second)) {
		t.Fatalf("unexpected due time %v", handle.DueAt)
	}
	again, err := registry.ScheduleEviction(ctx, "call_1", 5*time.Second)
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if !again.DueAt.Equal(handle.DueAt) {
		t.Fatalf("expected existing handle to be returned")
	}
	pending := scheduler.pending()
	if len(pending) != 1 || pending[0].delay != 60*time.Second {
		t.Fatalf("expected one pending 60s timer, got %d", len(pending))
	}

	if _, err := registry.Get(ctx, "call_1"); err != nil {
		t.Fatalf("expected session to remain readable before eviction: %v", err)
	}
	scheduler.fireAll()
	if _, err := registry.Get(ctx, "call_1"); !IsNotFound(err) {
		t.Fatalf("expected session to be evicted, got %v", err)
	}
	if metrics.count(MetricSessionEvicted, "", "") != 1 {
		t.Fatalf("expected eviction metric")
	}
}

func TestSessionRegistryEvictionCancel(t *testing.T) {
	scheduler := &fakeScheduler{}
	registry := newTestRegistry(newFakeClock(), scheduler)
	ctx := context.Background()
	_, _ = registry.Create(ctx, CreateSessionRequest{CallID: "call_1", Target: sheetTarget(5)})

	handle, err := registry.ScheduleEviction(ctx, "call_1", time.Minute)
	if err != nil {
		t.Fatalf("schedule eviction: %v", err)
	}
	if !handle.Cancel() {
		t.Fatalf("expected cancel to stop the pending eviction")
	}
	if handle.Cancel() {
		t.Fatalf("expected second cancel to report false")
	}
	if fired := scheduler.fireAll(); fired != 0 {
		t.Fatalf("expected no timers to fire, got %d", fired)
	}
	if registry.Len() != 1 {
		t.Fatalf("expected session to remain after cancel")
	}
}

func TestSessionRegistryListOrdersByStartTime(t *testing.T) {
	clock := newFakeClock()
	registry := newTestRegistry(clock, &fakeScheduler{})
	ctx := context.Background()
	_, _ = registry.Create(ctx, CreateSessionRequest{CallID: "b", Target: sheetTarget(2)})
	clock.Advance(time.Second)
	_, _ = registry.Create(ctx, CreateSessionRequest{CallID: "a", Target: sheetTarget(3)})

	sessions := registry.List(ctx)
	if len(sessions) != 2 || sessions[0].CallID != "b" || sessions[1].CallID != "a" {
		t.Fatalf("unexpected order %#v", sessions)
	}
	found, err := registry.FindByRoom(ctx, "verification-call-a")
	if err != nil || found.CallID != "a" {
		t.Fatalf("expected room lookup to find call a, got %v %v", found.CallID, err)
	}
}
