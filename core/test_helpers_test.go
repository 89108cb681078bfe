package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeTimer struct {
	scheduler *fakeScheduler
	delay     time.Duration
	fn        func()
	stopped   bool
	fired     bool
}

func (t *fakeTimer) Stop() bool {
	t.scheduler.mu.Lock()
	defer t.scheduler.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// fakeScheduler records AfterFunc calls and fires them on demand.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	timer := &fakeTimer{scheduler: s, delay: d, fn: fn}
	s.timers = append(s.timers, timer)
	return timer
}

func (s *fakeScheduler) pending() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*fakeTimer{}
	for _, timer := range s.timers {
		if !timer.stopped && !timer.fired {
			out = append(out, timer)
		}
	}
	return out
}

func (s *fakeScheduler) fireAll() int {
	timers := s.pending()
	for _, timer := range timers {
		s.mu.Lock()
		timer.fired = true
		s.mu.Unlock()
		timer.fn()
	}
	return len(timers)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type connectorWrite struct {
	target Target
	fields Fields
}

type recordingConnector struct {
	mu     sync.Mutex
	writes []connectorWrite
	logs   []CallLogEntry
	err    error
	logErr error
}

func (c *recordingConnector) ApplyUpdate(_ context.Context, target Target, fields Fields) (Fields, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, connectorWrite{target: target, fields: fields.clone()})
	if c.err != nil {
		return nil, c.err
	}
	return fields.clone(), nil
}

func (c *recordingConnector) LogCall(_ context.Context, _ Target, entry CallLogEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, entry)
	return c.logErr
}

func (c *recordingConnector) snapshot() []connectorWrite {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]connectorWrite, len(c.writes))
	copy(out, c.writes)
	return out
}

func (c *recordingConnector) callLogs() []CallLogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CallLogEntry, len(c.logs))
	copy(out, c.logs)
	return out
}

// updateOnlyConnector has no CallLogger capability.
type updateOnlyConnector struct {
	calls int
}

func (c *updateOnlyConnector) ApplyUpdate(_ context.Context, _ Target, fields Fields) (Fields, error) {
	c.calls++
	return fields, nil
}

type stubRooms struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (s *stubRooms) DeleteRoom(_ context.Context, roomName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, roomName)
	return s.err
}

type memoryArchive struct {
	mu      sync.Mutex
	records []CallRecord
}

func (a *memoryArchive) Record(_ context.Context, record CallRecord) (CallRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, record)
	return record, nil
}

func (a *memoryArchive) Get(_ context.Context, callID string) (CallRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, record := range a.records {
		if record.CallID == callID {
			return record, nil
		}
	}
	return CallRecord{}, sessionNotFound(callID)
}

func (a *memoryArchive) List(context.Context, CallRecordFilter) ([]CallRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]CallRecord(nil), a.records...), nil
}

var errBackendDown = errors.New("backend down")

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

type orchestratorHarness struct {
	orchestrator *Orchestrator
	clock        *fakeClock
	scheduler    *fakeScheduler
	sheet        *recordingConnector
	crm          *recordingConnector
	rooms        *stubRooms
	archive      *memoryArchive
	logger       *captureLogger
	metrics      *captureMetricsRecorder
}

func newOrchestratorHarness(opts ...Option) (*orchestratorHarness, error) {
	h := &orchestratorHarness{
		clock:     newFakeClock(),
		scheduler: &fakeScheduler{},
		sheet:     &recordingConnector{},
		crm:       &recordingConnector{},
		rooms:     &stubRooms{},
		archive:   &memoryArchive{},
		logger:    newCaptureLogger(),
		metrics:   &captureMetricsRecorder{},
	}
	cfg := DefaultConfig()
	base := []Option{
		WithConfigProvider(&fixedConfigProvider{cfg: cfg}),
		WithOptionsResolver(&fixedOptionsResolver{cfg: cfg}),
		WithClock(h.clock.Now),
		WithScheduler(h.scheduler),
		WithConnector(TargetKindSheet, h.sheet),
		WithConnector(TargetKindCRM, h.crm),
		WithRoomReleaser(h.rooms),
		WithCallArchive(h.archive),
		WithLogger(h.logger),
		WithLoggerProvider(stubLoggerProvider{logger: h.logger}),
		WithMetricsRecorder(h.metrics),
	}
	orchestrator, err := NewOrchestrator(cfg, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	h.orchestrator = orchestrator
	return h, nil
}
