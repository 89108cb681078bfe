package callverify

import "github.com/goliatone/go-callverify/core"

type Config = core.Config

type Option = core.Option

type Orchestrator = core.Orchestrator

type Session = core.Session
type CallSummary = core.CallSummary
type CallRecord = core.CallRecord
type CreateSessionRequest = core.CreateSessionRequest
type Target = core.Target

type BackendConnector = core.BackendConnector
type CallArchive = core.CallArchive
type RoomReleaser = core.RoomReleaser
type MetricsRecorder = core.MetricsRecorder

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewOrchestrator(cfg Config, opts ...Option) (*Orchestrator, error) {
	return core.NewOrchestrator(cfg, opts...)
}
