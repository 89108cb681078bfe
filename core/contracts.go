package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// BackendConnector applies a normalized update to one contact record and
// returns the fields it actually wrote.
type BackendConnector interface {
	ApplyUpdate(ctx context.Context, target Target, fields Fields) (Fields, error)
}

// CallLogger is an optional connector capability for recording a finalized
// call against the contact.
type CallLogger interface {
	LogCall(ctx context.Context, target Target, entry CallLogEntry) error
}

// RoomReleaser deletes the transport room tied to a call.
type RoomReleaser interface {
	DeleteRoom(ctx context.Context, roomName string) error
}

// CallArchive keeps finalized calls beyond the registry eviction window.
type CallArchive interface {
	Record(ctx context.Context, record CallRecord) (CallRecord, error)
	Get(ctx context.Context, callID string) (CallRecord, error)
	List(ctx context.Context, filter CallRecordFilter) ([]CallRecord, error)
}

type Timer interface {
	Stop() bool
}

// Scheduler runs fn once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type InboundRequest struct {
	ProviderID string
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
	ReceivedAt time.Time
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	Body       map[string]any
	Metadata   map[string]any
}
