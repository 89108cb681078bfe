package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrStateNotFound = errors.New("ratelimit: state not found")

// State is what the policy remembers about one backend host.
type State struct {
	Host           string
	Limit          int
	Remaining      int
	ResetAt        *time.Time
	RetryAfter     *time.Duration
	ThrottledUntil *time.Time
	LastStatus     int
	Attempts       int
	UpdatedAt      time.Time
}

// blockedFor returns how long calls to the host must wait at now.
func (s State) blockedFor(now time.Time) time.Duration {
	var wait time.Duration
	if s.ThrottledUntil != nil && now.Before(*s.ThrottledUntil) {
		wait = s.ThrottledUntil.Sub(now)
	}
	if s.Remaining == 0 && s.ResetAt != nil && now.Before(*s.ResetAt) {
		wait = max(wait, s.ResetAt.Sub(now))
	}
	return wait
}

type StateStore interface {
	Get(ctx context.Context, host string) (State, error)
	Upsert(ctx context.Context, state State) error
}

// MemoryStateStore keeps host state for the life of the process.
type MemoryStateStore struct {
	mu    sync.RWMutex
	hosts map[string]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{hosts: make(map[string]State)}
}

func (s *MemoryStateStore) Get(_ context.Context, host string) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.hosts[hostKey(host)]; ok {
		return state, nil
	}
	return State{}, ErrStateNotFound
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	state.Host = hostKey(state.Host)
	s.mu.Lock()
	s.hosts[state.Host] = state
	s.mu.Unlock()
	return nil
}

func hostKey(host string) string {
	return strings.ToLower(strings.TrimSpace(host))
}
