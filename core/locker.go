package core

import (
	"context"
	"strings"
	"sync"
)

type LockHandle interface {
	Unlock()
}

// CallLocker serializes work for one call id. Acquire blocks until the key is
// free or ctx is done; distinct keys never contend.
type CallLocker interface {
	Acquire(ctx context.Context, callID string) (LockHandle, error)
}

type MemoryCallLocker struct {
	mu    sync.Mutex
	slots map[string]*callSlot
}

type callSlot struct {
	ch   chan struct{}
	refs int
}

func NewMemoryCallLocker() *MemoryCallLocker {
	return &MemoryCallLocker{slots: make(map[string]*callSlot)}
}

func (l *MemoryCallLocker) Acquire(ctx context.Context, callID string) (LockHandle, error) {
	if l == nil {
		return nil, NewNotConfiguredError("core: call locker is not configured", nil)
	}
	callID = strings.TrimSpace(callID)
	if callID == "" {
		return nil, badInput("core: call id is required for lock acquisition", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	l.mu.Lock()
	slot, ok := l.slots[callID]
	if !ok {
		slot = &callSlot{ch: make(chan struct{}, 1)}
		l.slots[callID] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		return &memoryCallLock{locker: l, callID: callID, slot: slot}, nil
	case <-ctx.Done():
		l.release(callID, slot)
		return nil, ctx.Err()
	}
}

// Held reports how many goroutines hold or wait on callID.
func (l *MemoryCallLocker) Held(callID string) int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if slot, ok := l.slots[strings.TrimSpace(callID)]; ok {
		return slot.refs
	}
	return 0
}

func (l *MemoryCallLocker) release(callID string, slot *callSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs <= 0 {
		delete(l.slots, callID)
	}
}

type memoryCallLock struct {
	locker *MemoryCallLocker
	callID string
	slot   *callSlot
	once   sync.Once
}

func (h *memoryCallLock) Unlock() {
	if h == nil || h.locker == nil {
		return
	}
	h.once.Do(func() {
		<-h.slot.ch
		h.locker.release(h.callID, h.slot)
	})
}
