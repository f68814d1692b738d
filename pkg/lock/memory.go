package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLock is an in-process Lock used by tests and single-node setups.
type MemoryLock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	lease time.Duration
}

func NewMemoryLock(lease time.Duration) *MemoryLock {
	if lease <= 0 {
		lease = DefaultLease
	}

	return &MemoryLock{
		held:  make(map[string]time.Time),
		lease: lease,
	}
}

func (l *MemoryLock) Acquire(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expiry, ok := l.held[key]; ok && time.Now().Before(expiry) {
		return false, nil
	}

	l.held[key] = time.Now().Add(l.lease)

	return true, nil
}

func (l *MemoryLock) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.held, key)

	return nil
}
