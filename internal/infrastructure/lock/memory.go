package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"NewsPipeline/internal/ports"
)

// MemoryLocker holds named locks inside the process. Expired entries are free
// again, so a crashed holder never blocks a hook beyond its TTL.
type MemoryLocker struct {
	mu    sync.Mutex
	locks *gocache.Cache
}

var _ ports.Locker = (*MemoryLocker)(nil)

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: gocache.New(gocache.NoExpiration, time.Minute)}
}

// TryAcquire never blocks: ok is false when another holder has the lock.
func (m *MemoryLocker) TryAcquire(_ context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	if err := m.locks.Add(name, token, ttl); err != nil {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the lock only when token still owns it.
func (m *MemoryLocker) Release(_ context.Context, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.locks.Get(name); ok && current.(string) == token {
		m.locks.Delete(name)
	}
	return nil
}
