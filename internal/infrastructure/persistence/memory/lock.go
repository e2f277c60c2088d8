package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
)

// Locker is a single-process lock with expiry.
type Locker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewLocker creates a Locker.
func NewLocker() *Locker {
	return &Locker{held: make(map[string]time.Time), now: time.Now}
}

// Acquire takes key for ttl. It fails with shared.ErrLocked while another holder owns it.
func (l *Locker) Acquire(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expires, ok := l.held[key]; ok && now.Before(expires) {
		return nil, shared.ErrLocked
	}
	expires := now.Add(ttl)
	l.held[key] = expires

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key].Equal(expires) {
			delete(l.held, key)
		}
		return nil
	}, nil
}
