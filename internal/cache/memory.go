package cache

import (
	"context"
	"sync"
	"time"

	"github.com/seekerworks/jobpilot/internal/domain"
)

type memoryEntry struct {
	value   domain.Evaluation
	expires time.Time
}

// Memory is the single-process cache backend used by the CLI and tests.
// A janitor goroutine sweeps expired entries so long runs do not accumulate
// dead keys.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemory creates an in-memory cache with a background janitor.
func NewMemory() *Memory {
	m := &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go m.janitor(time.Minute)
	return m
}

func (m *Memory) Get(ctx context.Context, key string) (domain.Evaluation, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || m.now().After(entry.expires) {
		return domain.Evaluation{}, ErrMiss
	}
	return entry.value, nil
}

func (m *Memory) Set(ctx context.Context, key string, value domain.Evaluation, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{value: value, expires: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	return ok && !m.now().After(entry.expires), nil
}

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

func (m *Memory) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			now := m.now()
			m.mu.Lock()
			for key, entry := range m.entries {
				if now.After(entry.expires) {
					delete(m.entries, key)
				}
			}
			m.mu.Unlock()
		}
	}
}
