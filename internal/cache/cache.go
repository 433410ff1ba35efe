// Package cache holds the in-process caches shared by the services and the
// manager that evicts their expired entries in the background.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches that can drop their expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically cleans every registered cache.
type Manager struct {
	mu       sync.Mutex
	caches   map[string]Cleaner
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewManager() *Manager {
	return &Manager{
		caches: make(map[string]Cleaner),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Register adds a named cache to the cleanup rotation.
func (m *Manager) Register(name string, c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[name] = c
}

// StartCleanup begins periodic cleanup of all registered caches.
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CleanAll()
		case <-m.stop:
			return
		}
	}
}

// CleanAll runs one cleanup pass and returns the number of evicted entries.
func (m *Manager) CleanAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for name, c := range m.caches {
		if n := c.CleanExpired(); n > 0 {
			slog.Debug("Cache cleanup completed", "component", "cache", "cache", name, "entries_removed", n)
			total += n
		}
	}
	return total
}

// Stop ends the cleanup goroutine. Safe to call when StartCleanup never ran.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
}
