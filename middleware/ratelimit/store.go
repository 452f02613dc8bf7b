package ratelimit

import (
	"sync"
	"time"
)

type Store interface {
	Increment(key string, resetTime time.Time) (count int, effectiveReset time.Time)
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*entry
	now  func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type entry struct {
	count     int
	resetTime time.Time
}

func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	store := &MemoryStore{
		data: make(map[string]*entry),
		now:  time.Now,
		stop: make(chan struct{}),
	}

	go store.cleanup(cleanupInterval)

	return store
}

func (s *MemoryStore) get(key string) (count int, resetTime time.Time, exists bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.data[key]; ok && s.now().Before(e.resetTime) {
		return e.count, e.resetTime, true
	}

	return 0, time.Time{}, false
}

// Increment starts a new window with resetTime when the key has none, and
// returns the window's count and reset time.
func (s *MemoryStore) Increment(key string, resetTime time.Time) (int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.data[key]; ok && s.now().Before(e.resetTime) {
		e.count++
		return e.count, e.resetTime
	}

	s.data[key] = &entry{
		count:     1,
		resetTime: resetTime,
	}

	return 1, resetTime
}

func (s *MemoryStore) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data)
}

func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *MemoryStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.data {
		if !now.Before(e.resetTime) {
			delete(s.data, key)
		}
	}
}
