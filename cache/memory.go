package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mottu/patio-proxy/log"
	"github.com/puzpuzpuz/xsync/v3"
)

const defaultJanitorInterval = time.Minute

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

func (i memoryItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && !now.Before(i.expiresAt)
}

type memoryStore struct {
	items     *xsync.MapOf[string, memoryItem]
	janitor   *time.Ticker
	stop      chan struct{}
	closeOnce sync.Once
	log       log.Logger
}

func newMemory(janitorInterval time.Duration, log log.Logger) *memoryStore {
	m := &memoryStore{
		items:   xsync.NewMapOf[string, memoryItem](),
		janitor: time.NewTicker(janitorInterval),
		stop:    make(chan struct{}),
		log:     log,
	}
	log.Reportf("using in-memory cache storage")
	go m.run()
	return m
}

func (m *memoryStore) run() {
	for {
		select {
		case <-m.janitor.C:
			m.evictExpired()
		case <-m.stop:
			return
		}
	}
}

func (m *memoryStore) evictExpired() {
	now := time.Now()
	evicted := 0
	m.items.Range(func(key string, item memoryItem) bool {
		if item.expired(now) {
			m.items.Delete(key)
			evicted++
		}
		return true
	})
	if evicted > 0 {
		m.log.Debugf("evicted %d expired entries", evicted)
	}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	item, ok := m.items.Load(key)
	if !ok || item.expired(time.Now()) {
		return nil, ErrNotFound
	}
	return item.value, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.items.Store(key, memoryItem{value: value, expiresAt: expiresAt(time.Now(), ttl)})
	return nil
}

func (m *memoryStore) Mode() string {
	return "memory"
}

func (m *memoryStore) Shutdown() {
	m.closeOnce.Do(func() {
		m.janitor.Stop()
		close(m.stop)
		m.log.Reportf("shutdown complete")
	})
}
