// Package pool manages shared database/sql connection pools keyed by
// connection fingerprint, so repeated operations against the same server
// reuse sockets instead of dialing per request.
package pool

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"
)

// pingTimeout bounds the health check performed when a pool is first created.
const pingTimeout = 3 * time.Second

// entry is one live pool plus lease bookkeeping for shutdown diagnostics.
type entry struct {
	db     *sql.DB
	leases int
}

// Manager owns every pooled *sql.DB in the process. It is constructed once in
// main and injected into connectors; there is no package-level instance.
type Manager struct {
	size  int
	mu    sync.RWMutex
	pools map[string]*entry
}

// NewManager creates a manager whose pools allow size concurrent connections
// each. A non-positive size falls back to 10.
func NewManager(size int) *Manager {
	if size <= 0 {
		size = 10
	}
	return &Manager{
		size:  size,
		pools: make(map[string]*entry),
	}
}

// Size reports the per-pool connection limit.
func (m *Manager) Size() int {
	return m.size
}

// Get returns the pooled handle for fingerprint, creating and health-checking
// it on first use. A failed creation caches nothing, so the next call retries
// and the caller is free to fall back to a direct connection in the meantime.
func (m *Manager) Get(ctx context.Context, driver, dsn, fingerprint string) (*sql.DB, error) {
	m.mu.RLock()
	e, ok := m.pools[fingerprint]
	m.mu.RUnlock()
	if ok {
		m.lease(fingerprint)
		return e.db, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.pools[fingerprint]; ok {
		e.leases++
		return e.db, nil
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s pool: %w", driver, err)
	}
	db.SetMaxOpenConns(m.size)
	db.SetMaxIdleConns(m.size)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pool health check failed for %s: %w", fingerprint, err)
	}

	log.Printf("Created connection pool for %s (max %d connections)", fingerprint, m.size)
	m.pools[fingerprint] = &entry{db: db, leases: 1}
	return db, nil
}

func (m *Manager) lease(fingerprint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.pools[fingerprint]; ok {
		e.leases++
	}
}

// Release returns a lease taken by Get. The underlying pool stays open for
// the process lifetime; database/sql recycles the individual connections.
func (m *Manager) Release(fingerprint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.pools[fingerprint]; ok && e.leases > 0 {
		e.leases--
	}
}

// Active reports how many distinct pools are currently open.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pools)
}

// Shutdown closes every pool and forgets it. Outstanding leases are logged
// rather than blocked on, since shutdown is a process-exit path.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for fingerprint, e := range m.pools {
		if e.leases > 0 {
			log.Printf("Warning: closing pool %s with %d outstanding leases", fingerprint, e.leases)
		}
		if err := e.db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close pool %s: %w", fingerprint, err)
		}
		delete(m.pools, fingerprint)
	}
	return firstErr
}
