package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Cache stores JSON-encoded values with a per-entry TTL
type Cache interface {
	// Get decodes the value at key into dst; false means absent or expired
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// AnalysisKey is the cached analysis report of a tenant
func AnalysisKey(tenantID string) string {
	return "analysis:" + tenantID
}

// InventoryKey is one cached raw inventory of a tenant
func InventoryKey(tenantID, kind string) string {
	return "inventory:" + tenantID + ":" + kind
}

// DashboardPrefix covers every derived dashboard view of a tenant
func DashboardPrefix(tenantID string) string {
	return "dashboard:" + tenantID + ":"
}

// DashboardKey is one derived dashboard view of a tenant
func DashboardKey(tenantID string, parts ...string) string {
	return DashboardPrefix(tenantID) + strings.Join(parts, ":")
}

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// Memory is an in-process Cache used when no Redis URL is configured
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory creates an empty in-process cache
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get implements Cache
func (m *Memory) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(e.data, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

// Set implements Cache. A zero ttl never expires.
func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	e := memoryEntry{data: data}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// InvalidatePrefix implements Cache
func (m *Memory) InvalidatePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
	return nil
}

// PurgeExpired drops expired entries and returns how many were removed
func (m *Memory) PurgeExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for k, e := range m.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
