// Package cache stores JSON-encoded values with a TTL, in process or in Redis.
package cache

import (
    "context"
    "encoding/json"
    "sync"
    "time"
)

// Cache is a TTL key/value store. Get reports false for missing or expired keys.
type Cache interface {
    Get(ctx context.Context, key string, dst any) (bool, error)
    Set(ctx context.Context, key string, v any, ttl time.Duration) error
    Ping(ctx context.Context) error
}

type entry struct {
    data    []byte
    expires time.Time
}

// Memory is the in-process cache used when no REDIS_URL is set.
type Memory struct {
    mu    sync.Mutex
    items map[string]entry
    now   func() time.Time
}

func NewMemory() *Memory {
    return &Memory{items: map[string]entry{}, now: time.Now}
}

func (m *Memory) Get(ctx context.Context, key string, dst any) (bool, error) {
    m.mu.Lock()
    e, ok := m.items[key]
    if ok && !m.now().Before(e.expires) {
        delete(m.items, key)
        ok = false
    }
    m.mu.Unlock()
    if !ok { return false, nil }
    return true, json.Unmarshal(e.data, dst)
}

func (m *Memory) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
    data, err := json.Marshal(v)
    if err != nil { return err }
    m.mu.Lock(); defer m.mu.Unlock()
    now := m.now()
    for k, e := range m.items {
        if !now.Before(e.expires) { delete(m.items, k) }
    }
    m.items[key] = entry{data: data, expires: now.Add(ttl)}
    return nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

// Len counts live entries.
func (m *Memory) Len() int {
    m.mu.Lock(); defer m.mu.Unlock()
    n := 0
    now := m.now()
    for _, e := range m.items {
        if now.Before(e.expires) { n++ }
    }
    return n
}
