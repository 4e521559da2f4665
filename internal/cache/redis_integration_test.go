//go:build redis_integration

package cache

import (
    "os"
    "testing"
    "time"
)

func TestRedisRoundTrip(t *testing.T) {
    url := os.Getenv("REDIS_URL")
    if url == "" { t.Skip("REDIS_URL not set; skipping integration test") }
    r, err := NewRedis(url, "qsteel:test:")
    if err != nil { t.Fatalf("NewRedis: %v", err) }
    defer r.Close()
    if err := r.Ping(t.Context()); err != nil { t.Fatalf("Ping: %v", err) }

    if err := r.Set(t.Context(), "k", map[string]int{"rakes": 3}, time.Minute); err != nil { t.Fatalf("Set: %v", err) }
    var got map[string]int
    ok, err := r.Get(t.Context(), "k", &got)
    if err != nil || !ok || got["rakes"] != 3 { t.Fatalf("Get: ok=%v err=%v got=%v", ok, err, got) }

    ok, err = r.Get(t.Context(), "missing", &got)
    if err != nil || ok { t.Fatalf("missing key: ok=%v err=%v", ok, err) }
}
