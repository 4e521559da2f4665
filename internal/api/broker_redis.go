package api

import (
    "context"
    "encoding/json"
    "sync"
    "time"

    redis "github.com/redis/go-redis/v9"
)

type EventBroker interface {
    Subscribe(topic string) chan Alert
    Unsubscribe(topic string, ch chan Alert)
    Publish(topic string, a Alert)
    Close() error
}

// In-memory broker in broker.go satisfies EventBroker as well.

// RedisBroker implements EventBroker over Redis Pub/Sub so every API replica
// sees alerts raised by the others.
type RedisBroker struct {
    rdb *redis.Client

    mu  sync.Mutex
    pss map[chan Alert]*redis.PubSub
}

func NewRedisBroker(url string) (*RedisBroker, error) {
    opt, err := redis.ParseURL(url)
    if err != nil {
        return nil, err
    }
    return NewRedisBrokerClient(redis.NewClient(opt)), nil
}

func NewRedisBrokerClient(rdb *redis.Client) *RedisBroker {
    return &RedisBroker{rdb: rdb, pss: map[chan Alert]*redis.PubSub{}}
}

// Subscribe returns a channel that is closed once Unsubscribe is called or
// the connection drops.
func (b *RedisBroker) Subscribe(topic string) chan Alert {
    ch := make(chan Alert, 16)
    ctx := context.Background()
    ps := b.rdb.Subscribe(ctx, b.chanName(topic))
    // initial consume to ensure subscription
    _, _ = ps.Receive(ctx)
    b.mu.Lock()
    b.pss[ch] = ps
    b.mu.Unlock()
    go func() {
        defer close(ch)
        for msg := range ps.Channel() {
            var a Alert
            if err := json.Unmarshal([]byte(msg.Payload), &a); err == nil {
                select {
                case ch <- a:
                default:
                }
            }
        }
    }()
    return ch
}

func (b *RedisBroker) Unsubscribe(topic string, ch chan Alert) {
    b.mu.Lock()
    ps, ok := b.pss[ch]
    delete(b.pss, ch)
    b.mu.Unlock()
    if ok {
        // closing the PubSub ends the relay goroutine, which closes ch
        _ = ps.Close()
    }
}

func (b *RedisBroker) Publish(topic string, a Alert) {
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    data, _ := json.Marshal(a)
    _ = b.rdb.Publish(ctx, b.chanName(topic), data).Err()
}

func (b *RedisBroker) Close() error {
    b.mu.Lock()
    for ch, ps := range b.pss {
        _ = ps.Close()
        delete(b.pss, ch)
    }
    b.mu.Unlock()
    return b.rdb.Close()
}

func (b *RedisBroker) chanName(topic string) string { return "qsteel:" + topic }
