package api

import (
    "sync"
)

// Alert is a dashboard notification fanned out to stream subscribers.
type Alert struct {
    Type    string         `json:"type"`
    RakeID  string         `json:"rakeId,omitempty"`
    Message string         `json:"message"`
    Level   string         `json:"level"`
    TS      int64          `json:"ts"`
    Meta    map[string]any `json:"meta,omitempty"`
}

// Alert types
const (
    AlertRakeDispatched   = "rake_dispatched"
    AlertLoadingConfirmed = "loading_confirmed"
    AlertOptimization     = "optimization_complete"
    AlertUnallocated      = "unallocated_orders"
    AlertLedgerBroken     = "ledger_broken"
)

// TopicAlerts is the topic every dashboard alert is published on.
const TopicAlerts = "alerts"

type Broker struct {
    mu   sync.Mutex
    subs map[string]map[chan Alert]struct{} // topic -> set of channels
}

func NewBroker() *Broker {
    return &Broker{subs: map[string]map[chan Alert]struct{}{}}
}

func (b *Broker) Subscribe(topic string) chan Alert {
    ch := make(chan Alert, 8)
    b.mu.Lock()
    if b.subs[topic] == nil {
        b.subs[topic] = map[chan Alert]struct{}{}
    }
    b.subs[topic][ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

// Unsubscribe removes and closes ch. Calling it twice for the same channel is a no-op.
func (b *Broker) Unsubscribe(topic string, ch chan Alert) {
    b.mu.Lock()
    defer b.mu.Unlock()
    m := b.subs[topic]
    if _, ok := m[ch]; !ok {
        return
    }
    delete(m, ch)
    if len(m) == 0 {
        delete(b.subs, topic)
    }
    close(ch)
}

// Publish delivers to every subscriber without blocking; slow subscribers miss alerts.
func (b *Broker) Publish(topic string, a Alert) {
    b.mu.Lock()
    for ch := range b.subs[topic] {
        select {
        case ch <- a:
        default:
        }
    }
    b.mu.Unlock()
}

func (b *Broker) Close() error { return nil }

// Subscribers counts open subscriptions on topic.
func (b *Broker) Subscribers(topic string) int {
    b.mu.Lock()
    defer b.mu.Unlock()
    return len(b.subs[topic])
}
