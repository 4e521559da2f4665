// Package webhooks forwards alerts to external HTTP endpoints with signed,
// retried POSTs.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event is the JSON body of every delivery.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	TS   time.Time `json:"ts"`
	Data any       `json:"data"`
}

type delivery struct {
	url       string
	eventType string
	body      []byte
}

type endpoint struct {
	url   string
	queue chan delivery
}

type Worker struct {
	URLs        []string
	Secret      string
	HTTP        *http.Client
	MaxAttempts int
	Log         *zap.Logger

	backoff   func(attempt int) time.Duration
	endpoints []endpoint
	mu        sync.RWMutex
	closed    bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewWorker(urls []string, secret string, maxAttempts int, log *zap.Logger) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	eps := make([]endpoint, len(urls))
	for i, u := range urls {
		eps[i] = endpoint{url: u, queue: make(chan delivery, 256)}
	}
	return &Worker{
		URLs:        urls,
		Secret:      secret,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		MaxAttempts: maxAttempts,
		Log:         log,
		backoff:     nextBackoff,
		endpoints:   eps,
	}
}

// Start launches one delivery loop per URL; retries against one URL do not
// delay the others. Close stops them.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	for _, ep := range w.endpoints {
		w.wg.Add(1)
		go func(q <-chan delivery) {
			defer w.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-q:
					if !ok {
						return
					}
					w.deliver(ctx, d)
				}
			}
		}(ep.queue)
	}
}

// Emit queues one delivery per configured URL. It never blocks: when a URL's
// queue is full the event is dropped for that URL and logged.
func (w *Worker) Emit(eventType string, data any) {
	body, err := json.Marshal(Event{ID: uuid.NewString(), Type: eventType, TS: time.Now().UTC(), Data: data})
	if err != nil {
		w.Log.Warn("webhook marshal", zap.String("type", eventType), zap.Error(err))
		return
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	for _, ep := range w.endpoints {
		select {
		case ep.queue <- delivery{url: ep.url, eventType: eventType, body: body}:
		default:
			w.Log.Warn("webhook queue full, dropping", zap.String("type", eventType), zap.String("url", ep.url))
		}
	}
}

// Close stops accepting events and waits for the loop to exit. Deliveries
// still queued are discarded.
func (w *Worker) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		for _, ep := range w.endpoints {
			close(ep.queue)
		}
	}
	w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	return nil
}

func (w *Worker) deliver(ctx context.Context, d delivery) {
	var lastErr error
	for attempt := 0; attempt < w.MaxAttempts; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(w.backoff(attempt - 1))
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
		start := time.Now()
		code, err := w.post(ctx, d)
		if err == nil {
			w.Log.Debug("webhook delivered",
				zap.String("type", d.eventType), zap.String("url", d.url),
				zap.Int("status", code), zap.Duration("latency", time.Since(start)))
			return
		}
		lastErr = err
		if ctx.Err() != nil {
			return
		}
	}
	w.Log.Warn("webhook delivery failed",
		zap.String("type", d.eventType), zap.String("url", d.url),
		zap.Int("attempts", w.MaxAttempts), zap.Error(lastErr))
}

func (w *Worker) post(ctx context.Context, d delivery) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(d.body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", d.eventType)
	if w.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(w.Secret, d.body))
	}
	resp, err := w.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
