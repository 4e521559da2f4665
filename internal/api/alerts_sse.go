package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var sseHeartbeat = 15 * time.Second

// AlertsStreamHandler handles GET /alerts/stream[?types=a,b] as server-sent events.
func (s *Server) AlertsStreamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := s.requireRole(w, r); !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	var types []string
	if v := r.URL.Query().Get("types"); v != "" {
		types = strings.Split(v, ",")
	}
	keep := alertFilter(types)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(TopicAlerts)
	defer s.Broker.Unsubscribe(TopicAlerts, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"ts\":%d}\n\n", s.now().UnixMilli())
		flusher.Flush()
	}
	heartbeat()

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case a, open := <-ch:
			if !open {
				return
			}
			if !keep(a) {
				continue
			}
			b, _ := json.Marshal(a)
			fmt.Fprintf(w, "event: %s\n", a.Type)
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		case <-ticker.C:
			heartbeat()
		}
	}
}
