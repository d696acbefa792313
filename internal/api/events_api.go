package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"vetbook/internal/metrics"
)

// handleEventStream answers GET /api/v1/events?vet_id=&date= with an SSE
// stream of slot-change events for the watched vet and date. Delivery is
// best effort; clients refetch availability on any event.
func (s *HTTPServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("events")

	vetID, err := strconv.ParseInt(r.URL.Query().Get("vet_id"), 10, 64)
	if err != nil || vetID <= 0 {
		writeError(w, http.StatusBadRequest, "vet_id must be a positive integer")
		return
	}
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sub := s.notifier.Subscribe(vetID, date)
	defer s.notifier.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, payload)
			flusher.Flush()
		}
	}
}
