package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nasubidev/splatrecorder/internal/model"
)

// eventFilter reports whether an event belongs on a given SSE stream. nil
// means "every event" (the domain-events firehose).
type eventFilter func(model.Event) bool

func isType(t string) eventFilter {
	return func(e model.Event) bool { return e.Type == t }
}

func isProgressEvent(e model.Event) bool {
	return strings.HasPrefix(e.Type, "progress.")
}

func isAssetEvent(e model.Event) bool {
	return strings.HasPrefix(e.Type, "asset.")
}

func isMetadataEvent(e model.Event) bool {
	return e.Type == model.EventRecorderMetadataUpdated || e.Type == model.EventAssetRecordedMetadataUpdated
}

// handleSSE subscribes to the event bus for the lifetime of the request,
// polling at SSEPollInterval and writing one "data: <json>\n\n" line per
// drained event, flushing after each write — the same boundary-write
// discipline the teacher's MJPEG handler uses for multipart parts.
func (s *Server) handleSSE(filter eventFilter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		h.Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		var types []string
		if filter != nil {
			// The bus's own type-set filter only models exact names; broader
			// predicates (prefix match, multi-type match) are applied after
			// an unfiltered subscription instead of pushed into Subscribe.
		}
		sub := s.EB.Subscribe(types, 0)
		defer s.EB.Unsubscribe(sub)

		interval := s.SSEPollInterval
		if interval <= 0 {
			interval = 200 * time.Millisecond
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, e := range sub.Poll(0) {
					if filter != nil && !filter(e) {
						continue
					}
					b, err := json.Marshal(e)
					if err != nil {
						continue
					}
					fmt.Fprintf(w, "data: %s\n\n", b)
				}
				flusher.Flush()
			}
		}
	}
}
