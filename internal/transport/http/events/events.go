// Package events streams working set changes to the display as server-sent events.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/corray333/backend-labs/kds/internal/service/services/syncengine"
)

const (
	bufferSize        = 64
	heartbeatInterval = 15 * time.Second
)

type service interface {
	Subscribe(l syncengine.Listener) syncengine.Unsubscribe
}

// changeMessage is the data of a "change" event.
type changeMessage struct {
	Kind    string `json:"kind"`
	OrderID string `json:"orderId,omitempty"`
}

// Stream handles GET /api/events until the client goes away. Changes are not
// delivered in bulk: a client that falls behind gets a single "replaced" change
// and should refetch the list.
func Stream(w http.ResponseWriter, r *http.Request, service service) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)

		return
	}

	changes := make(chan syncengine.Change, bufferSize)
	var overflow atomic.Bool
	unsubscribe := service.Subscribe(func(c syncengine.Change) {
		select {
		case changes <- c:
		default:
			overflow.Store(true)
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case c := <-changes:
			if overflow.Swap(false) {
				c = syncengine.Change{Kind: syncengine.ChangeReplaced}
				drain(changes)
			}
			if err := writeChange(w, c); err != nil {
				slog.Debug("Event stream closed", "error", err)

				return
			}
		}
		flusher.Flush()
	}
}

func writeChange(w http.ResponseWriter, c syncengine.Change) error {
	data, err := json.Marshal(changeMessage{Kind: c.Kind.String(), OrderID: c.OrderID})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: change\ndata: %s\n\n", data)

	return err
}

func drain(changes <-chan syncengine.Change) {
	for {
		select {
		case <-changes:
		default:
			return
		}
	}
}
